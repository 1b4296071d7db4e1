// Package sqlite provides an embedded-file inspection store built on gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Compile-time check that Store implements checkmate.InspectionStore.
var _ checkmate.InspectionStore = (*Store)(nil)

// inspectionRow is one stored aggregate. Timestamps are managed by the
// domain, not by gorm.
type inspectionRow struct {
	ID              string     `gorm:"primaryKey;size:36"`
	Title           string     `gorm:"not null"`
	InspectorName   string     `gorm:"not null;default:''"`
	SubjectID       string     `gorm:"index"`
	State           string     `gorm:"not null;index:idx_inspections_state_created,priority:1"`
	TemplateVersion string     `gorm:"not null"`
	Document        []byte     `gorm:"not null"`
	Version         int64      `gorm:"not null"`
	CreatedAt       time.Time  `gorm:"autoCreateTime:false;index:idx_inspections_state_created,priority:2"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime:false"`
	FinalizedAt     *time.Time
}

func (inspectionRow) TableName() string { return "inspections" }

// Store implements checkmate.InspectionStore on a SQLite file.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serializing connections avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&inspectionRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	var row inspectionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, checkmate.NotFound("Inspection %s not found", id)
	}
	if err != nil {
		return nil, checkmate.Internal("Failed to fetch inspection", err)
	}

	insp, err := checkmate.DecodeDocument(row.Document, row.Version)
	if err != nil {
		return nil, checkmate.Internal("Failed to decode inspection", err)
	}
	return insp, nil
}

func (s *Store) Save(ctx context.Context, insp *checkmate.Inspection) error {
	document, err := checkmate.EncodeDocument(insp)
	if err != nil {
		return checkmate.Internal("Failed to encode inspection", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if insp.Version == 0 {
			return insert(tx, insp, document)
		}
		return update(tx, insp, document)
	})
	if err != nil {
		if checkmate.ErrorCode(err) != checkmate.EINTERNAL {
			return err
		}
		return checkmate.Internal("Failed to save inspection", err)
	}

	insp.Version++
	return nil
}

func insert(tx *gorm.DB, insp *checkmate.Inspection, document []byte) error {
	var n int64
	if err := tx.Model(&inspectionRow{}).Where("id = ?", insp.ID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return checkmate.Conflict("Inspection %s already exists", insp.ID)
	}

	row := inspectionRow{
		ID:              insp.ID.String(),
		Title:           insp.Title,
		InspectorName:   insp.InspectorName,
		SubjectID:       insp.SubjectID,
		State:           string(insp.State),
		TemplateVersion: insp.TemplateVersion,
		Document:        document,
		Version:         1,
		CreatedAt:       insp.CreatedAt.UTC(),
		UpdatedAt:       insp.UpdatedAt.UTC(),
		FinalizedAt:     utcPtr(insp.FinalizedAt),
	}
	return tx.Create(&row).Error
}

func update(tx *gorm.DB, insp *checkmate.Inspection, document []byte) error {
	res := tx.Model(&inspectionRow{}).
		Where("id = ? AND version = ?", insp.ID.String(), insp.Version).
		Updates(map[string]any{
			"title":            insp.Title,
			"inspector_name":   insp.InspectorName,
			"subject_id":       insp.SubjectID,
			"state":            string(insp.State),
			"template_version": insp.TemplateVersion,
			"document":         document,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       insp.UpdatedAt.UTC(),
			"finalized_at":     utcPtr(insp.FinalizedAt),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := tx.Model(&inspectionRow{}).Where("id = ?", insp.ID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return checkmate.NotFound("Inspection %s not found", insp.ID)
	}
	return checkmate.Conflict("Inspection %s was modified concurrently", insp.ID)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&inspectionRow{}, "id = ?", id.String())
	if res.Error != nil {
		return checkmate.Internal("Failed to delete inspection", res.Error)
	}
	if res.RowsAffected == 0 {
		return checkmate.NotFound("Inspection %s not found", id)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
	q := s.db.WithContext(ctx).Model(&inspectionRow{})
	if filter.State != nil {
		q = q.Where("state = ?", string(*filter.State))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, checkmate.Internal("Failed to count inspections", err)
	}

	q = q.Select("id", "title", "inspector_name", "subject_id", "state", "template_version",
		"created_at", "updated_at", "finalized_at").
		Order("created_at DESC").Order("id")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []inspectionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, checkmate.Internal("Failed to list inspections", err)
	}

	summaries := make([]*checkmate.InspectionSummary, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, 0, checkmate.Internal("Stored inspection has invalid id", err)
		}
		summaries = append(summaries, &checkmate.InspectionSummary{
			ID:              id,
			Title:           row.Title,
			InspectorName:   row.InspectorName,
			SubjectID:       row.SubjectID,
			State:           checkmate.LifecycleState(row.State),
			TemplateVersion: row.TemplateVersion,
			CreatedAt:       row.CreatedAt.UTC(),
			UpdatedAt:       row.UpdatedAt.UTC(),
			FinalizedAt:     utcPtr(row.FinalizedAt),
		})
	}
	return summaries, int(total), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
