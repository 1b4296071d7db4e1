package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Compile-time check that InspectionStore implements checkmate.InspectionStore.
var _ checkmate.InspectionStore = (*InspectionStore)(nil)

// InspectionStore implements checkmate.InspectionStore using PostgreSQL.
//
// Each inspection is one row holding the encoded aggregate in a jsonb column
// next to a write-version. Summary columns are denormalized from the
// document for listing.
type InspectionStore struct {
	db *DB
}

const selectDocument = `SELECT document, version FROM inspections WHERE id = $1`

const insertInspection = `
INSERT INTO inspections (
	id, title, inspector_name, subject_id, state, template_version,
	document, version, created_at, updated_at, finalized_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9, $10)`

const updateInspection = `
UPDATE inspections SET
	title = $3,
	inspector_name = $4,
	subject_id = $5,
	state = $6,
	template_version = $7,
	document = $8,
	version = version + 1,
	updated_at = $9,
	finalized_at = $10
WHERE id = $1 AND version = $2`

const inspectionExists = `SELECT EXISTS (SELECT 1 FROM inspections WHERE id = $1)`

const deleteInspection = `DELETE FROM inspections WHERE id = $1`

const countInspections = `
SELECT count(*) FROM inspections
WHERE ($1::text IS NULL OR state = $1)`

const listInspections = `
SELECT id, title, inspector_name, subject_id, state, template_version,
	created_at, updated_at, finalized_at
FROM inspections
WHERE ($1::text IS NULL OR state = $1)
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

func (s *InspectionStore) Load(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	var (
		document []byte
		version  int64
	)
	err := s.db.pool.QueryRow(ctx, selectDocument, toPgUUID(id)).Scan(&document, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkmate.NotFound("Inspection %s not found", id)
		}
		return nil, checkmate.Internal("Failed to fetch inspection", err)
	}

	insp, err := checkmate.DecodeDocument(document, version)
	if err != nil {
		return nil, checkmate.Internal("Failed to decode inspection", err)
	}
	return insp, nil
}

// Save inserts new aggregates and compare-and-swaps existing ones on
// version, so a stale writer gets ECONFLICT instead of overwriting.
func (s *InspectionStore) Save(ctx context.Context, insp *checkmate.Inspection) error {
	document, err := checkmate.EncodeDocument(insp)
	if err != nil {
		return checkmate.Internal("Failed to encode inspection", err)
	}

	if insp.Version == 0 {
		_, err := s.db.pool.Exec(ctx, insertInspection,
			toPgUUID(insp.ID),
			insp.Title,
			insp.InspectorName,
			toPgText(insp.SubjectID),
			string(insp.State),
			insp.TemplateVersion,
			string(document),
			toPgTimestamptz(insp.CreatedAt),
			toPgTimestamptz(insp.UpdatedAt),
			toPgTimestamptzPtr(insp.FinalizedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return checkmate.Conflict("Inspection %s already exists", insp.ID)
			}
			if isCheckViolation(err) {
				return checkmate.Invalid("Inspection %s has invalid state %q", insp.ID, insp.State)
			}
			return checkmate.Internal("Failed to create inspection", err)
		}
		insp.Version = 1
		return nil
	}

	tag, err := s.db.pool.Exec(ctx, updateInspection,
		toPgUUID(insp.ID),
		insp.Version,
		insp.Title,
		insp.InspectorName,
		toPgText(insp.SubjectID),
		string(insp.State),
		insp.TemplateVersion,
		string(document),
		toPgTimestamptz(insp.UpdatedAt),
		toPgTimestamptzPtr(insp.FinalizedAt),
	)
	if err != nil {
		if isCheckViolation(err) {
			return checkmate.Invalid("Inspection %s has invalid state %q", insp.ID, insp.State)
		}
		return checkmate.Internal("Failed to update inspection", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.pool.QueryRow(ctx, inspectionExists, toPgUUID(insp.ID)).Scan(&exists); err != nil {
			return checkmate.Internal("Failed to update inspection", err)
		}
		if !exists {
			return checkmate.NotFound("Inspection %s not found", insp.ID)
		}
		return checkmate.Conflict("Inspection %s was modified concurrently", insp.ID)
	}

	insp.Version++
	return nil
}

func (s *InspectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.pool.Exec(ctx, deleteInspection, toPgUUID(id))
	if err != nil {
		return checkmate.Internal("Failed to delete inspection", err)
	}
	if tag.RowsAffected() == 0 {
		return checkmate.NotFound("Inspection %s not found", id)
	}
	return nil
}

func (s *InspectionStore) List(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
	var state pgtype.Text
	if filter.State != nil {
		state = pgtype.Text{String: string(*filter.State), Valid: true}
	}
	var limit pgtype.Int8
	if filter.Limit > 0 {
		limit = pgtype.Int8{Int64: int64(filter.Limit), Valid: true}
	}

	var total int
	if err := s.db.pool.QueryRow(ctx, countInspections, state).Scan(&total); err != nil {
		return nil, 0, checkmate.Internal("Failed to count inspections", err)
	}

	rows, err := s.db.pool.Query(ctx, listInspections, state, limit, max(filter.Offset, 0))
	if err != nil {
		return nil, 0, checkmate.Internal("Failed to list inspections", err)
	}
	defer rows.Close()

	summaries := []*checkmate.InspectionSummary{}
	for rows.Next() {
		var (
			id                   pgtype.UUID
			subjectID            pgtype.Text
			st                   string
			createdAt, updatedAt pgtype.Timestamptz
			finalizedAt          pgtype.Timestamptz
			sum                  checkmate.InspectionSummary
		)
		if err := rows.Scan(&id, &sum.Title, &sum.InspectorName, &subjectID, &st,
			&sum.TemplateVersion, &createdAt, &updatedAt, &finalizedAt); err != nil {
			return nil, 0, checkmate.Internal("Failed to scan inspection", err)
		}
		sum.ID = fromPgUUID(id)
		sum.SubjectID = fromPgText(subjectID)
		sum.State = checkmate.LifecycleState(st)
		sum.CreatedAt = fromPgTimestamptz(createdAt)
		sum.UpdatedAt = fromPgTimestamptz(updatedAt)
		sum.FinalizedAt = fromPgTimestamptzPtr(finalizedAt)
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, checkmate.Internal("Failed to list inspections", err)
	}
	return summaries, total, nil
}
