package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/internal/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to CHECKMATE_TEST_DATABASE_URL, migrates and empties
// the inspections table. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("CHECKMATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHECKMATE_TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	sqlDB := stdlib.OpenDBFromPool(pool)
	require.NoError(t, goose.Up(sqlDB, "."))
	require.NoError(t, sqlDB.Close())

	_, err = pool.Exec(ctx, "TRUNCATE inspections")
	require.NoError(t, err)

	db := NewDB(pool)
	t.Cleanup(db.Close)
	return db
}

func newInspection(title string, created time.Time) *checkmate.Inspection {
	tmpl := &checkmate.Template{
		Version: "v1",
		Sections: []checkmate.SectionTemplate{
			{ID: "engine", Label: "Engine", Items: []checkmate.ItemTemplate{
				{ID: "engine:oil-level", Label: "Oil Level", Required: true},
			}},
		},
	}
	return tmpl.NewInspection(checkmate.CreateInspectionParams{
		Title:     title,
		SubjectID: "1HGBH41JXMN109186",
	}, created)
}

func TestInspectionStore_SaveLoad(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := db.InspectionStore

	insp := newInspection("Accord", time.Now().Truncate(time.Microsecond))
	require.NoError(t, store.Save(ctx, insp))
	assert.Equal(t, int64(1), insp.Version)

	_, err := insp.SetItemStatus("engine:oil-level", checkmate.StatusRecommended)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, insp))
	assert.Equal(t, int64(2), insp.Version)

	got, err := store.Load(ctx, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, checkmate.StatusRecommended, got.Sections[0].Items[0].Status)
	assert.Equal(t, "1HGBH41JXMN109186", got.SubjectID)

	_, err = store.Load(ctx, uuid.New())
	assert.Equal(t, checkmate.ENOTFOUND, checkmate.ErrorCode(err))
}

func TestInspectionStore_Conflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := db.InspectionStore

	insp := newInspection("Accord", time.Now())
	require.NoError(t, store.Save(ctx, insp))

	stale, err := store.Load(ctx, insp.ID)
	require.NoError(t, err)

	_, _ = insp.SetItemStatus("engine:oil-level", checkmate.StatusPass)
	require.NoError(t, store.Save(ctx, insp))

	_, _ = stale.SetItemStatus("engine:oil-level", checkmate.StatusRequired)
	err = store.Save(ctx, stale)
	assert.Equal(t, checkmate.ECONFLICT, checkmate.ErrorCode(err))

	dup := newInspection("dup", time.Now())
	dup.ID = insp.ID
	err = store.Save(ctx, dup)
	assert.Equal(t, checkmate.ECONFLICT, checkmate.ErrorCode(err))

	missing := newInspection("missing", time.Now())
	missing.Version = 3
	err = store.Save(ctx, missing)
	assert.Equal(t, checkmate.ENOTFOUND, checkmate.ErrorCode(err))
}

func TestInspectionStore_ListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := db.InspectionStore
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	older := newInspection("older", base)
	newer := newInspection("newer", base.Add(time.Hour))
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	_, _ = older.SetItemStatus("engine:oil-level", checkmate.StatusPass)
	require.NoError(t, older.Finalize(base.Add(2*time.Hour), checkmate.FinalizePolicy{}))
	require.NoError(t, store.Save(ctx, older))

	all, total, err := store.List(ctx, checkmate.InspectionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)

	finalized := checkmate.StateFinalized
	done, total, err := store.List(ctx, checkmate.InspectionFilter{State: &finalized})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, done, 1)
	assert.Equal(t, older.ID, done[0].ID)
	require.NotNil(t, done[0].FinalizedAt)

	page, total, err := store.List(ctx, checkmate.InspectionFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, older.ID, page[0].ID)

	require.NoError(t, store.Delete(ctx, newer.ID))
	err = store.Delete(ctx, newer.ID)
	assert.Equal(t, checkmate.ENOTFOUND, checkmate.ErrorCode(err))
}
