// Package postgres provides the PostgreSQL implementation of the inspection store.
package postgres

import (
	"github.com/dukerupert/checkmate"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the database connection pool and exposes domain stores.
type DB struct {
	pool *pgxpool.Pool

	// Domain stores (initialized in NewDB)
	InspectionStore checkmate.InspectionStore
}

// NewDB creates a new database wrapper with all stores initialized.
func NewDB(pool *pgxpool.Pool) *DB {
	db := &DB{pool: pool}
	db.InspectionStore = &InspectionStore{db: db}
	return db
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer using store methods.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}
