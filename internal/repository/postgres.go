package repository

import (
	"flowback-engine/pkg/database"
)

// Postgres implements Store on top of a pgx connection pool
type Postgres struct {
	db *database.PostgresDB
}

// NewPostgres creates the pgx-backed store
func NewPostgres(db *database.PostgresDB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)
