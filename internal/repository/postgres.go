// Package repository implements the persistence layer over PostgreSQL.
//
// The queries are hand-written against database/sql with the pgx stdlib
// driver. All quota mutations are single conditional UPDATE statements so
// enforcement happens in the database, not in application memory.
package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for a unique-constraint
// failure.
const uniqueViolation = "23505"

// Postgres is the PostgreSQL-backed implementation of domain.Store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres store over an open connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
