package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString = errors.New("empty postgres connection string, use ROLLOUT_DB_URL env var")
	ErrFailedToParseConfig   = errors.New("failed to parse db config")
	ErrFailedToConnect       = errors.New("failed to open db connection")
	ErrHealthcheckFailed     = errors.New("healthcheck failed, connection is not available")
	ErrFailedToMigrate       = errors.New("failed to apply migrations")
)

// IsNotFoundError detects pgx.ErrNoRows for consistent "not found" handling across queries.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects PostgreSQL unique constraint violations (SQLSTATE 23505),
// which the assignment store relies on for first-writer-wins semantics.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
