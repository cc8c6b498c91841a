package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
)

// PostgresStore is a Store implementation over PostgreSQL. A unique index on
// (user_id, experiment_id) plus ON CONFLICT DO NOTHING gives the conditional
// create the store contract requires; the loser of a race observes zero
// affected rows and reads back the winner.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed assignment store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("assignment: pgx pool cannot be nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Get returns the stored assignment or ErrAssignmentNotFound.
func (s *PostgresStore) Get(ctx context.Context, userID, experimentID string) (*flags.Assignment, error) {
	const query = `
		SELECT id, user_id, experiment_id, experiment_key, variant, context, created_at
		FROM assignments
		WHERE user_id = $1 AND experiment_id = $2`

	var (
		a          flags.Assignment
		rawContext []byte
		createdAt  time.Time
	)
	err := s.pool.QueryRow(ctx, query, userID, experimentID).Scan(
		&a.ID, &a.UserID, &a.ExperimentID, &a.ExperimentKey, &a.Variant, &rawContext, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("assignment: query assignment: %w", err)
	}

	a.CreatedAt = createdAt
	if len(rawContext) > 0 {
		if err := json.Unmarshal(rawContext, &a.Context); err != nil {
			return nil, fmt.Errorf("assignment: decode stored context: %w", err)
		}
	}
	return &a, nil
}

// PutIfAbsent inserts the assignment; a conflict on (user_id, experiment_id)
// means another writer won and is reported as false without error.
func (s *PostgresStore) PutIfAbsent(ctx context.Context, a *flags.Assignment) (bool, error) {
	const query = `
		INSERT INTO assignments (id, user_id, experiment_id, experiment_key, variant, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, experiment_id) DO NOTHING`

	var rawContext []byte
	if len(a.Context) > 0 {
		encoded, err := json.Marshal(a.Context)
		if err != nil {
			return false, fmt.Errorf("assignment: encode context: %w", err)
		}
		rawContext = encoded
	}

	tag, err := s.pool.Exec(ctx, query,
		a.ID, a.UserID, a.ExperimentID, a.ExperimentKey, a.Variant, rawContext, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("assignment: insert assignment: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
