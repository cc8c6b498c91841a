package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/rolloutkit/pkg/evaluator"
	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/safety"
)

// execer covers both pool and transaction handles for shared statements.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads flag and experiment snapshots for the evaluation path. It
// satisfies evaluator.ConfigStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a config store over pool.
func NewStore(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("storage: pgx pool cannot be nil")
	}
	return &Store{pool: pool}, nil
}

const flagColumns = `id, key, enabled, rollout_percentage, targeting_rules, default_variant, variants, created_at, updated_at`

// GetFlag returns the flag snapshot for key or evaluator.ErrFlagNotFound.
func (s *Store) GetFlag(ctx context.Context, key string) (*flags.FlagConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+flagColumns+` FROM feature_flags WHERE key = $1`, key)

	cfg, err := scanFlag(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, evaluator.ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query flag by key: %w", err)
	}
	return cfg, nil
}

// GetExperiment returns the experiment snapshot for key or
// evaluator.ErrExperimentNotFound.
func (s *Store) GetExperiment(ctx context.Context, key string) (*flags.ExperimentConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, key, status, variants, traffic_allocation, targeting_rules, salt, created_at, updated_at
		FROM experiments WHERE key = $1`, key)

	var (
		cfg         flags.ExperimentConfig
		status      string
		rawVariants []byte
		rawRules    []byte
		salt        *string
	)
	err := row.Scan(&cfg.ID, &cfg.Key, &status, &rawVariants, &cfg.TrafficAllocation,
		&rawRules, &salt, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, evaluator.ErrExperimentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query experiment by key: %w", err)
	}

	cfg.Status = flags.ExperimentStatus(status)
	if salt != nil {
		cfg.Salt = *salt
	}
	if err := decodeJSON(rawVariants, &cfg.Variants); err != nil {
		return nil, fmt.Errorf("storage: decode experiment variants: %w", err)
	}
	if err := decodeJSON(rawRules, &cfg.TargetingRules); err != nil {
		return nil, fmt.Errorf("storage: decode experiment rules: %w", err)
	}
	return &cfg, nil
}

// SafetyStore serves the safety monitor's view of flags: id-keyed lookups,
// active-flag listing, safety policies, and the atomic rollback write. It
// satisfies safety.FlagStore.
type SafetyStore struct {
	pool *pgxpool.Pool
}

// NewSafetyStore creates a safety store over pool.
func NewSafetyStore(pool *pgxpool.Pool) (*SafetyStore, error) {
	if pool == nil {
		return nil, errors.New("storage: pgx pool cannot be nil")
	}
	return &SafetyStore{pool: pool}, nil
}

// ListActiveFlags returns enabled flags with a rollout percentage above zero.
func (s *SafetyStore) ListActiveFlags(ctx context.Context) ([]flags.FlagConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+flagColumns+` FROM feature_flags WHERE enabled AND rollout_percentage > 0 ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active flags: %w", err)
	}
	defer rows.Close()

	var active []flags.FlagConfig
	for rows.Next() {
		cfg, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan active flag: %w", err)
		}
		active = append(active, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate active flags: %w", err)
	}
	return active, nil
}

// GetFlag returns the flag snapshot by id or safety.ErrFlagNotFound.
func (s *SafetyStore) GetFlag(ctx context.Context, flagID string) (*flags.FlagConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+flagColumns+` FROM feature_flags WHERE id = $1`, flagID)

	cfg, err := scanFlag(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, safety.ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query flag by id: %w", err)
	}
	return cfg, nil
}

// GetSafetyConfig returns the flag's monitoring policy or
// safety.ErrSafetyConfigNotFound.
func (s *SafetyStore) GetSafetyConfig(ctx context.Context, flagID string) (*flags.SafetyConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT enabled, metrics, rollback_percentage
		FROM safety_configs WHERE feature_flag_id = $1`, flagID)

	var (
		cfg        flags.SafetyConfig
		rawMetrics []byte
	)
	err := row.Scan(&cfg.Enabled, &rawMetrics, &cfg.RollbackPercentage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, safety.ErrSafetyConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query safety config: %w", err)
	}

	if err := decodeJSON(rawMetrics, &cfg.Metrics); err != nil {
		return nil, fmt.Errorf("storage: decode safety metrics: %w", err)
	}
	return &cfg, nil
}

// ApplyRollback applies the rollout change and appends the audit record in
// one transaction. The percentage update is conditional on the previously
// observed value: zero affected rows on an existing flag means a concurrent
// edit happened and the whole transaction rolls back with
// safety.ErrUpdateConflict.
func (s *SafetyStore) ApplyRollback(ctx context.Context, record flags.RollbackRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin rollback tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE feature_flags
		SET rollout_percentage = $1, updated_at = now()
		WHERE id = $2 AND rollout_percentage = $3`,
		record.TargetPercentage, record.FlagID, record.PreviousPercentage)
	if err != nil {
		return fmt.Errorf("storage: update rollout percentage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM feature_flags WHERE id = $1)`, record.FlagID).Scan(&exists); err != nil {
			return fmt.Errorf("storage: verify flag existence: %w", err)
		}
		if !exists {
			return safety.ErrFlagNotFound
		}
		return safety.ErrUpdateConflict
	}

	if err := insertRollbackRecord(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit rollback tx: %w", err)
	}
	return nil
}

// AuditStore appends rollback records outside the rollback transaction,
// which the executor uses to capture failed attempts. It satisfies
// safety.AuditSink.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an audit store over pool.
func NewAuditStore(pool *pgxpool.Pool) (*AuditStore, error) {
	if pool == nil {
		return nil, errors.New("storage: pgx pool cannot be nil")
	}
	return &AuditStore{pool: pool}, nil
}

// Append writes one rollback record.
func (s *AuditStore) Append(ctx context.Context, record flags.RollbackRecord) error {
	return insertRollbackRecord(ctx, s.pool, record)
}

// ListRecords returns the audit trail for a flag, newest first.
func (s *AuditStore) ListRecords(ctx context.Context, flagID string, limit int) ([]flags.RollbackRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, feature_flag_id, trigger_type, trigger_reason, previous_percentage,
		       target_percentage, success, error, executed_by, created_at
		FROM rollback_records WHERE feature_flag_id = $1
		ORDER BY created_at DESC LIMIT $2`, flagID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list rollback records: %w", err)
	}
	defer rows.Close()

	var records []flags.RollbackRecord
	for rows.Next() {
		var (
			r        flags.RollbackRecord
			trigger  string
			errField *string
		)
		if err := rows.Scan(&r.ID, &r.FlagID, &trigger, &r.Reason, &r.PreviousPercentage,
			&r.TargetPercentage, &r.Success, &errField, &r.ExecutedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan rollback record: %w", err)
		}
		r.Trigger = flags.TriggerType(trigger)
		if errField != nil {
			r.Error = *errField
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate rollback records: %w", err)
	}
	return records, nil
}

func insertRollbackRecord(ctx context.Context, db execer, record flags.RollbackRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO rollback_records
			(id, feature_flag_id, trigger_type, trigger_reason, previous_percentage,
			 target_percentage, success, error, executed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.FlagID, string(record.Trigger), record.Reason, record.PreviousPercentage,
		record.TargetPercentage, record.Success, nullable(record.Error), record.ExecutedBy, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: insert rollback record: %w", err)
	}
	return nil
}

// scanFlag reads one feature_flags row into a FlagConfig.
func scanFlag(row pgx.Row) (*flags.FlagConfig, error) {
	var (
		cfg            flags.FlagConfig
		rawRules       []byte
		rawVariants    []byte
		defaultVariant *string
	)
	err := row.Scan(&cfg.ID, &cfg.Key, &cfg.Enabled, &cfg.RolloutPercentage,
		&rawRules, &defaultVariant, &rawVariants, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if defaultVariant != nil {
		cfg.DefaultVariant = *defaultVariant
	}
	if err := decodeJSON(rawRules, &cfg.TargetingRules); err != nil {
		return nil, fmt.Errorf("decode targeting rules: %w", err)
	}
	if err := decodeJSON(rawVariants, &cfg.Variants); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	return &cfg, nil
}

func decodeJSON(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var (
	_ evaluator.ConfigStore = (*Store)(nil)
	_ safety.FlagStore      = (*SafetyStore)(nil)
	_ safety.AuditSink      = (*AuditStore)(nil)
)
