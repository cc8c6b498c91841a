// Package storage provides the PostgreSQL persistence layer for flag and
// experiment configuration, sticky assignments, safety policies, and the
// rollback audit trail.
//
// It is built on pgx/v5 for connectivity and goose/v3 for schema migrations.
// Connect opens a retrying connection pool from environment-driven Config,
// Migrate brings the schema up to date, and the three store types adapt the
// pool to the interfaces the rest of the system consumes:
//
//   - Store serves read-only flag and experiment snapshots to the evaluation
//     engine (evaluator.ConfigStore).
//   - SafetyStore serves the safety monitor, including the transactional
//     ApplyRollback write that changes a flag's rollout percentage and
//     appends its audit record atomically (safety.FlagStore).
//   - AuditStore appends and lists rollback records directly, used for
//     failed-attempt records and audit queries (safety.AuditSink).
//
// Usage:
//
//	var cfg storage.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := storage.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := storage.Migrate(ctx, pool, cfg, logger); err != nil {
//		return err
//	}
//
//	configStore, _ := storage.NewStore(pool)
//	eval, err := evaluator.New(configStore)
package storage
