package safety

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/logger"
)

// RollbackRequest describes one rollback attempt. TargetPercentage of -1
// means "use the executor's default".
type RollbackRequest struct {
	FlagID           string
	Trigger          flags.TriggerType
	Reason           string
	TargetPercentage int
	ExecutedBy       string
}

// RollbackResult is the structured outcome of a rollback attempt. Success
// false with a populated Error means the attempt ran but did not mutate the
// flag; the audit trail carries a matching failed record.
type RollbackResult struct {
	RecordID           string            `json:"record_id"`
	FlagID             string            `json:"flag_id"`
	Trigger            flags.TriggerType `json:"trigger_type"`
	Reason             string            `json:"reason"`
	PreviousPercentage int               `json:"previous_percentage"`
	TargetPercentage   int               `json:"target_percentage"`
	Success            bool              `json:"success"`
	Error              string            `json:"error,omitempty"`
	ExecutedAt         time.Time         `json:"executed_at"`
}

// Executor applies rollout reductions. The percentage change and its audit
// record are committed atomically through FlagStore.ApplyRollback; failed
// attempts are still recorded through the audit sink where feasible.
type Executor struct {
	store             FlagStore
	audit             AuditSink
	defaultPercentage int
	logger            *slog.Logger
}

// ExecutorOption configures executor creation.
type ExecutorOption func(*Executor)

// WithDefaultRollbackPercentage sets the target used when a request carries
// no explicit target. The default is 0, a full rollback.
func WithDefaultRollbackPercentage(percentage int) ExecutorOption {
	return func(e *Executor) {
		if percentage >= 0 && percentage <= 100 {
			e.defaultPercentage = percentage
		}
	}
}

// WithExecutorLogger sets the logger for rollback reporting.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates a rollback executor over store and audit.
func NewExecutor(store FlagStore, audit AuditSink, opts ...ExecutorOption) (*Executor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if audit == nil {
		return nil, ErrNilAuditSink
	}

	e := &Executor{
		store:  store,
		audit:  audit,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Rollback reduces the flag's rollout percentage to the requested target and
// records the action. The flag read, conditional write, and audit append are
// arranged so that a concurrent manual edit surfaces as a conflict instead of
// being silently overwritten; the conflicting attempt is itself audited as a
// failed record.
//
// Errors are returned only for malformed requests and unknown flags. A
// transaction failure yields a Success=false result with the cause captured
// in its Error field, mirroring the failed audit record.
func (e *Executor) Rollback(ctx context.Context, req RollbackRequest) (RollbackResult, error) {
	if req.FlagID == "" {
		return RollbackResult{}, errors.Join(ErrInvalidRequest, errors.New("flag id cannot be empty"))
	}
	switch req.Trigger {
	case flags.TriggerManual, flags.TriggerAutomatic, flags.TriggerScheduled:
	default:
		return RollbackResult{}, errors.Join(ErrInvalidRequest,
			errors.New("unknown trigger type"))
	}

	target := req.TargetPercentage
	if target < 0 {
		target = e.defaultPercentage
	}
	if target > 100 {
		return RollbackResult{}, errors.Join(ErrInvalidRequest,
			errors.New("target percentage cannot exceed 100"))
	}

	flag, err := e.store.GetFlag(ctx, req.FlagID)
	if err != nil {
		return RollbackResult{}, err
	}

	record := flags.RollbackRecord{
		ID:                 uuid.New().String(),
		FlagID:             req.FlagID,
		Trigger:            req.Trigger,
		Reason:             req.Reason,
		PreviousPercentage: flag.RolloutPercentage,
		TargetPercentage:   target,
		Success:            true,
		ExecutedBy:         req.ExecutedBy,
		CreatedAt:          time.Now().UTC(),
	}

	result := RollbackResult{
		RecordID:           record.ID,
		FlagID:             req.FlagID,
		Trigger:            req.Trigger,
		Reason:             req.Reason,
		PreviousPercentage: flag.RolloutPercentage,
		TargetPercentage:   target,
		ExecutedAt:         record.CreatedAt,
	}

	if err := e.store.ApplyRollback(ctx, record); err != nil {
		result.Success = false
		result.Error = err.Error()

		record.Success = false
		record.Error = err.Error()
		if auditErr := e.audit.Append(context.WithoutCancel(ctx), record); auditErr != nil {
			e.logger.Error("failed to record failed rollback attempt",
				logger.FlagID(req.FlagID), logger.Error(auditErr))
		}

		e.logger.Error("rollback failed",
			logger.FlagID(req.FlagID),
			slog.String("trigger", string(req.Trigger)),
			logger.Error(err))
		return result, nil
	}

	result.Success = true
	e.logger.Info("flag rolled back",
		logger.FlagID(req.FlagID),
		logger.FlagKey(flag.Key),
		slog.String("trigger", string(req.Trigger)),
		logger.Reason(req.Reason),
		slog.Int("previous_percentage", record.PreviousPercentage),
		slog.Int("target_percentage", target))

	return result, nil
}
