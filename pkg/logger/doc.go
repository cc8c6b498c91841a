// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// The single factory New creates a *slog.Logger configured by Option
// functions: output format (text or json), minimum level, static attributes
// applied to every record, and ContextExtractor callbacks that pull values
// out of the context on each Handle call.
//
// Helper constructors in attr.go keep attribute naming consistent across the
// control plane: FlagKey, ExperimentKey, Variant, Reason, Metric, and so on.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithProduction("rollout-control-plane"),
//	    logger.WithContextValue("request_id", ctxKeyRequestID),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "flag evaluated",
//	    logger.FlagKey("new-checkout"),
//	    logger.UserID(userID),
//	    logger.Reason("enabled"),
//	)
//
// Error and Errors produce attributes only for non-nil errors, so
// log.Info("done", logger.Error(err)) needs no nil check.
package logger
