package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rolloutkit/pkg/logger"
)

func TestWithDevelopment(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithDevelopment("rollout-control-plane"),
		logger.WithOutput(buf),
	)

	log.Debug("flag evaluated", logger.FlagKey("checkout-v2"))

	output := buf.String()
	assert.Contains(t, output, "DEBUG")
	assert.Contains(t, output, "service=rollout-control-plane")
	assert.Contains(t, output, "env=development")
	assert.Contains(t, output, "flag_key=checkout-v2")
}

func TestWithProduction(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithProduction("rollout-control-plane"),
		logger.WithOutput(buf),
	)

	// Debug records stay below the production level.
	log.Debug("noise")
	require.Zero(t, buf.Len())

	log.Info("flag rolled back", logger.Percentage(0))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rollout-control-plane", entry["service"])
	assert.Equal(t, "production", entry["env"])
	assert.EqualValues(t, 0, entry["percentage"])
}

func TestWithRequestIDExtractor(t *testing.T) {
	t.Parallel()

	type ctxKey string
	const requestIDKey ctxKey = "request_id"

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithProduction("rollout-control-plane"),
		logger.WithOutput(buf),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			if v, ok := ctx.Value(requestIDKey).(string); ok {
				return logger.RequestID(v), true
			}
			return slog.Attr{}, false
		}),
	)

	ctx := context.WithValue(context.Background(), requestIDKey, "req-123")
	log.InfoContext(ctx, "evaluating")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
}
