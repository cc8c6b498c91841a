package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/logger"
)

// Type distinguishes the kinds of exposure events the control plane emits.
type Type string

const (
	TypeEvaluation Type = "evaluation"
	TypeAssignment Type = "assignment"
)

// Event is one exposure record: which user saw which flag or experiment
// decision, and why.
type Event struct {
	Type          Type           `json:"type"`
	FlagKey       string         `json:"flag_key,omitempty"`
	ExperimentKey string         `json:"experiment_key,omitempty"`
	UserID        string         `json:"user_id"`
	Enabled       bool           `json:"enabled"`
	Variant       string         `json:"variant,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Sink receives emitted events, typically forwarding them to the external
// metrics-ingestion pipeline.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Deliver(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Emitter decouples event emission from the evaluation path. Emit enqueues
// onto a bounded buffer and returns immediately; a single background worker
// drains the buffer into the sink. When the buffer is full the event is
// dropped and counted instead of blocking the caller.
type Emitter struct {
	sink   Sink
	buffer chan Event
	logger *slog.Logger

	dropped atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures emitter creation.
type Option func(*options)

type options struct {
	bufferSize int
	logger     *slog.Logger
}

// WithBufferSize overrides the default 1024-event buffer.
func WithBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// WithLogger sets the logger used for drop and delivery-failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEmitter creates an emitter delivering to sink. Call Start before
// emitting; events enqueued before Start sit in the buffer until the worker
// runs.
func NewEmitter(sink Sink, opts ...Option) (*Emitter, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	o := &options{
		bufferSize: 1024,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Emitter{
		sink:   sink,
		buffer: make(chan Event, o.bufferSize),
		logger: o.logger,
	}, nil
}

// Start launches the background delivery worker.
func (e *Emitter) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return fmt.Errorf("events: emitter already started")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(workerCtx)

	return nil
}

// Stop shuts the worker down after draining events already in the buffer.
func (e *Emitter) Stop() error {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return fmt.Errorf("events: emitter not started")
	}
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	<-done

	if dropped := e.dropped.Load(); dropped > 0 {
		e.logger.Warn("emitter stopped with dropped events", slog.Int64("dropped", dropped))
	}

	return nil
}

// Emit enqueues an event without blocking. A full buffer drops the event,
// increments the drop counter, and logs at Warn; the evaluation result is
// never affected by emission outcome.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.buffer <- event:
	default:
		dropped := e.dropped.Add(1)
		// Log the first drop and every 1000th after it; a saturated buffer
		// would otherwise flood the log at request rate.
		if dropped == 1 || dropped%1000 == 0 {
			e.logger.Warn("event buffer full, dropping event",
				slog.String("type", string(event.Type)),
				slog.Int64("total_dropped", dropped))
		}
	}
}

// DroppedCount returns how many events were discarded due to backpressure.
func (e *Emitter) DroppedCount() int64 {
	return e.dropped.Load()
}

func (e *Emitter) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case event := <-e.buffer:
			e.deliver(ctx, event)
		case <-ctx.Done():
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case event := <-e.buffer:
					e.deliver(context.WithoutCancel(ctx), event)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, event Event) {
	deliverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := e.sink.Deliver(deliverCtx, event); err != nil {
		e.logger.Error("event delivery failed",
			slog.String("type", string(event.Type)),
			logger.UserID(event.UserID),
			logger.Error(err))
	}
}
