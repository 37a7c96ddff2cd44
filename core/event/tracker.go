// Package event records funnel analytics for the submission pipeline.
// Events are kept in a bounded in-memory ring, mirrored to the recovery
// store, and optionally forwarded to an external sink. Tracking is
// strictly best-effort: a failing sink or store never affects the
// pipeline.
package event

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimbleresolve/leadgate/core/logger"
	"github.com/nimbleresolve/leadgate/core/store"
)

// Funnel event names emitted by the submission pipeline.
const (
	ValidationFailed   = "form_validation_failed"
	SubmissionAttempt  = "form_submission_attempt"
	SubmissionSuccess  = "form_submission_success"
	SubmissionError    = "form_submission_error"
	SecondarySyncError = "db_sync_error"
)

// MaxStoredEvents bounds the ring of retained events. Older events are
// discarded first.
const MaxStoredEvents = 50

// Event is a single tracked occurrence.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink receives events as they are recorded, for forwarding to an
// external analytics service. Errors are logged and dropped.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Send(ctx context.Context, e Event) error { return f(ctx, e) }

// Tracker records pipeline events.
type Tracker struct {
	mu     sync.Mutex
	events []Event

	store  *store.Store
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore mirrors the event ring to the recovery store so it survives
// a restart.
func WithStore(s *store.Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithSink forwards each recorded event to an external sink.
func WithSink(sink Sink) Option {
	return func(t *Tracker) { t.sink = sink }
}

// WithLogger sets the logger for dropped-event diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.logger = log
		}
	}
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a Tracker. When a store is configured, previously
// persisted events are loaded so the ring continues across restarts.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.store != nil {
		var persisted []Event
		if t.store.Get(context.Background(), store.EventsKey, &persisted) {
			if len(persisted) > MaxStoredEvents {
				persisted = persisted[len(persisted)-MaxStoredEvents:]
			}
			t.events = persisted
		}
	}

	return t
}

// Track records an event with the given name and payload. The payload is
// copied so later mutation by the caller does not change the record.
func (t *Tracker) Track(ctx context.Context, name string, data map[string]any) Event {
	e := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: t.now().UTC(),
	}
	if len(data) > 0 {
		e.Data = make(map[string]any, len(data))
		for k, v := range data {
			e.Data[k] = v
		}
	}

	t.mu.Lock()
	t.events = append(t.events, e)
	if len(t.events) > MaxStoredEvents {
		t.events = t.events[len(t.events)-MaxStoredEvents:]
	}
	snapshot := make([]Event, len(t.events))
	copy(snapshot, t.events)
	t.mu.Unlock()

	if t.store != nil {
		t.store.Set(ctx, store.EventsKey, snapshot)
	}

	if t.sink != nil {
		if err := t.sink.Send(ctx, e); err != nil {
			t.logger.DebugContext(ctx, "analytics sink error",
				logger.Event(name), logger.Error(err))
		}
	}

	return e
}

// Events returns a copy of the retained ring, oldest first.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}
