// Package store provides an expiring key-value store for form recovery
// data. It refuses to persist keys that look sensitive, wraps the single
// backup slot with expiration metadata, and treats every backend failure
// as "value not stored" rather than an error: storage here is a
// convenience layer, not a correctness dependency.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nimbleresolve/leadgate/core/logger"
)

// Well-known keys shared by the pipeline and the analytics tracker.
const (
	// BackupKey is the single backup slot for failed submissions.
	BackupKey = "form_data_backup"

	// EventsKey holds the ring of recent analytics events.
	EventsKey = "form_events"
)

// DefaultBackupTTL bounds how long a failed submission's fields are kept.
const DefaultBackupTTL = time.Hour

// ErrNotFound is returned by backends when a key is absent.
var ErrNotFound = errors.New("store: key not found")

// SensitiveKeywords blocks persistence of anything that looks like a
// credential. Matching is case-insensitive substring.
var SensitiveKeywords = []string{"password", "credit", "ssn", "secret", "token", "key"}

// Backend is the underlying persistence for a Store.
// Implementations must return ErrNotFound for absent keys.
type Backend interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// envelope wraps the backup slot's value with its expiry, kept as epoch
// milliseconds to stay readable alongside the rest of the stored JSON.
type envelope struct {
	Value   json.RawMessage `json:"value"`
	Expires int64           `json:"expires"`
}

// Store wraps a Backend with the deny-list and backup expiration rules.
type Store struct {
	backend   Backend
	logger    *slog.Logger
	now       func() time.Time
	backupTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for fail-soft debug messages.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock injects the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBackupTTL overrides the backup slot's time to live.
func WithBackupTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.backupTTL = ttl
		}
	}
}

// New creates a Store over the given backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		backupTTL: DefaultBackupTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Set persists a value under key. It returns false, without error, when the
// key matches the sensitive deny-list or the backend fails. The backup slot
// is wrapped with expiration metadata before persisting; all other values
// are stored as given (marshaled when not already a string).
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	if IsSensitiveKey(key) {
		s.logger.DebugContext(ctx, "blocked attempt to store sensitive key", slog.String("key", key))
		return false
	}

	var raw string
	if key == BackupKey {
		// The backup slot always goes through JSON so the expiry envelope
		// stays parseable regardless of the value's type.
		inner, err := json.Marshal(value)
		if err == nil {
			var wrapped []byte
			wrapped, err = json.Marshal(envelope{
				Value:   inner,
				Expires: s.now().Add(s.backupTTL).UnixMilli(),
			})
			raw = string(wrapped)
		}
		if err != nil {
			s.logger.DebugContext(ctx, "failed to encode backup envelope", logger.Error(err))
			return false
		}
	} else {
		var err error
		raw, err = marshalValue(value)
		if err != nil {
			s.logger.DebugContext(ctx, "failed to encode value", slog.String("key", key), logger.Error(err))
			return false
		}
	}

	if err := s.backend.Set(ctx, key, raw); err != nil {
		s.logger.DebugContext(ctx, "storage error", slog.String("key", key), logger.Error(err))
		return false
	}

	return true
}

// Get loads the value stored under key into dest and reports whether a live
// value was found. An expired backup slot is deleted on read and reported
// as absent. Backend failures and decode failures surface as "not found".
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "storage retrieval error", slog.String("key", key), logger.Error(err))
		}
		return false
	}

	if key == BackupKey {
		var wrapped envelope
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			s.logger.DebugContext(ctx, "malformed backup envelope", logger.Error(err))
			return false
		}
		if wrapped.Expires > 0 && s.now().UnixMilli() > wrapped.Expires {
			s.Remove(ctx, key)
			return false
		}
		raw = string(wrapped.Value)
	}

	return unmarshalValue(raw, dest, s.logger)
}

// Remove deletes the value stored under key. Backend failures are swallowed.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.DebugContext(ctx, "storage removal error", slog.String("key", key), logger.Error(err))
	}
}

// IsSensitiveKey reports whether the key matches the sensitive deny-list.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range SensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func marshalValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalValue(raw string, dest any, log *slog.Logger) bool {
	if sp, ok := dest.(*string); ok {
		// Structured parse first, raw string as fallback, mirroring how
		// values were written
		if err := json.Unmarshal([]byte(raw), sp); err != nil {
			*sp = raw
		}
		return true
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Debug("failed to decode stored value", logger.Error(err))
		return false
	}
	return true
}
