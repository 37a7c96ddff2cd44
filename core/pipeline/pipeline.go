// Package pipeline orchestrates a form submission from raw field values
// to the forms backend: honeypot check, validation, sanitization,
// metadata enrichment, primary dispatch, then a best-effort secondary
// dispatch to the lead store. Failed submissions are backed up locally
// so the caller can restore the user's input later.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/nimbleresolve/leadgate/core/dispatch"
	"github.com/nimbleresolve/leadgate/core/event"
	"github.com/nimbleresolve/leadgate/core/logger"
	"github.com/nimbleresolve/leadgate/core/sanitizer"
	"github.com/nimbleresolve/leadgate/core/store"
	"github.com/nimbleresolve/leadgate/core/validator"
)

// HoneypotField is the hidden input legitimate users never fill. A
// non-empty value aborts the submission silently so bots get no signal
// of detection.
const HoneypotField = "botcheck"

// DefaultRedirectDelay gives the secondary dispatch a head start before
// the caller navigates away. It is an accommodation, not a barrier.
const DefaultRedirectDelay = 500 * time.Millisecond

// Metadata keys attached to the sanitized field map before dispatch.
// The underscore prefix marks them as internal so the sanitizer leaves
// them alone.
const (
	MetaTimestamp   = "_timestamp"
	MetaFormID      = "_form_id"
	MetaSubject     = "_subject"
	MetaFormVariant = "_form_variant"
)

// ErrSubmissionInFlight is returned when a submission for the same form
// is already running.
var ErrSubmissionInFlight = errors.New("pipeline: submission already in flight for this form")

// FormClient dispatches the sanitized submission to the primary forms
// backend. This call is on the critical path.
type FormClient interface {
	Submit(ctx context.Context, fields map[string]string) error
}

// LeadForwarder receives the lead subset after a confirmed primary
// success. Calls are fire-and-forget; failures never reach the user.
type LeadForwarder interface {
	Forward(ctx context.Context, lead map[string]string) error
}

// Outcome is the terminal state of one submission attempt.
type Outcome int

const (
	// OutcomeAborted means the honeypot tripped. Nothing was tracked
	// and nothing was sent.
	OutcomeAborted Outcome = iota

	// OutcomeValidationFailed means a required field failed validation.
	OutcomeValidationFailed

	// OutcomeSuccess means the primary backend confirmed the submission.
	OutcomeSuccess

	// OutcomeFailed means the primary dispatch failed. The raw fields
	// were backed up and the attempt may be retried.
	OutcomeFailed
)

// Result describes how a submission ended.
type Result struct {
	Outcome Outcome

	// Message is the user-facing error for validation and submission
	// failures. Empty on success and silent aborts.
	Message string

	// FirstInvalid names the first failing field, for focus handling.
	FirstInvalid string

	// Fields holds the invalid field details when validation failed.
	Fields map[string]validator.Result

	// Submitted is the sanitized, metadata-enriched map that was sent.
	Submitted map[string]string

	// RedirectURL and RedirectDelay describe the default post-success
	// navigation. RedirectURL is empty when no redirect is configured.
	RedirectURL   string
	RedirectDelay time.Duration

	// Retryable reports whether re-running the submission makes sense.
	Retryable bool
}

// Config carries the per-form settings. It is immutable after
// construction and passed in explicitly, never looked up ambiently.
type Config struct {
	// FormID identifies the form in events and metadata. Falls back to
	// "unknown" when empty.
	FormID string

	// Subject overrides the generated email subject.
	Subject string

	// RequiredFields are validated in order before any dispatch.
	RequiredFields []string

	// FormVariant tags the submission with its A/B bucket.
	FormVariant string

	// RedirectURL is the default success destination. The lead's name
	// and email are appended as query parameters.
	RedirectURL string
}

// Pipeline runs submissions. Safe for concurrent use; concurrent
// submissions for the same form id are rejected with
// ErrSubmissionInFlight.
type Pipeline struct {
	primary    FormClient
	secondary  LeadForwarder
	store      *store.Store
	tracker    *event.Tracker
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	delay      time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSecondary sets the fire-and-forget lead forwarder.
func WithSecondary(f LeadForwarder) Option {
	return func(p *Pipeline) { p.secondary = f }
}

// WithStore enables failed-submission backups.
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithTracker records funnel events.
func WithTracker(t *event.Tracker) Option {
	return func(p *Pipeline) { p.tracker = t }
}

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithRedirectDelay overrides the post-success redirect delay.
func WithRedirectDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// New creates a Pipeline over the primary forms client. The secondary
// forwarder, store, and tracker are optional; the pipeline degrades to
// validate-sanitize-submit without them.
func New(primary FormClient, dispatcher *dispatch.Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		primary:    primary,
		dispatcher: dispatcher,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		delay:      DefaultRedirectDelay,
		inFlight:   make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Submit runs the full pipeline for one form submission. The fields map
// is the raw user input; it is never mutated.
func (p *Pipeline) Submit(ctx context.Context, cfg Config, fields map[string]string) (Result, error) {
	formID := cfg.FormID
	if formID == "" {
		formID = "unknown"
	}

	if !p.acquire(formID) {
		return Result{}, ErrSubmissionInFlight
	}
	defer p.release(formID)

	// Honeypot trips abort silently. No event, no error.
	if fields[HoneypotField] != "" {
		p.logger.DebugContext(ctx, "honeypot triggered, dropping submission", logger.FormID(formID))
		return Result{Outcome: OutcomeAborted}, nil
	}

	if fr := validator.ValidateForm(fields, cfg.RequiredFields); !fr.Valid {
		p.track(ctx, event.ValidationFailed, map[string]any{
			"form_id": formID,
			"field":   fr.FirstInvalid,
		})
		return Result{
			Outcome:      OutcomeValidationFailed,
			Message:      fr.Message,
			FirstInvalid: fr.FirstInvalid,
			Fields:       fr.Fields,
		}, nil
	}

	p.track(ctx, event.SubmissionAttempt, map[string]any{"form_id": formID})

	submitted := sanitizer.SanitizeFormData(fields)
	delete(submitted, HoneypotField)
	p.attachMetadata(submitted, cfg, formID)

	if err := p.primary.Submit(ctx, submitted); err != nil {
		p.track(ctx, event.SubmissionError, map[string]any{
			"form_id": formID,
			"error":   err.Error(),
		})
		p.backup(ctx, fields)
		p.logger.ErrorContext(ctx, "primary submission failed",
			logger.FormID(formID), logger.Error(err))
		return Result{
			Outcome:   OutcomeFailed,
			Message:   "Something went wrong. Please try again.",
			Retryable: true,
		}, nil
	}

	if p.store != nil {
		p.store.Remove(ctx, store.BackupKey)
	}
	p.track(ctx, event.SubmissionSuccess, map[string]any{"form_id": formID})
	p.forward(submitted, formID)

	return Result{
		Outcome:       OutcomeSuccess,
		Submitted:     submitted,
		RedirectURL:   p.redirectURL(cfg, submitted),
		RedirectDelay: p.delay,
	}, nil
}

// RestoreBackup returns a previously backed-up field map, if a live one
// exists. Intended to repopulate empty form fields at startup.
func (p *Pipeline) RestoreBackup(ctx context.Context) (map[string]string, bool) {
	if p.store == nil {
		return nil, false
	}
	var fields map[string]string
	if !p.store.Get(ctx, store.BackupKey, &fields) || len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

func (p *Pipeline) acquire(formID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[formID]; busy {
		return false
	}
	p.inFlight[formID] = struct{}{}
	return true
}

func (p *Pipeline) release(formID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, formID)
}

// attachMetadata runs after sanitization so metadata values are never
// stripped. Values here are internal literals, not user input.
func (p *Pipeline) attachMetadata(fields map[string]string, cfg Config, formID string) {
	fields[MetaTimestamp] = time.Now().UTC().Format(time.RFC3339)
	fields[MetaFormID] = formID

	subject := cfg.Subject
	if subject == "" {
		company := fields["company"]
		if company == "" {
			company = "Unknown"
		}
		subject = "WiFi Assessment Request - " + company
	}
	fields[MetaSubject] = subject

	if cfg.FormVariant != "" {
		fields[MetaFormVariant] = cfg.FormVariant
	}
}

// backup persists the raw field map so the user's input survives a
// failed submission. Fail-soft like everything in the store.
func (p *Pipeline) backup(ctx context.Context, fields map[string]string) {
	if p.store == nil {
		return
	}
	saved := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == HoneypotField {
			continue
		}
		saved[k] = v
	}
	p.store.Set(ctx, store.BackupKey, saved)
}

// leadFields is the subset forwarded to the lead store.
var leadFields = []string{
	"name", "email", "company", "phone", "facility_size", "primary_challenge",
}

// forward hands the lead subset to the secondary forwarder as a detached
// task. The submission is already confirmed; a forwarding failure is
// tracked and dropped.
func (p *Pipeline) forward(submitted map[string]string, formID string) {
	if p.secondary == nil || p.dispatcher == nil {
		return
	}

	lead := make(map[string]string, len(leadFields)+2)
	for _, name := range leadFields {
		if v := submitted[name]; v != "" {
			lead[name] = v
		}
	}
	lead[MetaFormID] = formID
	if v := submitted[MetaFormVariant]; v != "" {
		lead[MetaFormVariant] = v
	}

	p.dispatcher.Go("lead_forward", func(ctx context.Context) error {
		if err := p.secondary.Forward(ctx, lead); err != nil {
			p.track(ctx, event.SecondarySyncError, map[string]any{
				"form_id": formID,
				"error":   err.Error(),
			})
			return err
		}
		return nil
	})
}

func (p *Pipeline) redirectURL(cfg Config, submitted map[string]string) string {
	if cfg.RedirectURL == "" {
		return ""
	}
	u, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return cfg.RedirectURL
	}
	q := u.Query()
	if v := submitted["name"]; v != "" {
		q.Set("name", v)
	}
	if v := submitted["email"]; v != "" {
		q.Set("email", v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Pipeline) track(ctx context.Context, name string, data map[string]any) {
	if p.tracker == nil {
		return
	}
	p.tracker.Track(ctx, name, data)
}
