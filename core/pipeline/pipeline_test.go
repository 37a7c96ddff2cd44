package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbleresolve/leadgate/core/dispatch"
	"github.com/nimbleresolve/leadgate/core/event"
	"github.com/nimbleresolve/leadgate/core/pipeline"
	"github.com/nimbleresolve/leadgate/core/store"
)

type fakeFormClient struct {
	mu    sync.Mutex
	calls []map[string]string
	err   error
	block chan struct{}
}

func (f *fakeFormClient) Submit(ctx context.Context, fields map[string]string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	f.calls = append(f.calls, copied)
	return f.err
}

func (f *fakeFormClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeForwarder struct {
	mu    sync.Mutex
	leads []map[string]string
	err   error
}

func (f *fakeForwarder) Forward(ctx context.Context, lead map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, lead)
	return f.err
}

func (f *fakeForwarder) leadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leads)
}

func validFields() map[string]string {
	return map[string]string{
		"name":    "Jo Lee",
		"email":   "jo@acme.com",
		"company": "Acme",
	}
}

var contactConfig = pipeline.Config{
	FormID:         "contact",
	RequiredFields: []string{"name", "email", "company"},
}

func eventNames(tracker *event.Tracker) []string {
	events := tracker.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

func TestPipeline_ValidationFailure(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	tracker := event.NewTracker()
	p := pipeline.New(client, dispatch.New(), pipeline.WithTracker(tracker))

	fields := validFields()
	fields["name"] = ""

	res, err := p.Submit(context.Background(), contactConfig, fields)
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeValidationFailed, res.Outcome)
	assert.Equal(t, "name", res.FirstInvalid)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 0, client.callCount(), "no network call on validation failure")
	assert.Equal(t, []string{event.ValidationFailed}, eventNames(tracker))
}

func TestPipeline_Success(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	forwarder := &fakeForwarder{}
	tracker := event.NewTracker()
	s := store.New(store.NewMemoryBackend())
	d := dispatch.New()
	ctx := context.Background()

	// A stale backup from an earlier failure must be cleared on success.
	require.True(t, s.Set(ctx, store.BackupKey, map[string]string{"name": "stale"}))

	p := pipeline.New(client, d,
		pipeline.WithSecondary(forwarder),
		pipeline.WithStore(s),
		pipeline.WithTracker(tracker),
		pipeline.WithRedirectDelay(0),
	)

	cfg := contactConfig
	cfg.RedirectURL = "https://nimbleresolve.com/thank-you"
	cfg.FormVariant = "b"

	res, err := p.Submit(ctx, cfg, validFields())
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome)

	require.Equal(t, 1, client.callCount())
	sent := client.calls[0]
	assert.Equal(t, "Jo Lee", sent["name"])
	assert.Equal(t, "contact", sent[pipeline.MetaFormID])
	assert.Equal(t, "WiFi Assessment Request - Acme", sent[pipeline.MetaSubject])
	assert.Equal(t, "b", sent[pipeline.MetaFormVariant])
	assert.NotEmpty(t, sent[pipeline.MetaTimestamp])

	require.Equal(t, 1, forwarder.leadCount())
	lead := forwarder.leads[0]
	assert.Equal(t, "Jo Lee", lead["name"])
	assert.Equal(t, "jo@acme.com", lead["email"])
	assert.Equal(t, "Acme", lead["company"])
	assert.Equal(t, "contact", lead[pipeline.MetaFormID])
	assert.NotContains(t, lead, "phone", "empty optionals are omitted")

	var backup map[string]string
	assert.False(t, s.Get(ctx, store.BackupKey, &backup), "backup cleared on success")

	assert.Equal(t, []string{event.SubmissionAttempt, event.SubmissionSuccess}, eventNames(tracker))

	assert.Equal(t, "https://nimbleresolve.com/thank-you?email=jo%40acme.com&name=Jo+Lee", res.RedirectURL)
}

func TestPipeline_PrimaryFailure(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{err: errors.New("connection refused")}
	forwarder := &fakeForwarder{}
	tracker := event.NewTracker()
	s := store.New(store.NewMemoryBackend())
	d := dispatch.New()
	ctx := context.Background()

	p := pipeline.New(client, d,
		pipeline.WithSecondary(forwarder),
		pipeline.WithStore(s),
		pipeline.WithTracker(tracker),
	)

	res, err := p.Submit(ctx, contactConfig, validFields())
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, pipeline.OutcomeFailed, res.Outcome)
	assert.True(t, res.Retryable)
	assert.NotEmpty(t, res.Message)

	assert.Equal(t, 0, forwarder.leadCount(), "no secondary dispatch without primary success")

	var backup map[string]string
	require.True(t, s.Get(ctx, store.BackupKey, &backup))
	assert.Equal(t, validFields(), backup, "raw fields are backed up")

	names := eventNames(tracker)
	assert.Equal(t, []string{event.SubmissionAttempt, event.SubmissionError}, names)
	assert.Equal(t, "connection refused", tracker.Events()[1].Data["error"])
}

func TestPipeline_RetryAfterFailure(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{err: errors.New("down")}
	s := store.New(store.NewMemoryBackend())
	d := dispatch.New()
	ctx := context.Background()

	p := pipeline.New(client, d, pipeline.WithStore(s))

	res, err := p.Submit(ctx, contactConfig, validFields())
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeFailed, res.Outcome)

	restored, ok := p.RestoreBackup(ctx)
	require.True(t, ok)
	assert.Equal(t, validFields(), restored)

	// Backend recovers; re-running the pipeline with the restored fields
	// succeeds and clears the backup.
	client.mu.Lock()
	client.err = nil
	client.mu.Unlock()

	res, err = p.Submit(ctx, contactConfig, restored)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome)

	_, ok = p.RestoreBackup(ctx)
	assert.False(t, ok)
	require.NoError(t, d.Close())
}

func TestPipeline_HoneypotAbortsSilently(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	tracker := event.NewTracker()
	p := pipeline.New(client, dispatch.New(), pipeline.WithTracker(tracker))

	fields := validFields()
	fields[pipeline.HoneypotField] = "gotcha"

	res, err := p.Submit(context.Background(), contactConfig, fields)
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeAborted, res.Outcome)
	assert.Empty(t, res.Message)
	assert.Equal(t, 0, client.callCount())
	assert.Empty(t, tracker.Events(), "bots get no tracking signal")
}

func TestPipeline_HoneypotNotForwarded(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	d := dispatch.New()
	p := pipeline.New(client, d)

	fields := validFields()
	fields[pipeline.HoneypotField] = ""

	res, err := p.Submit(context.Background(), contactConfig, fields)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeSuccess, res.Outcome)
	assert.NotContains(t, client.calls[0], pipeline.HoneypotField)
	require.NoError(t, d.Close())
}

func TestPipeline_SanitizesBeforeDispatch(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	d := dispatch.New()
	p := pipeline.New(client, d)

	fields := validFields()
	fields["name"] = "  Jo <b>Lee</b>  "

	res, err := p.Submit(context.Background(), contactConfig, fields)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Jo bLee/b", client.calls[0]["name"])
	require.NoError(t, d.Close())
}

func TestPipeline_InFlightGuard(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{block: make(chan struct{})}
	d := dispatch.New()
	p := pipeline.New(client, d)
	ctx := context.Background()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := p.Submit(ctx, contactConfig, validFields())
		assert.NoError(t, err)
	}()

	// Wait for the first submission to reach the backend.
	require.Eventually(t, func() bool {
		_, err := p.Submit(ctx, contactConfig, validFields())
		return errors.Is(err, pipeline.ErrSubmissionInFlight)
	}, time.Second, 5*time.Millisecond)

	close(client.block)
	<-firstDone

	// After completion the guard is released. The guard is per form id,
	// so earlier attempts for other forms would not have been blocked.
	client.block = nil
	_, err := p.Submit(ctx, contactConfig, validFields())
	assert.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestPipeline_SubjectFallback(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	d := dispatch.New()
	p := pipeline.New(client, d)

	fields := map[string]string{"email": "jo@acme.com"}
	cfg := pipeline.Config{RequiredFields: []string{"email"}}

	res, err := p.Submit(context.Background(), cfg, fields)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeSuccess, res.Outcome)

	sent := client.calls[0]
	assert.Equal(t, "WiFi Assessment Request - Unknown", sent[pipeline.MetaSubject])
	assert.Equal(t, "unknown", sent[pipeline.MetaFormID])
	require.NoError(t, d.Close())
}

func TestPipeline_SecondaryFailureIsSuppressed(t *testing.T) {
	t.Parallel()

	client := &fakeFormClient{}
	forwarder := &fakeForwarder{err: errors.New("upstream 500")}
	tracker := event.NewTracker()
	d := dispatch.New()

	p := pipeline.New(client, d,
		pipeline.WithSecondary(forwarder),
		pipeline.WithTracker(tracker),
	)

	res, err := p.Submit(context.Background(), contactConfig, validFields())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome, "user outcome is unaffected")

	require.NoError(t, d.Close())

	names := eventNames(tracker)
	assert.Contains(t, names, event.SecondarySyncError)
}
