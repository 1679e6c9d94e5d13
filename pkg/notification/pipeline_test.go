package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFeed = errors.New("feed unavailable")

// scriptedFeed serves batches in order, then empty batches. after runs
// with the 1-based call number before each batch is returned.
type scriptedFeed struct {
	mu      sync.Mutex
	batches [][]resource.ChangeNotification
	failOn  int
	calls   int
	limits  []int
	after   func(call int)
}

func (f *scriptedFeed) Consume(_ context.Context, limit int) (*client.Batch, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.limits = append(f.limits, limit)
	var batch []resource.ChangeNotification
	if call <= len(f.batches) {
		batch = f.batches[call-1]
	}
	after := f.after
	f.mu.Unlock()

	if f.failOn == call {
		return nil, errFeed
	}
	if after != nil {
		after(call)
	}
	return &client.Batch{Notifications: batch, Remaining: 0}, nil
}

// stubFetcher answers every request with the same response.
type stubFetcher struct {
	mu       sync.Mutex
	body     string
	header   http.Header
	err      error
	requests []client.Request
}

func (f *stubFetcher) Get(_ context.Context, r client.Request) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	if f.err != nil {
		return nil, f.err
	}
	h := f.header
	if h == nil {
		h = http.Header{}
	}
	return &client.Response{StatusCode: http.StatusOK, Header: h, Body: []byte(f.body)}, nil
}

func (f *stubFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// recorder collects everything a subscriber is told.
type recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	errs      []error
	completed int
	fail      error
}

func (r *recorder[T]) OnNotification(_ context.Context, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.values = append(r.values, v)
	return nil
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[T]) OnCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func note(id, name, version string, op resource.Operation, content string) resource.ChangeNotification {
	return resource.ChangeNotification{
		ID:          resource.NotificationID(id),
		Published:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Operation:   op,
		Resource:    resource.Descriptor{ID: id + "-guid", Name: name, Version: version},
		ContentType: "resource-representation",
		Content:     json.RawMessage(content),
		Publisher:   json.RawMessage(`{"id":"pub-1","applicationName":"Student"}`),
	}
}

// cancelWhenDrained cancels p once the feed has served every batch.
func cancelWhenDrained[T any](feed *scriptedFeed, p *Pipeline[T]) {
	n := len(feed.batches)
	if n == 0 {
		n = 1
	}
	feed.after = func(call int) {
		if call >= n {
			p.Cancel()
		}
	}
}

func TestPipeline_ReconcilesToOverrideVersion(t *testing.T) {
	overrides := NewVersionOverrides()
	require.NoError(t, overrides.Set("persons", "v12.3.0"))

	feed := &scriptedFeed{batches: [][]resource.ChangeNotification{
		{note("1", "persons", "v8", resource.OperationReplaced, `{"id":"p-1","v":8}`)},
	}}
	fetcher := &stubFetcher{body: `{"id":"p-1","v":12}`}

	p, err := NewPipeline(Config{Feed: feed, Fetcher: fetcher, Overrides: overrides, PollInterval: time.Millisecond})
	require.NoError(t, err)
	cancelWhenDrained(feed, p)

	rec := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))
	require.NoError(t, p.Start(context.Background(), 10))

	require.Len(t, rec.values, 1)
	got := rec.values[0]
	assert.Equal(t, "v12.3.0", got.Resource.Version)
	assert.JSONEq(t, `{"id":"p-1","v":12}`, string(got.Content))
	assert.Equal(t, resource.DefaultContentType, got.ContentType)
	assert.Equal(t, resource.NotificationID("1"), got.ID)
	assert.Equal(t, resource.OperationReplaced, got.Operation)
	assert.JSONEq(t, `{"id":"pub-1","applicationName":"Student"}`, string(got.Publisher))

	require.Len(t, fetcher.requests, 1)
	assert.Equal(t, client.Request{Resource: "persons", ID: "1-guid", Version: "v12.3.0"}, fetcher.requests[0])
	assert.Equal(t, []int{10}, feed.limits)
	assert.Equal(t, 1, rec.completed)
}

func TestReconcile_PrefersServedVersionAndRestriction(t *testing.T) {
	overrides := NewVersionOverrides()
	require.NoError(t, overrides.Set("Persons", "12"))

	h := http.Header{}
	h.Set(client.HeaderServedVersion, "application/vnd.hedtech.integration.v12.1.0+json")
	h.Set(client.HeaderContentRestriction, "partial")
	fetcher := &stubFetcher{body: `{"id":"p-1"}`, header: h}

	got, err := NewReconciler(fetcher, overrides).Reconcile(context.Background(),
		note("1", "persons", "v8", resource.OperationUpdated, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.hedtech.integration.v12.1.0+json", got.Resource.Version)
	assert.Equal(t, "partial", got.ContentType)
}

func TestReconcile_DeletedUntouched(t *testing.T) {
	overrides := NewVersionOverrides()
	require.NoError(t, overrides.Set("persons", "v12.3.0"))
	fetcher := &stubFetcher{body: `{"changed":true}`}

	in := note("1", "persons", "v8", resource.OperationDeleted, `{"id":"p-1"}`)
	got, err := NewReconciler(fetcher, overrides).Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "v8", got.Resource.Version)
	assert.Equal(t, string(in.Content), string(got.Content))
	assert.Equal(t, 0, fetcher.calls())
}

func TestReconcile_CanonicalIsIdempotent(t *testing.T) {
	overrides := NewVersionOverrides()
	require.NoError(t, overrides.Set("persons", "v12.3.0"))
	r := NewReconciler(&stubFetcher{body: `{"other":1}`}, overrides)

	in := note("1", "persons", "application/vnd.hedtech.integration.v12.3.0+json", resource.OperationUpdated, `{"id":"p-1"}`)
	once, err := r.Reconcile(context.Background(), in)
	require.NoError(t, err)
	twice, err := r.Reconcile(context.Background(), once)
	require.NoError(t, err)

	a, err := json.Marshal(once)
	require.NoError(t, err)
	b, err := json.Marshal(twice)
	require.NoError(t, err)
	c, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, string(c), string(a))
	assert.Equal(t, string(a), string(b))
}

func TestReconcile_NoOverride(t *testing.T) {
	fetcher := &stubFetcher{}
	in := note("1", "courses", "v8", resource.OperationCreated, `{"id":"c-1"}`)

	got, err := NewReconciler(fetcher, nil).Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 0, fetcher.calls())
}

func TestReconcile_MissingFetcher(t *testing.T) {
	overrides := NewVersionOverrides()
	require.NoError(t, overrides.Set("persons", "v12"))

	_, err := NewReconciler(nil, overrides).Reconcile(context.Background(),
		note("1", "persons", "v8", resource.OperationUpdated, `{}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPipeline_SubscriberIsolation(t *testing.T) {
	feed := &scriptedFeed{batches: [][]resource.ChangeNotification{{
		note("1", "persons", "v8", resource.OperationCreated, `{"n":1}`),
		note("2", "persons", "v8", resource.OperationCreated, `{"n":2}`),
		note("3", "persons", "v8", resource.OperationCreated, `{"n":3}`),
	}}}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Millisecond})
	require.NoError(t, err)
	cancelWhenDrained(feed, p)

	failing := &recorder[resource.ChangeNotification]{fail: errors.New("boom")}
	healthy := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(failing))
	require.NoError(t, p.Attach(healthy))

	require.NoError(t, p.Start(context.Background(), 50))

	require.Len(t, healthy.values, 3)
	for i, n := range healthy.values {
		assert.Equal(t, resource.NotificationID([]string{"1", "2", "3"}[i]), n.ID)
	}
	assert.Empty(t, healthy.errs)

	require.Len(t, failing.errs, 3)
	var herr *HandlerError
	require.ErrorAs(t, failing.errs[0], &herr)
	assert.Contains(t, herr.Error(), "error occurred while a subscriber processed notification(s)")
	assert.EqualError(t, herr.Unwrap(), "boom")

	assert.Equal(t, 1, failing.completed)
	assert.Equal(t, 1, healthy.completed)
}

func TestPipeline_PanicIsolated(t *testing.T) {
	feed := &scriptedFeed{batches: [][]resource.ChangeNotification{{
		note("1", "persons", "v8", resource.OperationCreated, `{}`),
		note("2", "persons", "v8", resource.OperationCreated, `{}`),
	}}}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Millisecond})
	require.NoError(t, err)
	cancelWhenDrained(feed, p)

	var errs []error
	require.NoError(t, p.Attach(&SubscriberFuncs[resource.ChangeNotification]{
		Notification: func(context.Context, resource.ChangeNotification) error { panic("handler exploded") },
		Error:        func(err error) { errs = append(errs, err) },
	}))
	healthy := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(healthy))

	require.NoError(t, p.Start(context.Background(), 50))
	assert.Len(t, healthy.values, 2)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "handler exploded")
}

func TestPipeline_PollErrorCompletesAndReturns(t *testing.T) {
	feed := &scriptedFeed{
		batches: [][]resource.ChangeNotification{{note("1", "persons", "v8", resource.OperationCreated, `{}`)}},
		failOn:  2,
	}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Millisecond})
	require.NoError(t, err)

	rec := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))

	err = p.Start(context.Background(), 5)
	require.ErrorIs(t, err, errFeed)
	assert.Len(t, rec.values, 1)
	assert.Empty(t, rec.errs, "a poll failure is signalled as completion")
	assert.Equal(t, 1, rec.completed)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, StateCompleted, p.State())
}

func TestPipeline_ReconcileErrorCompletesAndReturns(t *testing.T) {
	overrides := NewVersionOverrides()
	require.NoError(t, overrides.Set("persons", "v12"))
	transportErr := &client.TransportError{StatusCode: http.StatusNotFound, Class: client.ErrorClassClient, Message: "Not Found"}

	feed := &scriptedFeed{batches: [][]resource.ChangeNotification{{
		note("1", "courses", "v8", resource.OperationCreated, `{}`),
		note("2", "persons", "v8", resource.OperationCreated, `{}`),
	}}}
	p, err := NewPipeline(Config{
		Feed:         feed,
		Fetcher:      &stubFetcher{err: transportErr},
		Overrides:    overrides,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	rec := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))

	err = p.Start(context.Background(), 5)
	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Empty(t, rec.values, "nothing in a failed batch is distributed")
	assert.Equal(t, 1, rec.completed)
	assert.Equal(t, 0, p.Len())
}

func TestPipeline_DetachDuringDistribution(t *testing.T) {
	feed := &scriptedFeed{batches: [][]resource.ChangeNotification{{
		note("1", "persons", "v8", resource.OperationCreated, `{}`),
		note("2", "persons", "v8", resource.OperationCreated, `{}`),
		note("3", "persons", "v8", resource.OperationCreated, `{}`),
	}}}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Millisecond})
	require.NoError(t, err)
	cancelWhenDrained(feed, p)

	var quitterGot []resource.NotificationID
	quitter := &SubscriberFuncs[resource.ChangeNotification]{}
	quitter.Notification = func(_ context.Context, n resource.ChangeNotification) error {
		quitterGot = append(quitterGot, n.ID)
		p.Detach(quitter)
		return nil
	}
	stayer := &recorder[resource.ChangeNotification]{}

	require.NoError(t, p.Attach(quitter))
	require.NoError(t, p.Attach(stayer))
	require.NoError(t, p.Start(context.Background(), 5))

	assert.Equal(t, []resource.NotificationID{"1"}, quitterGot)
	assert.Len(t, stayer.values, 3)
}

func TestPipeline_BatchMode(t *testing.T) {
	feed := &scriptedFeed{batches: [][]resource.ChangeNotification{
		{
			note("1", "persons", "v8", resource.OperationCreated, `{}`),
			note("2", "persons", "v8", resource.OperationUpdated, `{}`),
		},
		nil,
		{note("3", "persons", "v8", resource.OperationDeleted, `{}`)},
	}}
	p, err := NewBatchPipeline(Config{Feed: feed, PollInterval: time.Millisecond})
	require.NoError(t, err)
	cancelWhenDrained(feed, p)

	rec := &recorder[[]resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))
	require.NoError(t, p.Start(context.Background(), 100))

	require.Len(t, rec.values, 2, "the empty poll delivers nothing")
	require.Len(t, rec.values[0], 2)
	assert.Equal(t, resource.NotificationID("1"), rec.values[0][0].ID)
	assert.Equal(t, resource.NotificationID("2"), rec.values[0][1].ID)
	assert.Equal(t, resource.NotificationID("3"), rec.values[1][0].ID)
	assert.Equal(t, 3, feed.calls)
}

func TestPipeline_CancelBeforeFirstCycle(t *testing.T) {
	feed := &scriptedFeed{}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Hour})
	require.NoError(t, err)

	p.Cancel()
	rec := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))
	require.NoError(t, p.Start(context.Background(), 1))

	assert.Equal(t, 1, feed.calls, "cancellation is checked after a full cycle")
	assert.Equal(t, 1, rec.completed)
}

func TestPipeline_ContextEndsSleep(t *testing.T) {
	feed := &scriptedFeed{}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Hour})
	require.NoError(t, err)

	rec := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, 1) }()

	require.Eventually(t, func() bool { return p.State() == StateSleeping }, time.Second, time.Millisecond)
	assert.ErrorIs(t, p.Start(context.Background(), 1), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	assert.Equal(t, 1, rec.completed)
	assert.Equal(t, 0, p.Len())
}

func TestPipeline_Restart(t *testing.T) {
	feed := &scriptedFeed{}
	p, err := NewPipeline(Config{Feed: feed, PollInterval: time.Millisecond})
	require.NoError(t, err)

	p.Cancel()
	require.NoError(t, p.Start(context.Background(), 1))
	assert.Equal(t, 1, feed.calls)

	feed.after = func(call int) {
		if call == 3 {
			p.Cancel()
		}
	}
	rec := &recorder[resource.ChangeNotification]{}
	require.NoError(t, p.Attach(rec))
	require.NoError(t, p.Start(context.Background(), 1))
	assert.Equal(t, 3, feed.calls, "the cancel flag resets after completion")
	assert.Equal(t, 1, rec.completed)
}

func TestNewPipeline_Config(t *testing.T) {
	_, err := NewPipeline(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewBatchPipeline(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewPipeline(Config{Feed: &scriptedFeed{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, p.interval)
	assert.Equal(t, StateIdle, p.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "distributing", StateDistributing.String())
	assert.Equal(t, "state(42)", State(42).String())
}
