package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/broker"
	"github.com/CaitMS/Web-Exploration-Engine/internal/metrics"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const taskJSON = `{"url":"https://example.com","type":"scrape"}`

var exampleTask = model.Task{URL: "https://example.com", Type: model.FullScrape}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*model.JobRecord
	writes  []model.JobRecord
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*model.JobRecord{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) Set(_ context.Context, key string, record *model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[key] = &cp
	s.writes = append(s.writes, cp)
	return nil
}

func (s *fakeStore) Close() {}

func (s *fakeStore) status(key string) model.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r.Status
	}
	return ""
}

func (s *fakeStore) writesWith(status model.JobStatus) []model.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.JobRecord
	for _, w := range s.writes {
		if w.Status == status {
			out = append(out, w)
		}
	}
	return out
}

// fakeRunner blocks every run until release is closed, when a release channel is set.
type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	panics  bool
}

func (r *fakeRunner) Run(ctx context.Context, task model.Task) (*model.ScrapeResult, error) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.panics {
		panic("browser crashed")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &model.ScrapeResult{URL: task.URL, Robots: model.Ok(model.Robots{IsBaseURLAllowed: true}), ElapsedSeconds: 1.5}, nil
}

type fakeReports struct {
	calls atomic.Int32
}

func (f *fakeReports) WriteReport(context.Context, model.Task, *model.ScrapeResult) string {
	f.calls.Add(1)
	return "https://bucket.s3.eu-west-1.amazonaws.com/report.json"
}

type fakeOutcomes struct {
	mu     sync.Mutex
	events []model.JobEvent
}

func (f *fakeOutcomes) Save(_ context.Context, event *model.JobEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
}

type ackRecorder struct {
	acked atomic.Int32
}

func (a *ackRecorder) delivery(body string) *broker.Delivery {
	return broker.NewDelivery(nil, []byte(body), func(context.Context) error {
		a.acked.Add(1)
		return nil
	})
}

func newDispatcher(store *fakeStore, runner *fakeRunner) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Pipeline: runner,
		Cfg:      &config.WorkerConfig{JobTimeout: time.Minute, LeaseTTL: time.Minute},
		Version:  "test",
		Owner:    "worker-1",
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHandleRunsAndCompletes(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{}
	reports, outcomes := &fakeReports{}, &fakeOutcomes{}
	events := make(chan *model.JobEvent, 1)
	d := newDispatcher(store, runner)
	d.Reports, d.Outcomes, d.Events = reports, outcomes, events
	acks := &ackRecorder{}

	decision := d.Handle(context.Background(), acks.delivery(taskJSON))
	require.Equal(t, DecisionClaimed, decision)

	require.EqualValues(t, 1, runner.calls.Load())
	require.EqualValues(t, 1, acks.acked.Load())
	record, err := store.Get(context.Background(), exampleTask.Key())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, record.Status)
	require.Equal(t, exampleTask.PollingPath(), record.PollingPath)
	require.NotNil(t, record.Result)
	require.Empty(t, record.Owner)

	processing := store.writesWith(model.StatusProcessing)
	require.NotEmpty(t, processing)
	require.Equal(t, "worker-1", processing[0].Owner)
	require.NotZero(t, processing[0].LeaseExpiresAt)

	event := <-events
	require.Equal(t, model.StatusCompleted, event.Status)
	require.Equal(t, 1.5, event.ElapsedSeconds)
	require.NotEmpty(t, event.ReportLink)
	require.Equal(t, "test", event.WorkerVersion)
	require.EqualValues(t, 1, reports.calls.Load())
	require.Len(t, outcomes.events, 1)
}

func TestHandleAcksBeforePipelineFinishes(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{release: make(chan struct{})}
	d := newDispatcher(store, runner)
	acks := &ackRecorder{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Handle(context.Background(), acks.delivery(taskJSON))
	}()

	require.Eventually(t, func() bool { return acks.acked.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, model.StatusProcessing, store.status(exampleTask.Key()))

	close(runner.release)
	<-done
	require.Equal(t, model.StatusCompleted, store.status(exampleTask.Key()))
}

func TestHandleDuplicateWhileProcessing(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{release: make(chan struct{})}
	d := newDispatcher(store, runner)
	acks := &ackRecorder{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Handle(context.Background(), acks.delivery(taskJSON))
	}()
	require.Eventually(t, func() bool {
		return store.status(exampleTask.Key()) == model.StatusProcessing
	}, time.Second, 5*time.Millisecond)

	decision := d.Handle(context.Background(), acks.delivery(taskJSON))
	require.Equal(t, DecisionDuplicate, decision)
	require.EqualValues(t, 2, acks.acked.Load())

	close(runner.release)
	<-done
	require.EqualValues(t, 1, runner.calls.Load())
}

func TestHandleCompletedIsCacheHit(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{}
	require.NoError(t, store.Set(context.Background(), exampleTask.Key(), &model.JobRecord{
		Status: model.StatusCompleted,
		Result: &model.ScrapeResult{URL: exampleTask.URL, ElapsedSeconds: 12.5},
	}))
	d := newDispatcher(store, runner)
	acks := &ackRecorder{}

	decision := d.Handle(context.Background(), acks.delivery(taskJSON))
	require.Equal(t, DecisionCacheHit, decision)

	require.Zero(t, runner.calls.Load())
	require.EqualValues(t, 1, acks.acked.Load())
	record, _ := store.Get(context.Background(), exampleTask.Key())
	require.Equal(t, model.StatusCompleted, record.Status)
	require.Less(t, record.Result.ElapsedSeconds, 12.5)
	require.Equal(t, exampleTask.URL, record.Result.URL)
}

func TestHandleRetriesErroredJob(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{}
	require.NoError(t, store.Set(context.Background(), exampleTask.Key(), &model.JobRecord{Status: model.StatusError}))
	d := newDispatcher(store, runner)

	decision := d.Handle(context.Background(), (&ackRecorder{}).delivery(taskJSON))
	require.Equal(t, DecisionClaimed, decision)
	require.EqualValues(t, 1, runner.calls.Load())
	require.Equal(t, model.StatusCompleted, store.status(exampleTask.Key()))
}

func TestHandleLease(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		lease    int64
		decision string
		runs     int32
	}{
		{"expired lease is reclaimed", now.Add(-time.Second).UnixMilli(), DecisionReclaimed, 1},
		{"live lease is a duplicate", now.Add(time.Minute).UnixMilli(), DecisionDuplicate, 0},
		{"record without lease is a duplicate", 0, DecisionDuplicate, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, runner := newFakeStore(), &fakeRunner{}
			require.NoError(t, store.Set(context.Background(), exampleTask.Key(), &model.JobRecord{
				Status: model.StatusProcessing, Owner: "worker-0", LeaseExpiresAt: tt.lease,
			}))
			d := newDispatcher(store, runner)
			d.Clock = func() time.Time { return now }

			require.Equal(t, tt.decision, d.Handle(context.Background(), (&ackRecorder{}).delivery(taskJSON)))
			require.Equal(t, tt.runs, runner.calls.Load())
		})
	}
}

func TestHandleMalformedIsDropped(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `{"url":""}`, `{"type":"scrape"}`} {
		store, runner := newFakeStore(), &fakeRunner{}
		acks := &ackRecorder{}
		decision := newDispatcher(store, runner).Handle(context.Background(), acks.delivery(body))

		require.Equal(t, DecisionMalformed, decision, body)
		require.EqualValues(t, 1, acks.acked.Load(), body)
		require.Empty(t, store.writes, body)
		require.Zero(t, runner.calls.Load(), body)
	}
}

func TestHandleUnknownTypeWritesError(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{}
	acks := &ackRecorder{}
	decision := newDispatcher(store, runner).Handle(context.Background(),
		acks.delivery(`{"url":"https://example.com","type":"scrape-everything"}`))

	require.Equal(t, DecisionUnknownType, decision)
	require.EqualValues(t, 1, acks.acked.Load())
	require.Equal(t, model.StatusError, store.status("https://example.com-scrape-everything"))
	require.Zero(t, runner.calls.Load())
}

func TestHandlePipelineFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"panic", &fakeRunner{panics: true}},
		{"error", &fakeRunner{err: errors.New("boom")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			events := make(chan *model.JobEvent, 1)
			d := newDispatcher(store, tt.runner)
			d.Events = events

			d.Handle(context.Background(), (&ackRecorder{}).delivery(taskJSON))

			record, _ := store.Get(context.Background(), exampleTask.Key())
			require.Equal(t, model.StatusError, record.Status)
			require.Nil(t, record.Result)
			require.Equal(t, model.StatusError, (<-events).Status)
		})
	}
}

func TestHandleJobTimeout(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{release: make(chan struct{})}
	d := newDispatcher(store, runner)
	d.Cfg = &config.WorkerConfig{JobTimeout: 20 * time.Millisecond, LeaseTTL: time.Minute}

	d.Handle(context.Background(), (&ackRecorder{}).delivery(taskJSON))
	require.Equal(t, model.StatusError, store.status(exampleTask.Key()))
}

func TestHandleRenewsLease(t *testing.T) {
	t.Parallel()

	store, runner := newFakeStore(), &fakeRunner{release: make(chan struct{})}
	d := newDispatcher(store, runner)
	d.Cfg = &config.WorkerConfig{JobTimeout: time.Minute, LeaseTTL: 30 * time.Millisecond}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Handle(context.Background(), (&ackRecorder{}).delivery(taskJSON))
	}()
	require.Eventually(t, func() bool {
		return len(store.writesWith(model.StatusProcessing)) >= 3
	}, time.Second, 5*time.Millisecond)
	close(runner.release)
	<-done

	processing := store.writesWith(model.StatusProcessing)
	require.Greater(t, processing[len(processing)-1].LeaseExpiresAt, processing[0].LeaseExpiresAt)
	require.Equal(t, model.StatusCompleted, store.status(exampleTask.Key()))
}

func storeErrors(t *testing.T, op string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "wee_store_errors_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "op" && l.GetValue() == op {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleStoreReadFailureIsCounted(t *testing.T) {
	t.Parallel()

	metrics.Init()
	before := storeErrors(t, "get")
	store, runner := newFakeStore(), &fakeRunner{}
	store.getErr = errors.New("memcache: connection refused")
	d := newDispatcher(store, runner)

	decision := d.Handle(context.Background(), (&ackRecorder{}).delivery(taskJSON))
	require.Equal(t, DecisionClaimed, decision)
	require.EqualValues(t, 1, runner.calls.Load())
	require.GreaterOrEqual(t, storeErrors(t, "get"), before+1)
}
