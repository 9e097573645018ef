package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

type fakeSource struct {
	mu     sync.Mutex
	ch     chan core.Event
	unsub  bool
	stats  *core.Stats
	err    error
	called int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		ch: make(chan core.Event, 16),
		stats: &core.Stats{
			Counts:  map[core.JobStatus]int64{core.StatusPending: 2, core.StatusDLQ: 1},
			DLQSize: 1,
		},
	}
}

func (f *fakeSource) Events() <-chan core.Event { return f.ch }

func (f *fakeSource) Unsubscribe(ch <-chan core.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsub = true
}

func (f *fakeSource) Stats(ctx context.Context) (*core.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called++
	return f.stats, f.err
}

func conf(v float64) *float64 { return &v }

// ──────────────────────────────────────────────────────────────────────────────
// Observe
// ──────────────────────────────────────────────────────────────────────────────

func TestObserve_Transitions(t *testing.T) {
	c := NewCollector(newFakeSource())

	c.Observe(&core.JobTransitioned{From: core.StatusProcessing, To: core.StatusCompleted, Confidence: conf(0.9), Duration: time.Second})
	c.Observe(&core.JobTransitioned{From: core.StatusProcessing, To: core.StatusCompleted})
	c.Observe(&core.JobTransitioned{From: core.StatusProcessing, To: core.StatusFailed})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("PROCESSING", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("PROCESSING", "FAILED")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.confidence))
}

func TestObserve_StagesAndReviews(t *testing.T) {
	c := NewCollector(newFakeSource())

	c.Observe(&core.JobEnqueued{})
	c.Observe(&core.StageCompleted{Stage: core.StageExtract, Duration: 10 * time.Millisecond})
	c.Observe(&core.StageCompleted{Stage: core.StageParse, Duration: time.Second, Err: core.Schema(core.StageParse, errors.New("bad json"))})
	c.Observe(&core.JobReviewed{Review: &core.IngestionReview{Decision: core.DecisionApproved}})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.enqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reviews.WithLabelValues("APPROVED")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
}

// ──────────────────────────────────────────────────────────────────────────────
// Snapshot
// ──────────────────────────────────────────────────────────────────────────────

func TestSnapshot_SetsGauges(t *testing.T) {
	c := NewCollector(newFakeSource())
	c.Snapshot(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobs.WithLabelValues("PENDING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.jobs.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dlqSize))
}

func TestSnapshot_IgnoresStatsError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("db down")
	c := NewCollector(src)

	c.Snapshot(context.Background())
	assert.Equal(t, 0.0, testutil.ToFloat64(c.dlqSize))
}

// ──────────────────────────────────────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────────────────────────────────────

func TestStart_ConsumesEvents(t *testing.T) {
	src := newFakeSource()
	c := NewCollector(src, WithSnapshotInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	c.WaitReady()

	src.ch <- &core.JobEnqueued{}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.enqueued) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.True(t, src.unsub)
	assert.GreaterOrEqual(t, src.called, 1)
}

func TestHandler_ServesMetrics(t *testing.T) {
	c := NewCollector(newFakeSource())
	c.Observe(&core.JobEnqueued{})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recipe_ingest_jobs_enqueued_total 1")
}
