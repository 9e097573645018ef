// Package metrics exports ingestion activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

const namespace = "recipe_ingest"

// latencyBuckets are seconds; parse calls dominate the upper range.
var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}

// Source is the event and stats feed the collector reads.
type Source interface {
	Events() <-chan core.Event
	Unsubscribe(ch <-chan core.Event)
	Stats(ctx context.Context) (*core.Stats, error)
}

// Collector subscribes to orchestrator events and periodically snapshots job counts.
type Collector struct {
	source   Source
	registry *prometheus.Registry
	interval time.Duration

	enqueued      prometheus.Counter
	transitions   *prometheus.CounterVec
	reviews       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	jobDuration   *prometheus.HistogramVec
	confidence    prometheus.Histogram
	jobs          *prometheus.GaugeVec
	dlqSize       prometheus.Gauge

	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures the Collector.
type Option interface {
	apply(*Collector)
}

type optionFunc func(*Collector)

func (f optionFunc) apply(c *Collector) { f(c) }

// WithSnapshotInterval sets how often job counts are refreshed.
func WithSnapshotInterval(d time.Duration) Option {
	return optionFunc(func(c *Collector) {
		if d > 0 {
			c.interval = d
		}
	})
}

// NewCollector creates a collector with its own registry.
func NewCollector(source Source, opts ...Option) *Collector {
	c := &Collector{
		source:   source,
		registry: prometheus.NewRegistry(),
		interval: 30 * time.Second,
		ready:    make(chan struct{}),

		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Jobs created by intake.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Persisted job status changes.",
		}, []string{"from", "to"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Recorded reviewer decisions.",
		}, []string{"decision"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration.",
			Buckets:   latencyBuckets,
		}, []string{"stage", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from claim to persisted transition.",
			Buckets:   latencyBuckets,
		}, []string{"status"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_confidence",
			Help:      "Confidence reported with each transition that carries one.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Jobs per status at the last snapshot.",
		}, []string{"status"}),
		dlqSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dlq_size",
			Help:      "Jobs in the dead letter queue at the last snapshot.",
		}),
	}
	for _, opt := range opts {
		opt.apply(c)
	}

	c.registry.MustRegister(
		c.enqueued, c.transitions, c.reviews, c.stageDuration,
		c.jobDuration, c.confidence, c.jobs, c.dlqSize,
	)
	return c
}

// Registry exposes the collector registry, e.g. for extra process collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WaitReady blocks until the collector has subscribed to events.
func (c *Collector) WaitReady() {
	<-c.ready
}

// Start consumes events and refreshes gauges until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) error {
	events := c.source.Events()
	defer c.source.Unsubscribe(events)

	c.readyOnce.Do(func() { close(c.ready) })
	c.Snapshot(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-events:
			c.Observe(e)
		case <-ticker.C:
			c.Snapshot(ctx)
		}
	}
}

// Observe records one event.
func (c *Collector) Observe(e core.Event) {
	switch ev := e.(type) {
	case *core.JobEnqueued:
		c.enqueued.Inc()
	case *core.StageCompleted:
		result := "ok"
		if ev.Err != nil {
			result = string(core.KindOf(ev.Err))
		}
		c.stageDuration.WithLabelValues(string(ev.Stage), result).Observe(ev.Duration.Seconds())
	case *core.JobTransitioned:
		c.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
		if ev.Duration > 0 {
			c.jobDuration.WithLabelValues(string(ev.To)).Observe(ev.Duration.Seconds())
		}
		if ev.Confidence != nil {
			c.confidence.Observe(*ev.Confidence)
		}
	case *core.JobReviewed:
		c.reviews.WithLabelValues(string(ev.Review.Decision)).Inc()
	}
}

// Snapshot refreshes the per-status gauges from storage.
func (c *Collector) Snapshot(ctx context.Context) {
	stats, err := c.source.Stats(ctx)
	if err != nil {
		return
	}
	for _, status := range core.AllStatuses {
		c.jobs.WithLabelValues(string(status)).Set(float64(stats.Counts[status]))
	}
	c.dlqSize.Set(float64(stats.DLQSize))
}
