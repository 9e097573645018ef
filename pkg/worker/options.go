package worker

import (
	"log/slog"
	"time"

	"github.com/jdziat/recipe-ingest/pkg/security"
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	WorkerID     string

	// HeartbeatInterval defaults to a third of the orchestrator's lease.
	HeartbeatInterval time.Duration

	Logger *slog.Logger
}

// Concurrency sets the number of jobs processed in parallel.
// Values are clamped to [1, security.MaxWorkers].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Concurrency = security.ClampWorkers(n)
	})
}

// PollInterval sets how often the worker asks for new work.
func PollInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.PollInterval = d
		}
	})
}

// WithWorkerID sets the lock stamp written on claimed jobs.
func WithWorkerID(id string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.WorkerID = id
	})
}

// HeartbeatInterval sets how often a running job's lease is extended.
func HeartbeatInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.HeartbeatInterval = d
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Logger = l
	})
}
