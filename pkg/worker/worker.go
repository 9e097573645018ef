package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/orchestrator"
)

// Worker processes ingestion jobs claimed through the orchestrator.
type Worker struct {
	orch   *orchestrator.Orchestrator
	config WorkerConfig
	logger *slog.Logger
	wg     sync.WaitGroup

	running   atomic.Bool
	inFlight  atomic.Int64
	processed atomic.Int64
}

// NewWorker creates a worker pool for the given orchestrator.
func NewWorker(o *orchestrator.Orchestrator, opts ...WorkerOption) *Worker {
	config := WorkerConfig{
		Concurrency:  4,
		PollInterval: time.Second,
		WorkerID:     "worker-" + uuid.New().String(),
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = o.Lease() / 3
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		orch:   o,
		config: config,
		logger: logger.With("worker_id", config.WorkerID),
	}
}

// ID returns the lock stamp this worker writes on claimed jobs.
func (w *Worker) ID() string {
	return w.config.WorkerID
}

// Running reports whether Start is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// InFlight returns the number of jobs currently being processed.
func (w *Worker) InFlight() int64 {
	return w.inFlight.Load()
}

// Processed returns the number of jobs this worker has finished since start.
func (w *Worker) Processed() int64 {
	return w.processed.Load()
}

// Start begins processing jobs. Blocks until ctx is cancelled, then waits for
// in-flight jobs to record their outcome.
func (w *Worker) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("ingest: worker already running")
	}
	defer w.running.Store(false)

	w.logger.Info("worker started", "concurrency", w.config.Concurrency, "poll_interval", w.config.PollInterval)

	// Claimed jobs finish even after shutdown begins.
	jobCtx := context.WithoutCancel(ctx)
	jobsChan := make(chan *core.IngestionJob)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(jobCtx, jobsChan)
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobsChan)
			w.wg.Wait()
			w.logger.Info("worker stopped", "processed", w.processed.Load())
			return ctx.Err()
		case <-ticker.C:
			w.fill(ctx, jobsChan)
		}
	}
}

// fill claims jobs until the queue is drained or every goroutine is busy.
func (w *Worker) fill(ctx context.Context, jobs chan<- *core.IngestionJob) {
	for ctx.Err() == nil && w.inFlight.Load() < int64(w.config.Concurrency) {
		job, err := w.orch.Claim(ctx, w.config.WorkerID)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				w.logger.Error("failed to claim after retries", "error", err)
			}
			return
		}
		if job == nil {
			return
		}
		w.inFlight.Add(1)
		select {
		case jobs <- job:
		case <-ctx.Done():
			// The claim lapses and stale-claim recovery counts it as a transient failure.
			w.inFlight.Add(-1)
			return
		}
	}
}

func (w *Worker) processLoop(ctx context.Context, jobs <-chan *core.IngestionJob) {
	defer w.wg.Done()

	for job := range jobs {
		w.processJob(ctx, job)
		w.inFlight.Add(-1)
		w.processed.Add(1)
	}
}

func (w *Worker) processJob(ctx context.Context, job *core.IngestionJob) {
	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job)

	if _, err := w.orch.Process(ctx, job, w.config.WorkerID); err != nil {
		w.logger.Error("failed to process job", "job_id", job.ID, "error", err)
	}
}

// runHeartbeat periodically extends the job lease during execution.
func (w *Worker) runHeartbeat(ctx context.Context, job *core.IngestionJob) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.orch.Heartbeat(ctx, job.ID, w.config.WorkerID)
			switch {
			case err == nil:
				w.logger.Debug("heartbeat sent", "job_id", job.ID)
			case errors.Is(err, core.ErrJobNotOwned):
				if ctx.Err() == nil {
					w.logger.Warn("lost claim on job", "job_id", job.ID)
				}
				return
			case ctx.Err() == nil:
				w.logger.Warn("heartbeat failed after retries", "job_id", job.ID, "error", err)
			}
		}
	}
}
