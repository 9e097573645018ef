package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/pipeline"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

// Pipeline runs one pass of the ingestion stages over a claimed job.
type Pipeline interface {
	Run(ctx context.Context, job *core.IngestionJob, notes string) *pipeline.Result
}

// Archiver moves a source document into the folder for a terminal status and
// returns its new path.
type Archiver interface {
	Archive(path string, status core.JobStatus) (string, error)
}

// Uploader stores an uploaded document in the intake area and returns its path.
type Uploader interface {
	Store(name string, r io.Reader) (string, error)
}

// JobDetail is a job with its review history.
type JobDetail struct {
	Job     *core.IngestionJob     `json:"job"`
	Reviews []core.IngestionReview `json:"reviews"`
}

// Orchestrator drives ingestion jobs through their lifecycle.
type Orchestrator struct {
	storage  core.Storage
	recipes  core.RecipeStore
	pipeline Pipeline
	archiver Archiver
	uploader Uploader
	logger   *slog.Logger

	maxRetries   int
	lease        time.Duration
	backoff      Backoff
	storageRetry RetryConfig
	claimRetry   RetryConfig

	mu sync.RWMutex

	// Hooks
	onStart    []func(context.Context, *core.IngestionJob)
	onComplete []func(context.Context, *core.IngestionJob)
	onReview   []func(context.Context, *core.IngestionJob)
	onFail     []func(context.Context, *core.IngestionJob, error)
	onRetry    []func(context.Context, *core.IngestionJob, int, error)

	// Event stream
	eventSubs []chan core.Event
}

// New creates an Orchestrator over the given storage, recipe store and pipeline.
func New(s core.Storage, recipes core.RecipeStore, p Pipeline, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storage:      s,
		recipes:      recipes,
		pipeline:     p,
		logger:       slog.Default(),
		maxRetries:   DefaultMaxRetries,
		lease:        DefaultLease,
		backoff:      DefaultBackoff(),
		storageRetry: DefaultRetryConfig(),
		claimRetry:   ClaimRetryConfig(),
	}
	for _, opt := range opts {
		opt.Apply(o)
	}
	return o
}

// Storage returns the underlying storage.
func (o *Orchestrator) Storage() core.Storage {
	return o.storage
}

// Lease returns the claim lease duration.
func (o *Orchestrator) Lease() time.Duration {
	return o.lease
}

// Enqueue creates a PENDING job for the document at path. It is idempotent by
// source path: a second call returns core.ErrAlreadyEnqueued.
func (o *Orchestrator) Enqueue(ctx context.Context, path string) (*core.IngestionJob, error) {
	return o.enqueue(ctx, path, filepath.Base(path))
}

// Submit stores an uploaded document in the intake area and enqueues it.
func (o *Orchestrator) Submit(ctx context.Context, name string, r io.Reader) (*core.IngestionJob, error) {
	if o.uploader == nil {
		return nil, core.ErrUploadsDisabled
	}
	original, err := security.SanitizeFilename(name)
	if err != nil {
		return nil, err
	}
	path, err := o.uploader.Store(name, r)
	if err != nil {
		return nil, err
	}
	return o.enqueue(ctx, path, original)
}

func (o *Orchestrator) enqueue(ctx context.Context, path, original string) (*core.IngestionJob, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("ingest: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("ingest: %s is a directory", abs)
	}

	mime := "application/octet-stream"
	if m, err := mimetype.DetectFile(abs); err == nil {
		mime = m.String()
	}

	job := &core.IngestionJob{
		SourcePath:       abs,
		OriginalFilename: original,
		FileSizeBytes:    info.Size(),
		MimeType:         mime,
		Status:           core.StatusPending,
		MaxRetries:       o.maxRetries,
	}
	if err := o.storage.EnqueueIfAbsent(ctx, job); err != nil {
		if errors.Is(err, core.ErrAlreadyEnqueued) {
			return nil, err
		}
		return nil, fmt.Errorf("ingest: failed to enqueue: %w", err)
	}

	o.logger.Info("job enqueued", "job_id", job.ID, "source", abs, "mime", mime)
	o.Emit(&core.JobEnqueued{Job: job, Timestamp: time.Now()})
	return job, nil
}

// Claim locks the next eligible job for workerID. Returns nil when nothing is due.
func (o *Orchestrator) Claim(ctx context.Context, workerID string) (*core.IngestionJob, error) {
	var job *core.IngestionJob
	err := retryWithBackoff(ctx, o.claimRetry, func() error {
		var claimErr error
		job, claimErr = o.storage.Claim(ctx, workerID, o.lease)
		return claimErr
	})
	return job, err
}

// Heartbeat extends workerID's lease on a job.
func (o *Orchestrator) Heartbeat(ctx context.Context, jobID, workerID string) error {
	return retryWithBackoff(ctx, o.storageRetry, func() error {
		return o.storage.Heartbeat(ctx, jobID, workerID, o.lease)
	})
}

// ReleaseStaleClaims counts every expired lease as a transient failure.
func (o *Orchestrator) ReleaseStaleClaims(ctx context.Context) (int64, error) {
	n, err := o.storage.ReleaseStaleClaims(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.logger.Warn("released stale claims", "count", n)
	}
	return n, nil
}

// Process runs the pipeline over a job workerID has claimed and persists the
// resulting transition. Stage failures and panics become transitions; the
// returned error is only a storage failure.
func (o *Orchestrator) Process(ctx context.Context, job *core.IngestionJob, workerID string) (*core.IngestionJob, error) {
	return o.process(ctx, job, workerID, "")
}

func (o *Orchestrator) process(ctx context.Context, job *core.IngestionJob, workerID, notes string) (*core.IngestionJob, error) {
	started := time.Now()

	o.callStartHooks(ctx, job)
	o.Emit(&core.JobStarted{Job: job, WorkerID: workerID, Timestamp: started})

	res := o.run(ctx, job, notes)

	resolution, err := o.finalize(ctx, job, workerID, res)
	if err != nil {
		o.logger.Error("failed to record job outcome", "job_id", job.ID, "outcome", res.Outcome, "error", err)
		return nil, err
	}

	o.logger.Info("job processed",
		"job_id", job.ID,
		"status", resolution.Status,
		"retries", resolution.Retries,
		"duration", time.Since(started),
	)
	return o.afterTransition(ctx, job, core.StatusProcessing, resolution, res.Err, started), nil
}

// run invokes the pipeline, converting a panic into a transient failure.
func (o *Orchestrator) run(ctx context.Context, job *core.IngestionJob, notes string) (res *pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic", "job_id", job.ID, "panic", r)
			res = &pipeline.Result{
				Outcome: core.OutcomeTransient,
				Err:     fmt.Errorf("panic: %v", r),
				Meta:    job.Meta.Data(),
			}
		}
	}()
	return o.pipeline.Run(ctx, job, notes)
}

// finalize decides the transition for res and writes it. A completed candidate
// becomes a recipe first; the fingerprint and the status change commit together.
func (o *Orchestrator) finalize(ctx context.Context, job *core.IngestionJob, workerID string, res *pipeline.Result) (*core.Resolution, error) {
	var recipeID string
	if res.Outcome == core.OutcomeCompleted {
		id, err := o.recipes.Create(ctx, res.Candidate)
		if err != nil {
			res.Err = core.Transient(core.StageFinalize, fmt.Errorf("create recipe: %w", err))
			res.Outcome = core.OutcomeTransient
		} else {
			recipeID = id
		}
	}

	tr, err := core.Decide(core.StatusProcessing, res.Outcome, job.Retries, job.MaxRetries)
	if err != nil {
		return nil, err
	}
	resolution := o.resolution(tr, res)
	if recipeID != "" {
		resolution.RecipeID = &recipeID
		resolution.Fingerprint = res.Fingerprint.Record(recipeID)
	}

	err = o.finish(ctx, job.ID, workerID, resolution)
	if recipeID == "" || err == nil {
		return resolution, err
	}

	// The recipe must not outlive a transition that did not commit.
	o.discardRecipe(ctx, recipeID)
	if !errors.Is(err, core.ErrDuplicateFingerprint) {
		return nil, err
	}

	// A concurrent twin finalized first.
	twin, err := o.twinResolution(ctx, resolution, res.Fingerprint.Hash)
	if err != nil {
		return nil, err
	}
	if err := o.finish(ctx, job.ID, workerID, twin); err != nil {
		return nil, err
	}
	return twin, nil
}

func (o *Orchestrator) resolution(tr core.Transition, res *pipeline.Result) *core.Resolution {
	r := &core.Resolution{
		Status:       tr.To,
		Retries:      tr.Retries,
		FailureKind:  tr.FailureKind,
		Confidence:   res.Confidence,
		ErrorMessage: res.Message(),
		Meta:         res.Meta,
	}
	if tr.Retry() {
		at := time.Now().Add(o.backoff.Delay(tr.Retries))
		r.NextAttemptAt = &at
	}
	if tr.To == core.StatusCompletedDuplicate && res.Duplicate != nil {
		id := res.Duplicate.RecipeID
		r.DuplicateOf = &id
	}
	return r
}

// twinResolution rewrites a completion as a duplicate of the recipe that
// already owns the fingerprint hash.
func (o *Orchestrator) twinResolution(ctx context.Context, base *core.Resolution, hash string) (*core.Resolution, error) {
	existing, err := o.storage.FindFingerprintByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: conflicting fingerprint %s vanished", core.ErrDuplicateFingerprint, hash)
	}

	twin := *base
	twin.Status = core.StatusCompletedDuplicate
	twin.RecipeID = nil
	twin.Fingerprint = nil
	twin.DuplicateOf = &existing.RecipeID
	twin.Meta.Duplicate = &core.DuplicateInfo{
		RecipeID:   existing.RecipeID,
		Match:      core.MatchExact,
		Similarity: 1,
	}
	return &twin, nil
}

func (o *Orchestrator) finish(ctx context.Context, jobID, workerID string, res *core.Resolution) error {
	return retryWithBackoff(ctx, o.storageRetry, func() error {
		return o.storage.Finish(ctx, jobID, workerID, res)
	})
}

func (o *Orchestrator) discardRecipe(ctx context.Context, recipeID string) {
	if err := o.recipes.Delete(ctx, recipeID); err != nil {
		o.logger.Error("failed to delete orphaned recipe", "recipe_id", recipeID, "error", err)
	}
}

// afterTransition moves the source file, reloads the job and notifies
// subscribers. It runs only after the transition has been persisted.
func (o *Orchestrator) afterTransition(ctx context.Context, job *core.IngestionJob, from core.JobStatus, res *core.Resolution, cause error, started time.Time) *core.IngestionJob {
	o.archive(ctx, job, res)

	updated, err := o.storage.GetJob(ctx, job.ID)
	if err != nil || updated == nil {
		o.logger.Warn("failed to reload job", "job_id", job.ID, "error", err)
		updated = job
		updated.Status = res.Status
		updated.Retries = res.Retries
		updated.FailureKind = res.FailureKind
	}

	o.callTransitionHooks(ctx, updated, cause)
	o.Emit(&core.JobTransitioned{
		Job:        updated,
		From:       from,
		To:         res.Status,
		Confidence: res.Confidence,
		Error:      cause,
		Duration:   time.Since(started),
		Timestamp:  time.Now(),
	})
	return updated
}

// archive moves the source document once a job will not be picked up again.
func (o *Orchestrator) archive(ctx context.Context, job *core.IngestionJob, res *core.Resolution) {
	if o.archiver == nil || !archivable(res) {
		return
	}
	dest, err := o.archiver.Archive(job.SourcePath, res.Status)
	if err != nil {
		o.logger.Warn("failed to archive source document", "job_id", job.ID, "path", job.SourcePath, "error", err)
		return
	}
	if dest == "" || dest == job.SourcePath {
		return
	}
	if err := o.storage.UpdateSourcePath(ctx, job.ID, dest); err != nil {
		o.logger.Error("failed to record archived path", "job_id", job.ID, "path", dest, "error", err)
		return
	}
	job.SourcePath = dest
}

func archivable(res *core.Resolution) bool {
	switch res.Status {
	case core.StatusCompleted, core.StatusCompletedDuplicate, core.StatusDLQ, core.StatusRejected:
		return true
	case core.StatusFailed:
		return !res.FailureKind.Retryable()
	}
	return false
}

// Reprocess sends a FAILED, DLQ or REJECTED job back to PENDING with a fresh retry budget.
func (o *Orchestrator) Reprocess(ctx context.Context, jobID string) (*core.IngestionJob, error) {
	job, err := o.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	from := job.Status
	if err := o.storage.Reprocess(ctx, jobID); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: cannot reprocess a %s job", err, from)
		}
		return nil, err
	}

	updated, err := o.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	o.logger.Info("job reprocessed", "job_id", jobID, "from", from)
	o.Emit(&core.JobTransitioned{Job: updated, From: from, To: core.StatusPending, Timestamp: time.Now()})
	return updated, nil
}

// ListJobs returns a page of jobs and the total matching the filter.
func (o *Orchestrator) ListJobs(ctx context.Context, filter core.JobFilter) ([]*core.IngestionJob, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", core.ErrInvalidFilter, filter.Status)
	}
	filter.Limit = security.ClampPageSize(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return o.storage.ListJobs(ctx, filter)
}

// GetJob returns a job with its review history.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*JobDetail, error) {
	job, err := o.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	reviews, err := o.storage.ListReviews(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: job, Reviews: reviews}, nil
}

// Stats returns job counts and rates.
func (o *Orchestrator) Stats(ctx context.Context) (*core.Stats, error) {
	return o.storage.GetStats(ctx)
}
