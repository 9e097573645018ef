package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/dedupe"
	"github.com/jdziat/recipe-ingest/pkg/validate"
)

// RevisionWorkerPrefix marks claims taken by a reviewer-requested revision pass.
const RevisionWorkerPrefix = "review:"

// awaitingReview loads a job and checks it is still in NEEDS_REVIEW.
func (o *Orchestrator) awaitingReview(ctx context.Context, jobID string) (*core.IngestionJob, error) {
	job, err := o.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	if job.Status != core.StatusNeedsReview {
		return nil, fmt.Errorf("%w: job is %s, not %s", core.ErrInvalidTransition, job.Status, core.StatusNeedsReview)
	}
	return job, nil
}

// reviewBase carries the job's current state into a reviewer-driven resolution.
// The review row is written in the same transaction as the transition.
func reviewBase(job *core.IngestionJob, rv *core.IngestionReview) core.Resolution {
	now := time.Now()
	return core.Resolution{
		Retries:       job.Retries,
		Confidence:    job.ConfidenceScore,
		ErrorMessage:  job.ErrorMessage,
		Meta:          job.Meta.Data(),
		ReviewerNotes: rv.Notes,
		ReviewedAt:    &now,
		Review:        rv,
	}
}

// stamp binds rv to jobID and decision d.
func stamp(rv *core.IngestionReview, jobID string, d core.Decision) *core.IngestionReview {
	if rv == nil {
		rv = &core.IngestionReview{}
	}
	rv.JobID = jobID
	rv.Decision = d
	return rv
}

// Approve finalizes the stored candidate of a NEEDS_REVIEW job. A candidate
// whose fingerprint hash already exists resolves as a duplicate. rv is
// appended to the job's review history only if the transition commits.
func (o *Orchestrator) Approve(ctx context.Context, jobID string, rv *core.IngestionReview) (*core.IngestionJob, error) {
	started := time.Now()
	rv = stamp(rv, jobID, core.DecisionApproved)
	job, err := o.awaitingReview(ctx, jobID)
	if err != nil {
		return nil, err
	}
	cand := job.Candidate()
	if cand == nil {
		return nil, core.ErrNoCandidate
	}
	if report := validate.Validate(validate.Input{Candidate: cand}); report.Rejected {
		return nil, fmt.Errorf("%w: %s", core.ErrNoCandidate, report.Reason)
	}

	base := reviewBase(job, rv)
	base.ErrorMessage = ""
	fp := dedupe.Compute(cand)

	existing, err := o.storage.FindFingerprintByHash(ctx, fp.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return o.resolveDuplicate(ctx, job, base, existing, started)
	}

	recipeID, err := o.recipes.Create(ctx, cand)
	if err != nil {
		return nil, fmt.Errorf("ingest: create recipe: %w", err)
	}
	res := base
	res.Status = core.StatusCompleted
	res.RecipeID = &recipeID
	res.Fingerprint = fp.Record(recipeID)

	err = o.storage.Resolve(ctx, jobID, core.StatusNeedsReview, &res)
	if err != nil {
		o.discardRecipe(ctx, recipeID)
		if !errors.Is(err, core.ErrDuplicateFingerprint) {
			return nil, err
		}
		existing, lookupErr := o.storage.FindFingerprintByHash(ctx, fp.Hash)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, err
		}
		return o.resolveDuplicate(ctx, job, base, existing, started)
	}

	o.logger.Info("job approved", "job_id", jobID, "recipe_id", recipeID)
	return o.afterTransition(ctx, job, core.StatusNeedsReview, &res, nil, started), nil
}

func (o *Orchestrator) resolveDuplicate(ctx context.Context, job *core.IngestionJob, base core.Resolution, existing *core.RecipeFingerprint, started time.Time) (*core.IngestionJob, error) {
	res := base
	res.Status = core.StatusCompletedDuplicate
	res.DuplicateOf = &existing.RecipeID
	res.Meta.Duplicate = &core.DuplicateInfo{
		RecipeID:   existing.RecipeID,
		Match:      core.MatchExact,
		Similarity: 1,
	}
	if err := o.storage.Resolve(ctx, job.ID, core.StatusNeedsReview, &res); err != nil {
		return nil, err
	}
	o.logger.Info("approved job is a duplicate", "job_id", job.ID, "duplicate_of", existing.RecipeID)
	return o.afterTransition(ctx, job, core.StatusNeedsReview, &res, nil, started), nil
}

// Reject moves a NEEDS_REVIEW job to REJECTED. No recipe is created.
func (o *Orchestrator) Reject(ctx context.Context, jobID string, rv *core.IngestionReview) (*core.IngestionJob, error) {
	started := time.Now()
	rv = stamp(rv, jobID, core.DecisionRejected)
	job, err := o.awaitingReview(ctx, jobID)
	if err != nil {
		return nil, err
	}
	res := reviewBase(job, rv)
	res.Status = core.StatusRejected
	if err := o.storage.Resolve(ctx, jobID, core.StatusNeedsReview, &res); err != nil {
		return nil, err
	}
	o.logger.Info("job rejected", "job_id", jobID)
	return o.afterTransition(ctx, job, core.StatusNeedsReview, &res, nil, started), nil
}

// Revise claims a NEEDS_REVIEW job under a reviewer stamp and runs one full
// pipeline pass synchronously with the review notes passed to the parser.
// The claim records rv and does not touch the retry count. The lease is
// extended while the pass runs.
func (o *Orchestrator) Revise(ctx context.Context, jobID string, rv *core.IngestionReview) (*core.IngestionJob, error) {
	rv = stamp(rv, jobID, core.DecisionNeedsRevision)
	if _, err := o.awaitingReview(ctx, jobID); err != nil {
		return nil, err
	}
	owner := RevisionWorkerPrefix + uuid.NewString()
	job, err := o.storage.ClaimForRevision(ctx, jobID, owner, o.lease, rv)
	if err != nil {
		return nil, err
	}
	o.logger.Info("job sent for revision", "job_id", jobID)

	hbCtx, stop := context.WithCancel(ctx)
	defer stop()
	go o.keepAlive(hbCtx, jobID, owner)

	return o.process(ctx, job, owner, rv.Notes)
}

// keepAlive heartbeats a claim every third of the lease until ctx ends or
// the claim is lost.
func (o *Orchestrator) keepAlive(ctx context.Context, jobID, owner string) {
	ticker := time.NewTicker(o.heartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := o.Heartbeat(ctx, jobID, owner)
			switch {
			case err == nil:
			case errors.Is(err, core.ErrJobNotOwned):
				if ctx.Err() == nil {
					o.logger.Warn("lost revision claim", "job_id", jobID)
				}
				return
			case ctx.Err() == nil:
				o.logger.Warn("revision heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}

func (o *Orchestrator) heartbeatInterval() time.Duration {
	if d := o.lease / 3; d > 0 {
		return d
	}
	return time.Second
}
