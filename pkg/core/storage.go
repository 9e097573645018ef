package core

import (
	"context"
	"time"
)

// Starter is the interface for long-running components.
type Starter interface {
	Start(ctx context.Context) error
}

// Resolution is the full state written when a job leaves PROCESSING or NEEDS_REVIEW.
type Resolution struct {
	Status        JobStatus
	Retries       int
	FailureKind   FailureKind
	NextAttemptAt *time.Time
	Confidence    *float64
	ErrorMessage  string
	RecipeID      *string
	DuplicateOf   *string
	Meta          Meta

	// Fingerprint is inserted in the same transaction when the job completes.
	Fingerprint *RecipeFingerprint

	ReviewerNotes string
	ReviewedAt    *time.Time

	// Review is appended in the same transaction as the status change.
	Review *IngestionReview
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status JobStatus
	Search string // matches id, filename or source path
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// Stats aggregates job counts for health checks.
type Stats struct {
	Counts            map[JobStatus]int64 `json:"counts"`
	Total             int64               `json:"total"`
	SuccessRate       float64             `json:"success_rate"`
	ReviewRate        float64             `json:"review_rate"`
	AverageConfidence *float64            `json:"average_confidence"`
	DLQSize           int64               `json:"dlq_size"`
	Fingerprints      int64               `json:"fingerprints"`
}

// Storage defines the persistence layer for ingestion state.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Intake
	Enqueue(ctx context.Context, job *IngestionJob) error
	EnqueueIfAbsent(ctx context.Context, job *IngestionJob) error

	// Claiming
	Claim(ctx context.Context, workerID string, lease time.Duration) (*IngestionJob, error)
	ClaimJob(ctx context.Context, jobID, workerID string, lease time.Duration) (*IngestionJob, error)
	ClaimForRevision(ctx context.Context, jobID, workerID string, lease time.Duration, review *IngestionReview) (*IngestionJob, error)
	Heartbeat(ctx context.Context, jobID, workerID string, lease time.Duration) error
	ReleaseStaleClaims(ctx context.Context) (int64, error)

	// Transitions
	Finish(ctx context.Context, jobID, workerID string, res *Resolution) error
	Resolve(ctx context.Context, jobID string, from JobStatus, res *Resolution) error
	Reprocess(ctx context.Context, jobID string) error
	UpdateSourcePath(ctx context.Context, jobID, path string) error

	// Queries
	GetJob(ctx context.Context, jobID string) (*IngestionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestionJob, int64, error)
	GetStats(ctx context.Context) (*Stats, error)

	// Fingerprints
	FindFingerprintByHash(ctx context.Context, hash string) (*RecipeFingerprint, error)
	FindFingerprintCandidates(ctx context.Context, cuisine string, minMinutes, maxMinutes int) ([]RecipeFingerprint, error)

	// Reviews
	ListReviews(ctx context.Context, jobID string) ([]IngestionReview, error)
}
