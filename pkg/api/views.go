package api

import (
	"time"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/orchestrator"
)

// Job is the wire form of an ingestion job.
type Job struct {
	ID                  string           `json:"id"`
	SourcePath          string           `json:"source_path"`
	OriginalFilename    string           `json:"original_filename"`
	FileSizeBytes       int64            `json:"file_size_bytes"`
	MimeType            string           `json:"mime_type,omitempty"`
	Status              core.JobStatus   `json:"status"`
	Retries             int              `json:"retries"`
	MaxRetries          int              `json:"max_retries"`
	FailureKind         core.FailureKind `json:"failure_kind,omitempty"`
	NextAttemptAt       *time.Time       `json:"next_attempt_at,omitempty"`
	ConfidenceScore     *float64         `json:"confidence_score,omitempty"`
	RecipeID            *string          `json:"recipe_id,omitempty"`
	DuplicateOfRecipeID *string          `json:"duplicate_of_recipe_id,omitempty"`
	ErrorMessage        string           `json:"error_message,omitempty"`
	ReviewerNotes       string           `json:"reviewer_notes,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	ProcessingStartedAt *time.Time       `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time       `json:"processing_completed_at,omitempty"`
	ReviewedAt          *time.Time       `json:"reviewed_at,omitempty"`
}

// JobDetail adds meta and review history to a job.
type JobDetail struct {
	Job
	Meta    core.Meta `json:"meta"`
	Reviews []Review  `json:"reviews"`
}

// Review is the wire form of a review history row.
type Review struct {
	ID        string        `json:"id"`
	Decision  core.Decision `json:"decision"`
	Notes     string        `json:"notes,omitempty"`
	Reviewer  string        `json:"reviewer,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// JobList is one page of jobs.
type JobList struct {
	Jobs   []Job `json:"jobs"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// IngestionStatus reports worker activity alongside job stats.
type IngestionStatus struct {
	Running   bool        `json:"running"`
	WorkerID  string      `json:"worker_id,omitempty"`
	InFlight  int64       `json:"in_flight"`
	Processed int64       `json:"processed"`
	Stats     *core.Stats `json:"stats"`
}

func jobToWire(j *core.IngestionJob) Job {
	return Job{
		ID:                  j.ID,
		SourcePath:          j.SourcePath,
		OriginalFilename:    j.OriginalFilename,
		FileSizeBytes:       j.FileSizeBytes,
		MimeType:            j.MimeType,
		Status:              j.Status,
		Retries:             j.Retries,
		MaxRetries:          j.MaxRetries,
		FailureKind:         j.FailureKind,
		NextAttemptAt:       j.NextAttemptAt,
		ConfidenceScore:     j.ConfidenceScore,
		RecipeID:            j.RecipeID,
		DuplicateOfRecipeID: j.DuplicateOfRecipeID,
		ErrorMessage:        j.ErrorMessage,
		ReviewerNotes:       j.ReviewerNotes,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
		ProcessingStartedAt: j.ProcessingStartedAt,
		CompletedAt:         j.ProcessingCompletedAt,
		ReviewedAt:          j.ReviewedAt,
	}
}

func reviewToWire(r *core.IngestionReview) Review {
	return Review{
		ID:        r.ID,
		Decision:  r.Decision,
		Notes:     r.Notes,
		Reviewer:  r.Reviewer,
		CreatedAt: r.CreatedAt,
	}
}

func detailToWire(d *orchestrator.JobDetail) JobDetail {
	out := JobDetail{
		Job:     jobToWire(d.Job),
		Meta:    d.Job.Meta.Data(),
		Reviews: make([]Review, 0, len(d.Reviews)),
	}
	for i := range d.Reviews {
		out.Reviews = append(out.Reviews, reviewToWire(&d.Reviews[i]))
	}
	return out
}
