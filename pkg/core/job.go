// Package core provides the domain models and interfaces for the ingestion pipeline.
package core

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus represents the current state of an ingestion job.
type JobStatus string

const (
	StatusPending            JobStatus = "PENDING"
	StatusProcessing         JobStatus = "PROCESSING"
	StatusNeedsReview        JobStatus = "NEEDS_REVIEW"
	StatusCompleted          JobStatus = "COMPLETED"
	StatusCompletedDuplicate JobStatus = "COMPLETED_DUPLICATE"
	StatusFailed             JobStatus = "FAILED"
	StatusDLQ                JobStatus = "DLQ"
	StatusRejected           JobStatus = "REJECTED" // Reviewer rejected, no recipe created
)

// AllStatuses lists every job status in lifecycle order.
var AllStatuses = []JobStatus{
	StatusPending,
	StatusProcessing,
	StatusNeedsReview,
	StatusCompleted,
	StatusCompletedDuplicate,
	StatusFailed,
	StatusDLQ,
	StatusRejected,
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no worker will pick the job up again without operator action.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedDuplicate, StatusDLQ, StatusRejected:
		return true
	}
	return false
}

// FailureKind records why the last attempt failed, which decides retry eligibility.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransient FailureKind = "transient"
	FailureFormat    FailureKind = "format"
	FailureSchema    FailureKind = "schema"
)

// Retryable reports whether a FAILED job of this kind may be claimed again automatically.
func (k FailureKind) Retryable() bool {
	return k == FailureTransient || k == FailureSchema
}

// IngestionJob is one unit of ingestion work, tracked from file intake to terminal outcome.
type IngestionJob struct {
	ID               string `gorm:"primaryKey;size:36"`
	SourcePath       string `gorm:"uniqueIndex:idx_ingestion_jobs_source_path_unique;size:1024;not null"`
	OriginalFilename string `gorm:"size:255;not null"`
	FileSizeBytes    int64
	MimeType         string `gorm:"size:255"`

	Status        JobStatus   `gorm:"index;size:32;default:'PENDING'"`
	Retries       int         `gorm:"default:0"`
	MaxRetries    int         `gorm:"default:3"`
	FailureKind   FailureKind `gorm:"size:16"`
	NextAttemptAt *time.Time  `gorm:"index"`

	ConfidenceScore     *float64
	RecipeID            *string `gorm:"index;size:36"`
	DuplicateOfRecipeID *string `gorm:"index;size:36"`

	Meta          datatypes.JSONType[Meta]
	ErrorMessage  string `gorm:"type:text"`
	ReviewerNotes string `gorm:"type:text"`

	LockedBy    string     `gorm:"size:255"`
	LockedUntil *time.Time `gorm:"index"`

	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
	ReviewedAt            *time.Time
}

// TableName pins the table name independent of the struct name.
func (IngestionJob) TableName() string { return "ingestion_jobs" }

// Eligible reports whether a worker may claim the job at time now.
func (j *IngestionJob) Eligible(now time.Time) bool {
	switch j.Status {
	case StatusPending:
		return true
	case StatusFailed:
		if !j.FailureKind.Retryable() || j.Retries >= j.MaxRetries {
			return false
		}
		return j.NextAttemptAt == nil || !j.NextAttemptAt.After(now)
	}
	return false
}

// Candidate returns the last validated candidate stored in meta, if any.
func (j *IngestionJob) Candidate() *Candidate {
	return j.Meta.Data().Candidate
}

// Meta is the diagnostic document attached to a job. Every key is optional and
// nothing in the state machine reads it except the stored candidate.
type Meta struct {
	DetectedLanguage    string  `json:"detected_language,omitempty"`
	LanguageConfidence  float64 `json:"language_confidence,omitempty"`
	Translated          bool    `json:"translated,omitempty"`
	TranslationDegraded bool    `json:"translation_degraded,omitempty"`
	OriginalExcerpt     string  `json:"original_excerpt,omitempty"`

	ExtractionMethod string `json:"extraction_method,omitempty"`
	PageCount        int    `json:"page_count,omitempty"`

	Provider   string      `json:"provider,omitempty"`
	Model      string      `json:"model,omitempty"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
	RawOutput  string      `json:"raw_output,omitempty"`

	Candidate     *Candidate     `json:"candidate,omitempty"`
	Corrections   []string       `json:"corrections,omitempty"`
	QualityIssues []string       `json:"quality_issues,omitempty"`
	Duplicate     *DuplicateInfo `json:"duplicate,omitempty"`
	RevisionNotes string         `json:"revision_notes,omitempty"`
	ProcessingMS  int64          `json:"processing_ms,omitempty"`

	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// TokenUsage is the provider-reported token accounting for one AI call.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// DuplicateMatch names how a duplicate was found.
type DuplicateMatch string

const (
	MatchExact DuplicateMatch = "exact"
	MatchFuzzy DuplicateMatch = "fuzzy"
)

// DuplicateInfo describes the existing recipe a candidate collided with.
type DuplicateInfo struct {
	RecipeID   string         `json:"recipe_id"`
	Match      DuplicateMatch `json:"match"`
	Similarity float64        `json:"similarity"`
}

// RecipeFingerprint is the normalized summary of a finalized recipe.
type RecipeFingerprint struct {
	ID                string    `gorm:"primaryKey;size:36"`
	RecipeID          string    `gorm:"uniqueIndex;size:36;not null"`
	TitleNormalized   string    `gorm:"size:512;not null"`
	CuisineNormalized string    `gorm:"index;size:255"`
	TotalTimeMinutes  int       `gorm:"index"`
	FingerprintHash   string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

// TableName pins the table name independent of the struct name.
func (RecipeFingerprint) TableName() string { return "recipe_fingerprints" }

// Decision is a reviewer's verdict on a job in NEEDS_REVIEW.
type Decision string

const (
	DecisionApproved      Decision = "APPROVED"
	DecisionRejected      Decision = "REJECTED"
	DecisionNeedsRevision Decision = "NEEDS_REVISION"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionNeedsRevision:
		return true
	}
	return false
}

// IngestionReview is one append-only entry in a job's review history.
type IngestionReview struct {
	ID        string    `gorm:"primaryKey;size:36"`
	JobID     string    `gorm:"index;size:36;not null"`
	Decision  Decision  `gorm:"size:32;not null"`
	Notes     string    `gorm:"type:text"`
	Reviewer  string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName pins the table name independent of the struct name.
func (IngestionReview) TableName() string { return "ingestion_reviews" }
