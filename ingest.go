// Package ingest turns recipe documents into structured recipes.
//
// This is the package embedders should import. It re-exports the public
// types from the pkg/ packages and the assembled service from internal/app.
//
// Basic usage:
//
//	cfg, _ := ingest.LoadConfig("ingest.yaml")
//	logger, closeLog, _ := ingest.SetupLogger(cfg)
//	defer closeLog()
//
//	svc, _ := ingest.Open(cfg, logger)
//	defer svc.Close()
//	svc.Migrate(ctx)
//
//	// Drop files into svc.Dirs.Inbox() or submit them directly
//	job, _ := svc.Orchestrator.Submit(ctx, "carbonara.pdf", f)
//
//	// Run workers, watcher, maintenance and the HTTP API until ctx ends
//	svc.Serve(ctx)
package ingest

import (
	"log/slog"

	"github.com/jdziat/recipe-ingest/internal/app"
	"github.com/jdziat/recipe-ingest/internal/config"
	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/orchestrator"
	"github.com/jdziat/recipe-ingest/pkg/review"
)

type (
	// App is a fully wired ingestion service.
	App = app.App

	// Config holds every runtime setting.
	Config = config.Config

	// Option customizes Open.
	Option = app.Option

	// IngestionJob is one document's trip through the pipeline.
	IngestionJob = core.IngestionJob

	// IngestionReview is one entry in a job's review history.
	IngestionReview = core.IngestionReview

	// JobStatus is the lifecycle state of a job.
	JobStatus = core.JobStatus

	// JobFilter narrows job listings.
	JobFilter = core.JobFilter

	// JobDetail is a job together with its reviews.
	JobDetail = orchestrator.JobDetail

	// Stats aggregates job counts and rates.
	Stats = core.Stats

	// Meta is the per-job processing record.
	Meta = core.Meta

	// Candidate is the structured recipe produced by the AI model.
	Candidate = core.Candidate

	// Ingredient is one line of a candidate's ingredient list.
	Ingredient = core.Ingredient

	// Decision is a reviewer's verdict.
	Decision = core.Decision

	// ReviewRequest is a reviewer's input for a NEEDS_REVIEW job.
	ReviewRequest = review.Request

	// Parser turns document text into a candidate.
	Parser = core.Parser

	// ParseRequest is the input to a Parser.
	ParseRequest = core.ParseRequest

	// ParseResult is the output of a Parser.
	ParseResult = core.ParseResult

	// Translator turns text into the canonical language.
	Translator = core.Translator

	// Event is the interface for all ingestion events.
	Event = core.Event

	// JobEnqueued is emitted when a document gets a job.
	JobEnqueued = core.JobEnqueued

	// JobStarted is emitted when a worker claims a job.
	JobStarted = core.JobStarted

	// StageCompleted is emitted after every pipeline stage.
	StageCompleted = core.StageCompleted

	// JobTransitioned is emitted on every status change.
	JobTransitioned = core.JobTransitioned

	// JobReviewed is emitted when a review decision is recorded.
	JobReviewed = core.JobReviewed
)

// Job statuses.
const (
	StatusPending            = core.StatusPending
	StatusProcessing         = core.StatusProcessing
	StatusNeedsReview        = core.StatusNeedsReview
	StatusCompleted          = core.StatusCompleted
	StatusCompletedDuplicate = core.StatusCompletedDuplicate
	StatusFailed             = core.StatusFailed
	StatusDLQ                = core.StatusDLQ
	StatusRejected           = core.StatusRejected
)

// Review decisions.
const (
	DecisionApproved      = core.DecisionApproved
	DecisionRejected      = core.DecisionRejected
	DecisionNeedsRevision = core.DecisionNeedsRevision
)

// Errors.
var (
	ErrJobNotFound       = core.ErrJobNotFound
	ErrInvalidTransition = core.ErrInvalidTransition
	ErrAlreadyEnqueued   = core.ErrAlreadyEnqueued
	ErrNoCandidate       = core.ErrNoCandidate
	ErrInvalidDecision   = core.ErrInvalidDecision
	ErrUnsupportedFormat = core.ErrUnsupportedFormat
	ErrCorruptDocument   = core.ErrCorruptDocument
	ErrEmptyDocument     = core.ErrEmptyDocument
)

// Open wires storage, the pipeline, the orchestrator and the review gateway.
func Open(cfg *Config, logger *slog.Logger, opts ...Option) (*App, error) {
	return app.Open(cfg, logger, opts...)
}

// WithParser replaces the configured AI parser.
func WithParser(p Parser) Option {
	return app.WithParser(p)
}

// WithTranslator replaces the configured translator.
func WithTranslator(t Translator) Option {
	return app.WithTranslator(t)
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads defaults, then the YAML file at path (if any), then .env
// and RECIPE_INGEST_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// SetupLogger builds the service logger described by cfg.Log.
func SetupLogger(cfg *Config) (*slog.Logger, func() error, error) {
	return config.SetupLogger(cfg)
}
