// Package pipeline runs one full pass of the ingestion stages over a job:
// extract, normalize, parse, validate and dedupe. It never writes job state;
// the orchestrator turns the returned Result into a transition.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/dedupe"
	"github.com/jdziat/recipe-ingest/pkg/extract"
	"github.com/jdziat/recipe-ingest/pkg/language"
	"github.com/jdziat/recipe-ingest/pkg/validate"
)

// DefaultConfidenceThreshold is the score below which a candidate goes to review.
const DefaultConfidenceThreshold = 0.75

// Timeouts bounds the extract and parse stages. Translation carries its own
// timeout inside the language.Normalizer.
type Timeouts struct {
	Extract time.Duration
	Parse   time.Duration
}

// DefaultTimeouts returns the stage timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{Extract: 30 * time.Second, Parse: 60 * time.Second}
}

// Result is the explicit outcome of a pipeline pass.
type Result struct {
	Outcome core.Outcome

	// Err is the stage failure for failure outcomes.
	Err error
	// Reason explains a review outcome.
	Reason string

	Candidate   *core.Candidate
	Confidence  *float64
	Fingerprint dedupe.Fingerprint
	Duplicate   *dedupe.Match
	Meta        core.Meta
}

// Message is the human-readable text stored in error_message.
func (r *Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Reason
}

// Runner wires the stages together.
type Runner struct {
	extractor  *extract.Extractor
	normalizer *language.Normalizer
	parser     core.Parser
	detector   *dedupe.Detector
	threshold  float64
	timeouts   Timeouts
	emit       func(core.Event)
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithThreshold sets the confidence threshold.
func WithThreshold(t float64) Option {
	return func(r *Runner) { r.threshold = t }
}

// WithTimeouts sets stage timeouts. Zero values keep the defaults.
func WithTimeouts(t Timeouts) Option {
	return func(r *Runner) {
		if t.Extract > 0 {
			r.timeouts.Extract = t.Extract
		}
		if t.Parse > 0 {
			r.timeouts.Parse = t.Parse
		}
	}
}

// WithEmitter receives a StageCompleted event after every stage.
func WithEmitter(emit func(core.Event)) Option {
	return func(r *Runner) { r.emit = emit }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner.
func New(ex *extract.Extractor, norm *language.Normalizer, parser core.Parser, det *dedupe.Detector, opts ...Option) *Runner {
	r := &Runner{
		extractor:  ex,
		normalizer: norm,
		parser:     parser,
		detector:   det,
		threshold:  DefaultConfidenceThreshold,
		timeouts:   DefaultTimeouts(),
		emit:       func(core.Event) {},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Threshold returns the configured confidence threshold.
func (r *Runner) Threshold() float64 {
	return r.threshold
}

// Timeouts returns the effective stage timeouts.
func (r *Runner) Timeouts() Timeouts {
	return r.timeouts
}

// Run processes job once. notes are reviewer guidance for a revision pass.
func (r *Runner) Run(ctx context.Context, job *core.IngestionJob, notes string) *Result {
	started := time.Now()
	res := &Result{Meta: core.Meta{Diagnostics: job.Meta.Data().Diagnostics}}
	res.Meta.RevisionNotes = notes
	defer func() { res.Meta.ProcessingMS = time.Since(started).Milliseconds() }()

	// Extract
	var doc *extract.Result
	err := r.stage(job.ID, core.StageExtract, func() error {
		sctx, cancel := context.WithTimeout(ctx, r.timeouts.Extract)
		defer cancel()
		var err error
		doc, err = r.extractor.ExtractFile(sctx, job.SourcePath)
		return err
	})
	if err != nil {
		return res.fail(err)
	}
	res.Meta.ExtractionMethod = string(doc.Format)
	res.Meta.PageCount = doc.Pages

	// Normalize
	var norm *language.Result
	_ = r.stage(job.ID, core.StageNormalize, func() error {
		norm = r.normalizer.Normalize(ctx, doc.Text)
		return nil
	})
	res.Meta.DetectedLanguage = norm.Language
	res.Meta.LanguageConfidence = norm.Confidence
	res.Meta.Translated = norm.Translated
	res.Meta.TranslationDegraded = norm.Degraded
	res.Meta.OriginalExcerpt = norm.Original

	// Parse
	var parsed *core.ParseResult
	err = r.stage(job.ID, core.StageParse, func() error {
		sctx, cancel := context.WithTimeout(ctx, r.timeouts.Parse)
		defer cancel()
		var err error
		parsed, err = r.parser.Parse(sctx, core.ParseRequest{
			Text:     norm.Text,
			Language: r.normalizer.Canonical(),
			Notes:    notes,
		})
		return err
	})
	if parsed != nil {
		res.Meta.Provider = parsed.Provider
		res.Meta.Model = parsed.Model
		res.Meta.TokenUsage = parsed.Usage
		res.Meta.RawOutput = parsed.Raw
	}
	if err != nil {
		return res.fail(err)
	}
	if parsed.Candidate == nil {
		return res.fail(core.Schema(core.StageParse, fmt.Errorf("%w: empty candidate", core.ErrMalformedOutput)))
	}

	// Validate
	var report *validate.Report
	_ = r.stage(job.ID, core.StageValidate, func() error {
		report = validate.Validate(validate.Input{
			Candidate:           parsed.Candidate,
			Confidence:          parsed.Confidence,
			TranslationDegraded: norm.Degraded,
		})
		return nil
	})
	res.Meta.Corrections = report.Corrections
	res.Meta.QualityIssues = report.QualityIssues
	if report.Rejected {
		res.Meta.Candidate = parsed.Candidate
		res.Outcome = core.OutcomeNeedsReview
		res.Reason = "validation rejected candidate: " + report.Reason
		return res
	}
	res.Candidate = report.Candidate
	res.Meta.Candidate = report.Candidate
	conf := report.Confidence
	res.Confidence = &conf
	res.Fingerprint = dedupe.Compute(report.Candidate)

	// Dedupe
	var match *dedupe.Match
	err = r.stage(job.ID, core.StageDedupe, func() error {
		var err error
		match, err = r.detector.Check(ctx, res.Fingerprint)
		return err
	})
	if err != nil {
		return res.fail(err)
	}
	if match != nil {
		res.Duplicate = match
		res.Meta.Duplicate = match.Info()
	}

	switch {
	case conf < r.threshold:
		res.Outcome = core.OutcomeNeedsReview
		res.Reason = fmt.Sprintf("confidence %.4f below threshold %.2f", conf, r.threshold)
	case match != nil:
		res.Outcome = core.OutcomeDuplicate
	default:
		res.Outcome = core.OutcomeCompleted
	}
	return res
}

func (r *Runner) stage(jobID string, stage core.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	r.emit(&core.StageCompleted{
		JobID:     jobID,
		Stage:     stage,
		Duration:  time.Since(start),
		Err:       err,
		Timestamp: time.Now(),
	})
	if err != nil {
		r.logger.Debug("stage failed", "job_id", jobID, "stage", stage, "error", err)
	}
	return err
}

func (res *Result) fail(err error) *Result {
	res.Err = err
	res.Outcome = core.OutcomeForError(err)
	return res
}
