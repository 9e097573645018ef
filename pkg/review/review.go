// Package review records reviewer decisions on jobs waiting in NEEDS_REVIEW.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

var validate = validator.New()

func init() {
	if err := validate.RegisterValidation("no_null_bytes", noNullBytes); err != nil {
		slog.Error("failed to register no_null_bytes validator", "error", err)
	}
}

// Request is one reviewer decision.
type Request struct {
	JobID    string        `json:"job_id" validate:"required,max=36"`
	Decision core.Decision `json:"decision" validate:"required,oneof=APPROVED REJECTED NEEDS_REVISION"`
	Notes    string        `json:"notes" validate:"max=4000,no_null_bytes"`
	Reviewer string        `json:"reviewer" validate:"max=255,no_null_bytes"`
}

// Transitioner applies reviewer decisions to the job lifecycle.
type Transitioner interface {
	// Each method persists review together with the transition it causes.
	Approve(ctx context.Context, jobID string, review *core.IngestionReview) (*core.IngestionJob, error)
	Reject(ctx context.Context, jobID string, review *core.IngestionReview) (*core.IngestionJob, error)
	Revise(ctx context.Context, jobID string, review *core.IngestionReview) (*core.IngestionJob, error)
	Emit(e core.Event)
}

// Outcome is the result of a recorded decision.
type Outcome struct {
	Job    *core.IngestionJob    `json:"job"`
	Review *core.IngestionReview `json:"review"`
}

// Gateway validates decisions and applies them with their review rows.
type Gateway struct {
	orch   Transitioner
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGateway creates a review gateway.
func NewGateway(orch Transitioner, opts ...Option) *Gateway {
	g := &Gateway{orch: orch, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate checks a request without applying it.
func Validate(req Request) error {
	req.Decision = core.Decision(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidDecision, describe(err))
	}
	return nil
}

// Review applies a decision. The review row commits or rolls back with the
// transition, so history holds exactly the decisions that took effect.
func (g *Gateway) Review(ctx context.Context, req Request) (*Outcome, error) {
	req.Decision = core.Decision(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	if err := Validate(req); err != nil {
		return nil, err
	}

	rev := &core.IngestionReview{
		ID:       uuid.New().String(),
		JobID:    req.JobID,
		Decision: req.Decision,
		Notes:    req.Notes,
		Reviewer: req.Reviewer,
	}
	var (
		job *core.IngestionJob
		err error
	)
	switch req.Decision {
	case core.DecisionApproved:
		job, err = g.orch.Approve(ctx, req.JobID, rev)
	case core.DecisionRejected:
		job, err = g.orch.Reject(ctx, req.JobID, rev)
	case core.DecisionNeedsRevision:
		job, err = g.orch.Revise(ctx, req.JobID, rev)
	}
	if err != nil {
		g.logger.Warn("review not applied", "job_id", req.JobID, "decision", req.Decision, "error", err)
		return nil, err
	}

	g.logger.Info("review recorded", "job_id", req.JobID, "decision", req.Decision, "reviewer", req.Reviewer, "status", job.Status)
	g.orch.Emit(&core.JobReviewed{Review: rev, Timestamp: time.Now()})
	return &Outcome{Job: job, Review: rev}, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "no_null_bytes":
			msgs = append(msgs, fe.Field()+" must not contain NULL bytes")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func noNullBytes(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return !strings.Contains(field.String(), "\x00")
}
