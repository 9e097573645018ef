package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingest "github.com/jdziat/recipe-ingest"
)

type stubParser struct {
	confidence float64
}

func (p stubParser) Parse(_ context.Context, req ingest.ParseRequest) (*ingest.ParseResult, error) {
	grams := 400.0
	return &ingest.ParseResult{
		Candidate: &ingest.Candidate{
			Title:           "Spaghetti Carbonara",
			Cuisine:         "Italian",
			PrepTimeMinutes: 10,
			CookTimeMinutes: 15,
			Servings:        4,
			Ingredients:     []ingest.Ingredient{{Name: "spaghetti", Quantity: &grams, Unit: "g"}},
			Instructions:    []string{"Boil the pasta.", "Toss with egg and pecorino."},
		},
		Confidence: p.confidence,
		Provider:   "stub",
		Model:      "stub-1",
	}, nil
}

func openService(t *testing.T, confidence float64) *ingest.App {
	t.Helper()
	dir := t.TempDir()
	cfg := ingest.DefaultConfig()
	cfg.StoragePath = filepath.Join(dir, "ingestion")
	cfg.Database.DSN = filepath.Join(dir, "ingest.db")

	svc, err := ingest.Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), ingest.WithParser(stubParser{confidence}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, svc.Migrate(context.Background()))
	return svc
}

func submitAndProcess(t *testing.T, svc *ingest.App, name, body string) *ingest.IngestionJob {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Orchestrator.Submit(ctx, name, strings.NewReader(body))
	require.NoError(t, err)

	job, err := svc.Orchestrator.Claim(ctx, "facade")
	require.NoError(t, err)
	require.NotNil(t, job)
	out, err := svc.Orchestrator.Process(ctx, job, "facade")
	require.NoError(t, err)
	return out
}

const carbonara = "Spaghetti carbonara. Boil 400 g spaghetti. Toss with eggs, pecorino and guanciale."

// ──────────────────────────────────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────────────────────────────────

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := ingest.DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := ingest.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ingest.DefaultConfig().ConfidenceThreshold, cfg.ConfidenceThreshold)
}

// ──────────────────────────────────────────────────────────────────────────────
// Service
// ──────────────────────────────────────────────────────────────────────────────

func TestService_SubmitCompletes(t *testing.T) {
	svc := openService(t, 0.9)

	job := submitAndProcess(t, svc, "carbonara.txt", carbonara)
	assert.Equal(t, ingest.StatusCompleted, job.Status)
	require.NotNil(t, job.RecipeID)

	detail, err := svc.Orchestrator.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	meta := detail.Job.Meta.Data()
	assert.Equal(t, "stub", meta.Provider)
	require.NotNil(t, meta.Candidate)
	assert.Equal(t, "Spaghetti Carbonara", meta.Candidate.Title)
}

func TestService_LowConfidenceAwaitsReview(t *testing.T) {
	svc := openService(t, 0.3)
	ctx := context.Background()

	job := submitAndProcess(t, svc, "carbonara.md", carbonara)
	require.Equal(t, ingest.StatusNeedsReview, job.Status)

	out, err := svc.Reviews.Review(ctx, ingest.ReviewRequest{
		JobID:    job.ID,
		Decision: ingest.DecisionRejected,
		Notes:    "not a recipe we want",
		Reviewer: "facade",
	})
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusRejected, out.Job.Status)

	_, err = svc.Reviews.Review(ctx, ingest.ReviewRequest{JobID: job.ID, Decision: ingest.DecisionApproved})
	assert.ErrorIs(t, err, ingest.ErrInvalidTransition)
}

func TestService_EventsObserveTransitions(t *testing.T) {
	svc := openService(t, 0.95)
	events := svc.Orchestrator.Events()
	defer svc.Orchestrator.Unsubscribe(events)

	submitAndProcess(t, svc, "carbonara.txt", carbonara)

	var started bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			switch ev := e.(type) {
			case *ingest.JobStarted:
				started = true
			case *ingest.JobTransitioned:
				assert.True(t, started, "start precedes the transition")
				assert.Equal(t, ingest.StatusProcessing, ev.From)
				assert.Equal(t, ingest.StatusCompleted, ev.To)
				return
			}
		case <-deadline:
			t.Fatal("no transition event")
		}
	}
}

func TestService_UnknownJob(t *testing.T) {
	svc := openService(t, 0.9)
	_, err := svc.Orchestrator.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ingest.ErrJobNotFound)
}
