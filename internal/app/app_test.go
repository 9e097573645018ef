package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/recipe-ingest/internal/config"
	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/intake"
	"github.com/jdziat/recipe-ingest/pkg/review"
)

type scriptedParser struct {
	mu         sync.Mutex
	confidence float64
	notes      []string
}

func (p *scriptedParser) Parse(ctx context.Context, req core.ParseRequest) (*core.ParseResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, req.Notes)
	q := 200.0
	return &core.ParseResult{
		Candidate: &core.Candidate{
			Title:           "Lemon Risotto",
			Cuisine:         "Italian",
			PrepTimeMinutes: 10,
			CookTimeMinutes: 25,
			Servings:        4,
			Ingredients:     []core.Ingredient{{Name: "arborio rice", Quantity: &q, Unit: "g"}},
			Instructions:    []string{"Toast the rice.", "Add stock slowly."},
		},
		Confidence: p.confidence,
		Provider:   "scripted",
		Model:      "test",
	}, nil
}

func (p *scriptedParser) setConfidence(c float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confidence = c
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StoragePath = filepath.Join(dir, "ingestion")
	cfg.Database.DSN = filepath.Join(dir, "db", "ingest.db")
	cfg.PollInterval = 10 * time.Millisecond
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Workers = 2
	return cfg
}

func openApp(t *testing.T, p core.Parser) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Open(testConfig(t), logger, WithParser(p))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

func dropInInbox(t *testing.T, a *App, name, body string) string {
	t.Helper()
	path := filepath.Join(a.Dirs.Inbox(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func processNext(t *testing.T, a *App) *core.IngestionJob {
	t.Helper()
	ctx := context.Background()
	job, err := a.Orchestrator.Claim(ctx, "test-worker")
	require.NoError(t, err)
	require.NotNil(t, job)
	out, err := a.Orchestrator.Process(ctx, job, "test-worker")
	require.NoError(t, err)
	return out
}

const risotto = "Lemon risotto. Toast 200 g arborio rice, add stock slowly, finish with lemon."

// ──────────────────────────────────────────────────────────────────────────────
// Open
// ──────────────────────────────────────────────────────────────────────────────

func TestOpen_CreatesFolders(t *testing.T) {
	a := openApp(t, &scriptedParser{confidence: 0.9})

	for _, f := range []intake.Folder{intake.FolderInbox, intake.FolderProcessed, intake.FolderFailed, intake.FolderDLQ} {
		info, err := os.Stat(a.Dirs.Path(f))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestOpen_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Provider = "local"
	_, err := Open(cfg, slog.Default())
	assert.Error(t, err)
}

func TestMaintenance_Tasks(t *testing.T) {
	a := openApp(t, &scriptedParser{})
	s, err := a.Maintenance()
	require.NoError(t, err)
	assert.Equal(t, []string{"release-stale-claims", "cleanup-archives"}, s.Tasks())

	a.Config.Maintenance.Retention = 0
	s, err = a.Maintenance()
	require.NoError(t, err)
	assert.Equal(t, []string{"release-stale-claims"}, s.Tasks())
}

// ──────────────────────────────────────────────────────────────────────────────
// End to end
// ──────────────────────────────────────────────────────────────────────────────

func TestFlow_CompletedThenDuplicate(t *testing.T) {
	a := openApp(t, &scriptedParser{confidence: 0.92})
	ctx := context.Background()

	_, err := a.Orchestrator.Enqueue(ctx, dropInInbox(t, a, "risotto.txt", risotto))
	require.NoError(t, err)
	first := processNext(t, a)
	assert.Equal(t, core.StatusCompleted, first.Status)
	require.NotNil(t, first.RecipeID)
	assert.Equal(t, a.Dirs.Path(intake.FolderProcessed), filepath.Dir(first.SourcePath))

	stored, err := a.Recipes.Get(ctx, *first.RecipeID)
	require.NoError(t, err)
	assert.Equal(t, "Lemon Risotto", stored.Title)

	_, err = a.Orchestrator.Enqueue(ctx, dropInInbox(t, a, "risotto-copy.txt", risotto))
	require.NoError(t, err)
	second := processNext(t, a)
	assert.Equal(t, core.StatusCompletedDuplicate, second.Status)
	require.NotNil(t, second.DuplicateOfRecipeID)
	assert.Equal(t, *first.RecipeID, *second.DuplicateOfRecipeID)

	n, err := a.Recipes.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFlow_ReviewRevisionThenApprove(t *testing.T) {
	p := &scriptedParser{confidence: 0.4}
	a := openApp(t, p)
	ctx := context.Background()

	_, err := a.Orchestrator.Enqueue(ctx, dropInInbox(t, a, "risotto.txt", risotto))
	require.NoError(t, err)
	job := processNext(t, a)
	require.Equal(t, core.StatusNeedsReview, job.Status)

	out, err := a.Reviews.Review(ctx, review.Request{
		JobID:    job.ID,
		Decision: core.DecisionNeedsRevision,
		Notes:    "serves four",
		Reviewer: "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusNeedsReview, out.Job.Status)
	assert.Equal(t, "serves four", p.notes[len(p.notes)-1])

	out, err = a.Reviews.Review(ctx, review.Request{JobID: job.ID, Decision: core.DecisionApproved, Reviewer: "ana"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, out.Job.Status)

	detail, err := a.Orchestrator.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, detail.Reviews, 2)
	assert.Equal(t, core.DecisionNeedsRevision, detail.Reviews[0].Decision)
	assert.Equal(t, core.DecisionApproved, detail.Reviews[1].Decision)
}

func TestServe_ProcessesInbox(t *testing.T) {
	a := openApp(t, &scriptedParser{confidence: 0.95})
	dropInInbox(t, a, "risotto.txt", risotto)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	require.Eventually(t, func() bool {
		stats, err := a.Orchestrator.Stats(context.Background())
		return err == nil && stats.Counts[core.StatusCompleted] == 1
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
}
