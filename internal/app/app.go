// Package app assembles the ingestion system from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/recipe-ingest/internal/config"
	"github.com/jdziat/recipe-ingest/pkg/api"
	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/dedupe"
	"github.com/jdziat/recipe-ingest/pkg/extract"
	"github.com/jdziat/recipe-ingest/pkg/intake"
	"github.com/jdziat/recipe-ingest/pkg/language"
	"github.com/jdziat/recipe-ingest/pkg/metrics"
	"github.com/jdziat/recipe-ingest/pkg/orchestrator"
	"github.com/jdziat/recipe-ingest/pkg/parser"
	"github.com/jdziat/recipe-ingest/pkg/pipeline"
	"github.com/jdziat/recipe-ingest/pkg/recipes"
	"github.com/jdziat/recipe-ingest/pkg/review"
	"github.com/jdziat/recipe-ingest/pkg/schedule"
	"github.com/jdziat/recipe-ingest/pkg/storage"
	"github.com/jdziat/recipe-ingest/pkg/worker"
)

// App holds every long-lived component.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	DB           *gorm.DB
	Storage      *storage.GormStorage
	Recipes      *recipes.Store
	Dirs         *intake.DirectoryManager
	Orchestrator *orchestrator.Orchestrator
	Reviews      *review.Gateway
}

// Option customizes assembly, mostly for tests.
type Option func(*options)

type options struct {
	parser     core.Parser
	translator core.Translator
}

// WithParser replaces the configured AI provider.
func WithParser(p core.Parser) Option {
	return func(o *options) { o.parser = p }
}

// WithTranslator replaces the configured translator.
func WithTranslator(t core.Translator) Option {
	return func(o *options) { o.translator = t }
}

// Open connects storage and builds the pipeline and orchestrator. It does not
// migrate; call Migrate before first use.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Database.Driver == "sqlite" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("app: create database directory: %w", err)
			}
		}
	}
	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store := storage.NewGormStorage(db)
	recipeStore := recipes.NewStore(db)

	dirs, err := intake.NewDirectoryManager(cfg.StoragePath, logger)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	if err := dirs.Setup(); err != nil {
		closeDB(db)
		return nil, err
	}

	p := o.parser
	if p == nil {
		if cfg.AI.APIKey == "" {
			logger.Warn("no AI API key configured; parse calls will fail until one is set", "provider", cfg.AI.Provider)
		}
		p, err = parser.New(parser.Config{
			Provider:          cfg.AI.Provider,
			APIKey:            cfg.AI.APIKey,
			Model:             cfg.AI.Model,
			MaxTokens:         cfg.AI.MaxTokens,
			RequestsPerSecond: cfg.AI.RequestsPerSecond,
		})
		if err != nil {
			closeDB(db)
			return nil, err
		}
	}

	detector, err := language.NewLinguaDetector(cfg.Language.Supported)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	translator := o.translator
	if translator == nil && cfg.Language.TranslationAPIKey != "" {
		translator = language.NewOpenAITranslator(cfg.Language.TranslationAPIKey, language.WithModel(cfg.Language.TranslationModel))
	}
	normalizer := language.NewNormalizer(detector, translator,
		language.WithCanonical(cfg.Language.Canonical),
		language.WithMinConfidence(cfg.Language.MinConfidence),
		language.WithTimeout(cfg.Timeouts.Translate),
		language.WithLogger(logger),
	)

	dupes := dedupe.NewDetector(store,
		dedupe.WithThreshold(cfg.Dedupe.SimilarityThreshold),
		dedupe.WithTimeTolerance(cfg.Dedupe.TimeToleranceMinutes),
		dedupe.WithLogger(logger),
	)

	// The runner emits stage events through the orchestrator built below.
	var orch *orchestrator.Orchestrator
	runner := pipeline.New(
		extract.New(extract.WithLogger(logger)),
		normalizer,
		p,
		dupes,
		pipeline.WithThreshold(cfg.ConfidenceThreshold),
		pipeline.WithTimeouts(pipeline.Timeouts{Extract: cfg.Timeouts.Extract, Parse: cfg.Timeouts.Parse}),
		pipeline.WithEmitter(func(e core.Event) { orch.Emit(e) }),
		pipeline.WithLogger(logger),
	)

	orch = orchestrator.New(store, recipeStore, runner,
		orchestrator.MaxRetries(cfg.MaxRetries),
		orchestrator.WithBackoff(orchestrator.Backoff{Base: cfg.Backoff.Base, Max: cfg.Backoff.Max}),
		orchestrator.WithArchiver(dirs),
		orchestrator.WithUploader(intake.NewUploader(dirs)),
		orchestrator.WithLogger(logger),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Storage:      store,
		Recipes:      recipeStore,
		Dirs:         dirs,
		Orchestrator: orch,
		Reviews:      review.NewGateway(orch, review.WithLogger(logger)),
	}, nil
}

// Migrate creates or updates every table.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.Storage.Migrate(ctx); err != nil {
		return err
	}
	return a.Recipes.Migrate(ctx)
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Maintenance builds the scheduler for stale claim recovery and retention cleanup.
func (a *App) Maintenance() (*schedule.Scheduler, error) {
	s := schedule.New(schedule.WithLogger(a.Logger))
	if err := s.AddExpr("release-stale-claims", a.Config.Maintenance.StaleClaimSchedule, func(ctx context.Context) error {
		n, err := a.Orchestrator.ReleaseStaleClaims(ctx)
		if n > 0 {
			a.Logger.Info("released stale claims", "count", n)
		}
		return err
	}); err != nil {
		return nil, err
	}
	if a.Config.Maintenance.Retention > 0 {
		if err := s.AddExpr("cleanup-archives", a.Config.Maintenance.CleanupSchedule, func(ctx context.Context) error {
			n, err := a.Dirs.Cleanup(a.Config.Maintenance.Retention)
			if n > 0 {
				a.Logger.Info("removed archived documents", "count", n)
			}
			return err
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Serve runs the worker pool, folder watcher, maintenance scheduler, metrics
// collector and HTTP API until ctx is cancelled, then shuts them down and
// waits for in-flight jobs.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config

	w := worker.NewWorker(a.Orchestrator,
		worker.Concurrency(cfg.Workers),
		worker.PollInterval(cfg.PollInterval),
		worker.WithLogger(a.Logger),
	)
	watcher := intake.NewWatcher(a.Dirs.Inbox(), a.Orchestrator, intake.WithWatcherLogger(a.Logger))
	maintenance, err := a.Maintenance()
	if err != nil {
		return err
	}
	collector := metrics.NewCollector(a.Orchestrator)

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(a.Orchestrator, a.Reviews,
			api.WithWorker(w),
			api.WithMetrics(collector.Handler()),
			api.WithLogger(a.Logger),
			api.WithRequestTimeout(cfg.Timeouts.Extract+cfg.Timeouts.Translate+cfg.Timeouts.Parse+30*time.Second),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("component stopped", "component", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	run("metrics", collector.Start)
	run("worker", w.Start)
	run("watcher", watcher.Start)
	run("maintenance", maintenance.Start)
	run("http", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		a.Logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		}
	})

	<-runCtx.Done()
	a.Logger.Info("shutting down; waiting for in-flight jobs")
	wg.Wait()
	return errors.Join(errs...)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
