// Package api serves the ingestion management surface over HTTP.
//
// Routes:
//
//	GET  /health
//	GET  /metrics                     (when a metrics handler is configured)
//	POST /v1/uploads                  multipart field "file"
//	GET  /v1/jobs                     ?status=&search=&limit=&offset=
//	GET  /v1/jobs/{id}
//	POST /v1/jobs/{id}/review         {"decision", "notes", "reviewer"}
//	POST /v1/jobs/{id}/reprocess
//	GET  /v1/stats
//	GET  /v1/ingestion/status
//
// Errors are RFC 7807 problem documents.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/orchestrator"
	"github.com/jdziat/recipe-ingest/pkg/review"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

// Jobs is the orchestrator surface the API drives.
type Jobs interface {
	Submit(ctx context.Context, name string, r io.Reader) (*core.IngestionJob, error)
	ListJobs(ctx context.Context, filter core.JobFilter) ([]*core.IngestionJob, int64, error)
	GetJob(ctx context.Context, jobID string) (*orchestrator.JobDetail, error)
	Reprocess(ctx context.Context, jobID string) (*core.IngestionJob, error)
	Stats(ctx context.Context) (*core.Stats, error)
}

// Reviewer records review decisions.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) (*review.Outcome, error)
}

// WorkerStatus reports worker pool activity.
type WorkerStatus interface {
	ID() string
	Running() bool
	InFlight() int64
	Processed() int64
}

// Option configures the router.
type Option func(*Server)

// WithWorker exposes worker activity on the ingestion status route.
func WithWorker(w WorkerStatus) Option {
	return func(s *Server) { s.worker = w }
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout bounds each request. Revisions run the pipeline
// synchronously, so this should exceed the parse timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Server holds the HTTP handlers.
type Server struct {
	jobs     Jobs
	reviewer Reviewer
	worker   WorkerStatus
	metrics  http.Handler
	logger   *slog.Logger
	timeout  time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(jobs Jobs, reviewer Reviewer, opts ...Option) http.Handler {
	s := &Server{
		jobs:     jobs,
		reviewer: reviewer,
		logger:   slog.Default(),
		timeout:  3 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(maxBody(security.MaxUploadSize+1<<20)).Post("/uploads", s.upload)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.With(maxBody(64<<10)).Post("/jobs/{id}/review", s.review)
		r.Post("/jobs/{id}/reprocess", s.reprocess)
		r.Get("/stats", s.stats)
		r.Get("/ingestion/status", s.status)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func maxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
