package orchestrator

import (
	"log/slog"
	"time"

	"github.com/jdziat/recipe-ingest/pkg/security"
)

// Default values.
var (
	DefaultMaxRetries = 3
	DefaultLease      = 2 * time.Minute
)

// Option configures an Orchestrator.
type Option interface {
	Apply(*Orchestrator)
}

type optionFunc func(*Orchestrator)

func (f optionFunc) Apply(o *Orchestrator) { f(o) }

// MaxRetries sets the retry budget copied onto every new job.
// Values are clamped to [0, security.MaxRetries].
func MaxRetries(n int) Option {
	return optionFunc(func(o *Orchestrator) {
		o.maxRetries = security.ClampRetries(n)
	})
}

// WithBackoff sets the delay schedule for automatic retries. Zero values keep the defaults.
func WithBackoff(b Backoff) Option {
	return optionFunc(func(o *Orchestrator) {
		if b.Base > 0 {
			o.backoff.Base = b.Base
		}
		if b.Max > 0 {
			o.backoff.Max = b.Max
		}
	})
}

// WithLease sets how long a claim stays valid without a heartbeat.
func WithLease(d time.Duration) Option {
	return optionFunc(func(o *Orchestrator) {
		if d > 0 {
			o.lease = d
		}
	})
}

// WithStorageRetry sets the retry policy for transition writes and heartbeats.
func WithStorageRetry(cfg RetryConfig) Option {
	return optionFunc(func(o *Orchestrator) {
		o.storageRetry = cfg
	})
}

// WithClaimRetry sets the retry policy for claims.
func WithClaimRetry(cfg RetryConfig) Option {
	return optionFunc(func(o *Orchestrator) {
		o.claimRetry = cfg
	})
}

// WithArchiver moves source documents when a job reaches a terminal state.
func WithArchiver(a Archiver) Option {
	return optionFunc(func(o *Orchestrator) {
		o.archiver = a
	})
}

// WithUploader enables Submit.
func WithUploader(u Uploader) Option {
	return optionFunc(func(o *Orchestrator) {
		o.uploader = u
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *Orchestrator) {
		o.logger = l
	})
}
