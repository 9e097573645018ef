package intake

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

// Enqueuer creates a job for a document path. It must be idempotent by path.
type Enqueuer interface {
	Enqueue(ctx context.Context, path string) (*core.IngestionJob, error)
}

// Watcher enqueues documents that appear in a directory. Its only side effect
// is enqueue-if-absent, so missed or repeated events are harmless.
type Watcher struct {
	dir     string
	enq     Enqueuer
	settle  time.Duration
	rescan  time.Duration
	logger  *slog.Logger
	running atomic.Bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithSettle sets how long a file must be quiet before it is enqueued.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithRescan sets the interval of the full directory scan that catches
// anything the event stream missed.
func WithRescan(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.rescan = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a Watcher over dir.
func NewWatcher(dir string, enq Enqueuer, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:    dir,
		enq:    enq,
		settle: time.Second,
		rescan: time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Running reports whether Start is active.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Start scans the directory once, then watches it until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("watching inbox", "dir", w.dir)

	w.Scan(ctx)

	pending := map[string]time.Time{}
	flush := time.NewTicker(w.settle / 2)
	defer flush.Stop()
	rescan := time.NewTicker(w.rescan)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				if Supported(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		case now := <-flush.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				w.enqueue(ctx, path)
			}
		case <-rescan.C:
			w.Scan(ctx)
		}
	}
}

// Scan enqueues every supported file currently in the directory.
func (w *Watcher) Scan(ctx context.Context) int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("scan failed", "dir", w.dir, "error", err)
		return 0
	}
	n := 0
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if !e.Type().IsRegular() || !Supported(path) {
			continue
		}
		if w.enqueue(ctx, path) {
			n++
		}
	}
	return n
}

func (w *Watcher) enqueue(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		// Renamed away or deleted before it settled.
		return false
	}
	_, err := w.enq.Enqueue(ctx, path)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrAlreadyEnqueued):
	default:
		w.logger.Error("failed to enqueue document", "path", path, "error", err)
	}
	return false
}

// Supported reports whether path is a visible document with an accepted extension.
func Supported(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return security.AllowedExtensions[strings.ToLower(filepath.Ext(name))]
}
