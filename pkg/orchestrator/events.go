package orchestrator

import (
	"context"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// OnJobStart registers a callback for when a pipeline pass starts.
func (o *Orchestrator) OnJobStart(fn func(context.Context, *core.IngestionJob)) {
	o.mu.Lock()
	o.onStart = append(o.onStart, fn)
	o.mu.Unlock()
}

// OnJobComplete registers a callback for COMPLETED and COMPLETED_DUPLICATE jobs.
func (o *Orchestrator) OnJobComplete(fn func(context.Context, *core.IngestionJob)) {
	o.mu.Lock()
	o.onComplete = append(o.onComplete, fn)
	o.mu.Unlock()
}

// OnJobFail registers a callback for jobs that failed without an automatic retry.
func (o *Orchestrator) OnJobFail(fn func(context.Context, *core.IngestionJob, error)) {
	o.mu.Lock()
	o.onFail = append(o.onFail, fn)
	o.mu.Unlock()
}

// OnRetry registers a callback for jobs scheduled for another attempt.
func (o *Orchestrator) OnRetry(fn func(context.Context, *core.IngestionJob, int, error)) {
	o.mu.Lock()
	o.onRetry = append(o.onRetry, fn)
	o.mu.Unlock()
}

// OnNeedsReview registers a callback for jobs handed to a reviewer.
func (o *Orchestrator) OnNeedsReview(fn func(context.Context, *core.IngestionJob)) {
	o.mu.Lock()
	o.onReview = append(o.onReview, fn)
	o.mu.Unlock()
}

// Events returns a channel for receiving orchestrator events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (o *Orchestrator) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	o.mu.Lock()
	o.eventSubs = append(o.eventSubs, ch)
	o.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling Unsubscribe.
func (o *Orchestrator) Unsubscribe(ch <-chan core.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sub := range o.eventSubs {
		if sub == ch {
			o.eventSubs = append(o.eventSubs[:i], o.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all subscribers. Slow subscribers miss events rather than block.
func (o *Orchestrator) Emit(e core.Event) {
	o.mu.RLock()
	subs := make([]chan core.Event, len(o.eventSubs))
	copy(subs, o.eventSubs)
	o.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (o *Orchestrator) callStartHooks(ctx context.Context, job *core.IngestionJob) {
	o.mu.RLock()
	hooks := make([]func(context.Context, *core.IngestionJob), len(o.onStart))
	copy(hooks, o.onStart)
	o.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

// callTransitionHooks dispatches to the hook family matching the new status.
func (o *Orchestrator) callTransitionHooks(ctx context.Context, job *core.IngestionJob, err error) {
	o.mu.RLock()
	complete := make([]func(context.Context, *core.IngestionJob), len(o.onComplete))
	copy(complete, o.onComplete)
	review := make([]func(context.Context, *core.IngestionJob), len(o.onReview))
	copy(review, o.onReview)
	fail := make([]func(context.Context, *core.IngestionJob, error), len(o.onFail))
	copy(fail, o.onFail)
	retry := make([]func(context.Context, *core.IngestionJob, int, error), len(o.onRetry))
	copy(retry, o.onRetry)
	o.mu.RUnlock()

	switch {
	case job.Status == core.StatusCompleted || job.Status == core.StatusCompletedDuplicate:
		for _, fn := range complete {
			fn(ctx, job)
		}
	case job.Status == core.StatusNeedsReview:
		for _, fn := range review {
			fn(ctx, job)
		}
	case job.Status == core.StatusFailed && job.FailureKind.Retryable():
		for _, fn := range retry {
			fn(ctx, job, job.Retries, err)
		}
	case job.Status == core.StatusFailed || job.Status == core.StatusDLQ:
		for _, fn := range fail {
			fn(ctx, job, err)
		}
	}
}
