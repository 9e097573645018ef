package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule defines when a task should run next.
type Schedule interface {
	Next(from time.Time) time.Time
}

type everySchedule struct {
	interval time.Duration
}

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return &everySchedule{interval: d}
}

func (s *everySchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse reads a five-field cron expression or a descriptor (@hourly, @daily, @every 5m).
func Parse(expr string) (Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid expression %q: %w", expr, err)
	}
	return s, nil
}

// Task is one named recurring job.
type Task struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks on their schedules. Runs of the same task never overlap.
type Scheduler struct {
	tasks  []Task
	tick   time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTick sets how often due tasks are checked.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tick:   time.Second,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task. Call before Start.
func (s *Scheduler) Add(t Task) {
	s.tasks = append(s.tasks, t)
}

// AddExpr registers a task from a cron expression or descriptor.
func (s *Scheduler) AddExpr(name, expr string, run func(ctx context.Context) error) error {
	sched, err := Parse(expr)
	if err != nil {
		return err
	}
	s.Add(Task{Name: name, Schedule: sched, Run: run})
	return nil
}

// Tasks returns the registered task names.
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Start runs due tasks until ctx is cancelled, then waits for running tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	start := s.now()
	next := make([]time.Time, len(s.tasks))
	running := make([]bool, len(s.tasks))
	for i, t := range s.tasks {
		next[i] = t.Schedule.Next(start)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			now := s.now()
			for i, t := range s.tasks {
				mu.Lock()
				due := !running[i] && !now.Before(next[i])
				if due {
					running[i] = true
					next[i] = t.Schedule.Next(now)
				}
				mu.Unlock()
				if !due {
					continue
				}

				wg.Add(1)
				go func(i int, t Task) {
					defer wg.Done()
					defer func() {
						mu.Lock()
						running[i] = false
						mu.Unlock()
					}()
					s.run(ctx, t)
				}(i, t)
			}
		}
	}
}

func (s *Scheduler) run(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "task", t.Name, "panic", r)
		}
	}()
	started := time.Now()
	if err := t.Run(ctx); err != nil {
		s.logger.Error("scheduled task failed", "task", t.Name, "error", err)
		return
	}
	s.logger.Debug("scheduled task finished", "task", t.Name, "duration", time.Since(started))
}
