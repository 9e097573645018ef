package core

import "time"

// Event is the interface for all orchestrator events.
type Event interface {
	eventMarker()
}

// JobEnqueued is emitted when intake creates a job.
type JobEnqueued struct {
	Job       *IngestionJob
	Timestamp time.Time
}

func (*JobEnqueued) eventMarker() {}

// JobStarted is emitted when a worker claims a job and starts the pipeline.
type JobStarted struct {
	Job       *IngestionJob
	WorkerID  string
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// StageCompleted is emitted after each pipeline stage.
type StageCompleted struct {
	JobID     string
	Stage     Stage
	Duration  time.Duration
	Err       error
	Timestamp time.Time
}

func (*StageCompleted) eventMarker() {}

// JobTransitioned is emitted after a status change has been persisted.
type JobTransitioned struct {
	Job        *IngestionJob
	From       JobStatus
	To         JobStatus
	Confidence *float64
	Error      error
	Duration   time.Duration
	Timestamp  time.Time
}

func (*JobTransitioned) eventMarker() {}

// JobReviewed is emitted when a review decision has been recorded.
type JobReviewed struct {
	Review    *IngestionReview
	Timestamp time.Time
}

func (*JobReviewed) eventMarker() {}
