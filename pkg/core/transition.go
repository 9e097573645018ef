package core

import "fmt"

// Outcome is the result of one full pipeline pass over a PROCESSING job.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeNeedsReview Outcome = "needs_review"
	OutcomeTransient   Outcome = "transient_failure"
	OutcomeFormat      Outcome = "format_failure"
	OutcomeSchema      Outcome = "schema_failure"
)

// OutcomeForError maps a stage failure to its pipeline outcome.
func OutcomeForError(err error) Outcome {
	switch KindOf(err) {
	case FailureFormat:
		return OutcomeFormat
	case FailureSchema:
		return OutcomeSchema
	}
	return OutcomeTransient
}

// Transition is the state a job moves to after an outcome.
type Transition struct {
	To          JobStatus
	Retries     int
	FailureKind FailureKind
}

// Retry reports whether the job goes back into the claim pool after a delay.
func (t Transition) Retry() bool {
	return t.To == StatusFailed && t.FailureKind.Retryable()
}

// Decide is the job state machine. It is a pure function of the current status,
// the pipeline outcome and the retry budget.
func Decide(from JobStatus, outcome Outcome, retries, maxRetries int) (Transition, error) {
	if from != StatusProcessing {
		return Transition{}, fmt.Errorf("%w: %s has no pipeline outcome", ErrInvalidTransition, from)
	}

	switch outcome {
	case OutcomeCompleted:
		return Transition{To: StatusCompleted, Retries: retries}, nil
	case OutcomeDuplicate:
		return Transition{To: StatusCompletedDuplicate, Retries: retries}, nil
	case OutcomeNeedsReview:
		return Transition{To: StatusNeedsReview, Retries: retries}, nil
	case OutcomeFormat:
		// Format failures do not burn a retry.
		return Transition{To: StatusFailed, Retries: retries, FailureKind: FailureFormat}, nil
	case OutcomeTransient:
		next := retries + 1
		if next >= maxRetries {
			return Transition{To: StatusDLQ, Retries: next, FailureKind: FailureTransient}, nil
		}
		return Transition{To: StatusFailed, Retries: next, FailureKind: FailureTransient}, nil
	case OutcomeSchema:
		next := retries + 1
		if next >= maxRetries {
			// Unparseable output goes to a human instead of the dead-letter queue.
			// A revision pass that fails again must not push retries past the budget.
			return Transition{To: StatusNeedsReview, Retries: min(next, maxRetries), FailureKind: FailureSchema}, nil
		}
		return Transition{To: StatusFailed, Retries: next, FailureKind: FailureSchema}, nil
	}
	return Transition{}, fmt.Errorf("%w: unknown outcome %q", ErrInvalidTransition, outcome)
}

var transitions = map[JobStatus][]JobStatus{
	StatusPending:     {StatusProcessing},
	StatusProcessing:  {StatusCompleted, StatusCompletedDuplicate, StatusNeedsReview, StatusFailed, StatusDLQ},
	StatusFailed:      {StatusProcessing, StatusDLQ, StatusPending},
	StatusNeedsReview: {StatusProcessing, StatusCompleted, StatusCompletedDuplicate, StatusRejected},
	StatusDLQ:         {StatusPending},
	StatusRejected:    {StatusPending},
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReprocessableStatuses are the states an operator may send back to PENDING.
var ReprocessableStatuses = []JobStatus{StatusFailed, StatusDLQ, StatusRejected}
