package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_TerminalOutcomes(t *testing.T) {
	tr, err := Decide(StatusProcessing, OutcomeCompleted, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, tr.To)
	assert.Equal(t, 1, tr.Retries)

	tr, err = Decide(StatusProcessing, OutcomeDuplicate, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusCompletedDuplicate, tr.To)

	tr, err = Decide(StatusProcessing, OutcomeNeedsReview, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, tr.To)
	assert.Equal(t, 2, tr.Retries)
}

func TestDecide_FormatFailureKeepsRetries(t *testing.T) {
	tr, err := Decide(StatusProcessing, OutcomeFormat, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, tr.To)
	assert.Equal(t, 1, tr.Retries)
	assert.Equal(t, FailureFormat, tr.FailureKind)
	assert.False(t, tr.Retry())
}

func TestDecide_TransientFailureExhaustsToDLQ(t *testing.T) {
	retries := 0
	var statuses []JobStatus
	for i := 0; i < 3; i++ {
		tr, err := Decide(StatusProcessing, OutcomeTransient, retries, 3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tr.Retries, retries, "retries never decrease")
		retries = tr.Retries
		statuses = append(statuses, tr.To)
	}
	assert.Equal(t, []JobStatus{StatusFailed, StatusFailed, StatusDLQ}, statuses)
	assert.Equal(t, 3, retries)
}

func TestDecide_SchemaFailureEndsInReview(t *testing.T) {
	tr, err := Decide(StatusProcessing, OutcomeSchema, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, tr.To)
	assert.True(t, tr.Retry())

	tr, err = Decide(StatusProcessing, OutcomeSchema, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, tr.To)
	assert.Equal(t, 2, tr.Retries)
}

func TestDecide_RetriesBoundedOutsideDLQ(t *testing.T) {
	for _, outcome := range []Outcome{OutcomeCompleted, OutcomeDuplicate, OutcomeNeedsReview, OutcomeTransient, OutcomeFormat, OutcomeSchema} {
		for retries := 0; retries < 5; retries++ {
			tr, err := Decide(StatusProcessing, outcome, retries, 5)
			require.NoError(t, err)
			if tr.To != StatusDLQ {
				assert.LessOrEqual(t, tr.Retries, 5, "%s at %d", outcome, retries)
			}
			assert.True(t, CanTransition(StatusProcessing, tr.To), "%s -> %s", outcome, tr.To)
		}
	}
}

func TestDecide_SchemaFailureAfterRevisionStaysWithinBudget(t *testing.T) {
	// A revision pass starts from a job that already spent its budget.
	tr, err := Decide(StatusProcessing, OutcomeSchema, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, tr.To)
	assert.Equal(t, 3, tr.Retries)

	for _, outcome := range []Outcome{OutcomeCompleted, OutcomeNeedsReview, OutcomeFormat, OutcomeSchema} {
		tr, err := Decide(StatusProcessing, outcome, 3, 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, tr.Retries, 3, "%s", outcome)
	}
}

func TestDecide_RejectsNonProcessing(t *testing.T) {
	_, err := Decide(StatusPending, OutcomeCompleted, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Decide(StatusProcessing, Outcome("nope"), 0, 3)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusProcessing))
	assert.True(t, CanTransition(StatusNeedsReview, StatusRejected))
	assert.True(t, CanTransition(StatusDLQ, StatusPending))
	assert.False(t, CanTransition(StatusCompleted, StatusPending))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusRejected, StatusProcessing))
}
