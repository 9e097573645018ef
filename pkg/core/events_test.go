package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvents_ImplementEvent(t *testing.T) {
	events := []Event{
		&JobEnqueued{Job: &IngestionJob{ID: "a"}, Timestamp: time.Now()},
		&JobStarted{Job: &IngestionJob{ID: "a"}, WorkerID: "w", Timestamp: time.Now()},
		&StageCompleted{JobID: "a", Stage: StageParse, Err: errors.New("x"), Timestamp: time.Now()},
		&JobTransitioned{Job: &IngestionJob{ID: "a"}, From: StatusProcessing, To: StatusCompleted},
		&JobReviewed{Review: &IngestionReview{JobID: "a", Decision: DecisionApproved}},
	}
	for _, e := range events {
		assert.NotNil(t, e)
	}
}
