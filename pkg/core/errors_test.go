package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Unwrap(t *testing.T) {
	err := Format(StageExtract, ErrCorruptDocument)

	var se *StageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, StageExtract, se.Stage)
	assert.Equal(t, FailureFormat, se.Kind)
	assert.ErrorIs(t, err, ErrCorruptDocument)
	assert.Contains(t, err.Error(), "extract")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, FailureNone},
		{"plain error is transient", errors.New("boom"), FailureTransient},
		{"explicit transient", Transient(StageParse, ErrParseTimeout), FailureTransient},
		{"explicit schema", Schema(StageParse, errors.New("bad json")), FailureSchema},
		{"unwrapped corrupt", fmt.Errorf("read: %w", ErrCorruptDocument), FailureFormat},
		{"unwrapped empty", ErrEmptyDocument, FailureFormat},
		{"unwrapped malformed", fmt.Errorf("x: %w", ErrMalformedOutput), FailureSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestOutcomeForError(t *testing.T) {
	assert.Equal(t, OutcomeFormat, OutcomeForError(Format(StageExtract, ErrUnsupportedFormat)))
	assert.Equal(t, OutcomeSchema, OutcomeForError(Schema(StageParse, ErrMalformedOutput)))
	assert.Equal(t, OutcomeTransient, OutcomeForError(errors.New("disk on fire")))
}
