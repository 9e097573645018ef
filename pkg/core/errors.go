package core

import (
	"errors"
	"fmt"
)

// Storage and lifecycle errors
var (
	ErrJobNotFound          = errors.New("ingest: job not found")
	ErrJobNotOwned          = errors.New("ingest: job not owned by this worker")
	ErrInvalidTransition    = errors.New("ingest: invalid status transition")
	ErrDuplicateFingerprint = errors.New("ingest: fingerprint already exists")
	ErrAlreadyEnqueued      = errors.New("ingest: source already has a job")
	ErrNoCandidate          = errors.New("ingest: job has no candidate to approve")
	ErrInvalidDecision      = errors.New("ingest: invalid review decision")
	ErrInvalidFilter        = errors.New("ingest: invalid job filter")
	ErrUploadsDisabled      = errors.New("ingest: uploads are not configured")
)

// Stage errors. Each is wrapped in a StageError that carries its failure kind.
var (
	ErrUnsupportedFormat = errors.New("ingest: unsupported document format")
	ErrCorruptDocument   = errors.New("ingest: corrupt document")
	ErrEmptyDocument     = errors.New("ingest: document contains no text")
	ErrParseTimeout      = errors.New("ingest: ai extraction timed out")
	ErrMalformedOutput   = errors.New("ingest: ai extraction returned malformed output")
	ErrQuotaExceeded     = errors.New("ingest: ai provider quota exceeded")
)

// Stage names a pipeline step.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StageParse     Stage = "parse"
	StageValidate  Stage = "validate"
	StageDedupe    Stage = "dedupe"
	StageFinalize  Stage = "finalize"
)

// StageError is a classified failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable stage failure.
func Transient(stage Stage, err error) error {
	return &StageError{Stage: stage, Kind: FailureTransient, Err: err}
}

// Format wraps err as a document format failure; retrying cannot help.
func Format(stage Stage, err error) error {
	return &StageError{Stage: stage, Kind: FailureFormat, Err: err}
}

// Schema wraps err as a malformed-output failure.
func Schema(stage Stage, err error) error {
	return &StageError{Stage: stage, Kind: FailureSchema, Err: err}
}

// KindOf classifies err. Unclassified errors are transient.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrCorruptDocument), errors.Is(err, ErrEmptyDocument):
		return FailureFormat
	case errors.Is(err, ErrMalformedOutput):
		return FailureSchema
	}
	return FailureTransient
}
