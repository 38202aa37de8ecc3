package common

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an engine error for propagation and exit-code mapping.
type Kind string

const (
	KindBadInput            Kind = "BAD_INPUT"
	KindExternalUnavailable Kind = "EXTERNAL_UNAVAILABLE"
	KindDeadlineExceeded    Kind = "DEADLINE_EXCEEDED"
	KindLedgerRejected      Kind = "LEDGER_REJECTED"
	KindPersistenceFailed   Kind = "PERSISTENCE_FAILED"
	KindCancelled           Kind = "CANCELLED"
	KindNotFound            Kind = "NOT_FOUND"
	KindInternal            Kind = "INTERNAL"
)

// Sentinel errors for variant matching across package boundaries.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("external capability unavailable")
	ErrInternal     = errors.New("internal error")
)

// AppError is the engine's surfaced error: a stable code, a human-readable
// message, and the pipeline stage it originated from (empty outside the
// pipeline). Causes are wrapped, never exposed verbatim to API clients.
type AppError struct {
	Kind    Kind
	Code    string
	Stage   string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError builds an AppError with no stage attribution.
func NewAppError(kind Kind, code, message string, cause error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Cause: cause}
}

// StageError builds an AppError attributed to a pipeline stage.
func StageError(kind Kind, stage, code, message string, cause error) *AppError {
	return &AppError{Kind: kind, Code: code, Stage: stage, Message: message, Cause: cause}
}

// FromContextErr maps a context error onto the engine taxonomy.
func FromContextErr(stage string, err error) *AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StageError(KindDeadlineExceeded, stage, "STAGE_TIMEOUT",
			fmt.Sprintf("stage %s exceeded its deadline", stage), err)
	case errors.Is(err, context.Canceled):
		return StageError(KindCancelled, stage, "CANCELLED", "operation cancelled", err)
	default:
		return StageError(KindInternal, stage, "INTERNAL", "unexpected context error", err)
	}
}

// KindOf extracts the Kind of err; KindInternal if err carries none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindBadInput
	case errors.Is(err, ErrUnavailable):
		return KindExternalUnavailable
	default:
		return KindInternal
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
