package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Custom errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateKey    = errors.New("duplicate key violation")
	ErrNoLiveArtifact  = errors.New("no live artifact")
	ErrArtifactCorrupt = errors.New("artifact corrupt")
)

// SchemaError reports malformed or incomplete feature input. It is never retried.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error: %s: %s", e.Field, e.Reason)
}

// NewSchemaError creates a SchemaError.
func NewSchemaError(field, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LearnerFailure records why a base learner was dropped from a training run.
type LearnerFailure struct {
	Learner string `json:"learner"`
	Reason  string `json:"reason"`
}

// InsufficientModelsError aborts a training run when too few learners survive.
type InsufficientModelsError struct {
	Survivors int
	Required  int
	Failures  []LearnerFailure
}

func (e *InsufficientModelsError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, f.Learner+": "+f.Reason)
	}
	return fmt.Sprintf("insufficient models: %d of %d required learners survived [%s]",
		e.Survivors, e.Required, strings.Join(reasons, "; "))
}

// ModelLoadError reports a missing or corrupt artifact at serving time.
type ModelLoadError struct {
	League  string
	Version string
	Cause   error
}

func (e *ModelLoadError) Error() string {
	target := e.League
	if e.Version != "" {
		target += "@" + e.Version
	}
	return fmt.Sprintf("model load failed for %s: %v", target, e.Cause)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Cause
}

// Calibration rejection reason codes.
const (
	RejectInsufficientSamples = "insufficient_samples"
	RejectDegradedBrier       = "degraded_brier"
	RejectFitFailed           = "fit_failed"
)

// CalibrationRejectedError is returned when a refit is discarded. The previous curve stays active.
type CalibrationRejectedError struct {
	Reason string
	Detail string
}

func (e *CalibrationRejectedError) Error() string {
	if e.Detail == "" {
		return "calibration rejected: " + e.Reason
	}
	return fmt.Sprintf("calibration rejected: %s: %s", e.Reason, e.Detail)
}

// TimeoutError reports that an operation exceeded its serving deadline.
type TimeoutError struct {
	Operation string
	Deadline  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Deadline)
}

// Timeout lets callers detect the error through a net.Error style check.
func (e *TimeoutError) Timeout() bool {
	return true
}

// IsSchemaError reports whether err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
