package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when an applicant cannot be derived into features.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownCategory is returned by the encoder for a categorical value it was not fitted on.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrSchemaMismatch is returned when a model artifact was trained on different feature columns.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
	ErrNotTrained     = errors.New("model not trained")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ModelLoadError is fatal at startup: the service must not accept input without a model.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// InferenceError wraps any failure of the classifier call. It is not fatal.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
