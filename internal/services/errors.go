package services

import (
	"errors"
	"fmt"
)

// Error kinds, stable strings used in errors[] entries and JSON responses.
const (
	KindProvider       = "provider_error"
	KindClassification = "classification_error"
	KindPersistence    = "persistence_error"
	KindAction         = "action_error"
)

// PipelineError tags an underlying failure with its taxonomy kind so the
// pipeline can record it per-message without aborting the batch.
type PipelineError struct {
	Kind string
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func providerErr(format string, args ...interface{}) error {
	return &PipelineError{Kind: KindProvider, Err: fmt.Errorf(format, args...)}
}

func classificationErr(format string, args ...interface{}) error {
	return &PipelineError{Kind: KindClassification, Err: fmt.Errorf(format, args...)}
}

func persistenceErr(format string, args ...interface{}) error {
	return &PipelineError{Kind: KindPersistence, Err: fmt.Errorf(format, args...)}
}

// ErrorKind extracts the taxonomy kind from err, or "internal_error" when
// the error was never tagged.
func ErrorKind(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return "internal_error"
}
