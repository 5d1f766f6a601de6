package inference

import (
	"errors"
	"fmt"
)

// ErrEngineNotReady is returned when generation is requested before any
// model finished loading.
var ErrEngineNotReady = errors.New("inference engine not ready")

// IsEngineNotReady reports whether err means no model is loaded (503).
func IsEngineNotReady(err error) bool { return errors.Is(err, ErrEngineNotReady) }

// ModelLoadError wraps an engine failure while loading a model.
type ModelLoadError struct {
	ModelID string
	Err     error
}

func (e *ModelLoadError) Error() string { return fmt.Sprintf("load model %s: %v", e.ModelID, e.Err) }

func (e *ModelLoadError) Unwrap() error { return e.Err }

// IsModelLoad reports whether err is a model load failure.
func IsModelLoad(err error) bool {
	var le *ModelLoadError
	return errors.As(err, &le)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id or size class missing from the registry.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model.
func IsModelNotFound(err error) bool {
	var nf modelNotFoundError
	return errors.As(err, &nf)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g.
// llama.cpp not compiled in) so the HTTP layer can answer 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
