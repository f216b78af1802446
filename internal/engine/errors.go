package engine

import (
	"errors"
	"fmt"
	"strings"
)

// CyclicDependencyError reports a derived property that depends on itself.
// Path lists the slots in dependency order and ends where it started.
type CyclicDependencyError struct {
	Path []Slot
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, s := range e.Path {
		parts[i] = s.String()
	}
	return "cyclic dependency: " + strings.Join(parts, " -> ")
}

// StaleReadWarning reports a compute function reading a slot that its
// declared dependency keys do not reach. The engine still subscribes to the
// slot; the warning points at the incomplete declaration.
type StaleReadWarning struct {
	Observer Slot
	Read     Slot
}

func (w *StaleReadWarning) Error() string {
	return fmt.Sprintf("%s read %s which its dependency keys do not cover", w.Observer, w.Read)
}

// ComputeError wraps a failure of a derived property's compute function or
// of resolving its dependency keys.
type ComputeError struct {
	Slot Slot
	Err  error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s: %v", e.Slot, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// UnknownFunctionError is returned by New when a derived property names a
// compute function that is not registered.
type UnknownFunctionError struct {
	Model    string
	Property string
	Fn       string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("%s.%s: unknown compute function %q", e.Model, e.Property, e.Fn)
}

// IsCycleError returns true if err is or wraps a CyclicDependencyError.
func IsCycleError(err error) bool {
	var ce *CyclicDependencyError
	return errors.As(err, &ce)
}

// IsComputeError returns true if err is or wraps a ComputeError.
func IsComputeError(err error) bool {
	var ce *ComputeError
	return errors.As(err, &ce)
}

// IsUnknownFunction returns true if err is or wraps an UnknownFunctionError.
func IsUnknownFunction(err error) bool {
	var ue *UnknownFunctionError
	return errors.As(err, &ue)
}
