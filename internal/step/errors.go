package step

import (
	"errors"
	"fmt"
)

// ValidationError reports a step that lacks a required field or carries an
// unusable one. Such steps are skipped and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid step field %q: %s", e.Field, e.Reason)
}

// AssertionError reports an expected/actual mismatch.
type AssertionError struct {
	What     string
	Expected interface{}
	Actual   interface{}
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s %v, got %v", e.What, e.Expected, e.Actual)
}

// TransportError wraps a failure to reach a backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DependencyError reports a depends_on reference to a step that did not pass.
type DependencyError struct {
	Index     int
	DependsOn int
	Status    string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency not satisfied: step %d depends on step %d which is %s", e.Index, e.DependsOn, e.Status)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsDependency reports whether err is or wraps a DependencyError.
func IsDependency(err error) bool {
	var d *DependencyError
	return errors.As(err, &d)
}

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "required field is missing"}
}
