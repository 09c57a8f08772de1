// Package apperr holds the error kinds shared by the booking, availability,
// settlement and review services, and their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned for missing records and for records the
	// caller is not a party to.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a party attempts an action reserved
	// for the other party.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict signals an availability collision.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed input keyed by field.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f+": "+v.FieldErrors[f])
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, "; ")
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Err returns v when it holds errors and nil otherwise.
func (v *ValidationError) Err() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// Invalid is shorthand for a single-field validation error.
func Invalid(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// InvalidTransitionError names the statuses the action would have accepted.
type InvalidTransitionError struct {
	Action  string
	Current string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot %s a booking in status %s", e.Action, e.Current)
	}
	return fmt.Sprintf("cannot %s a booking in status %s; allowed from %s",
		e.Action, e.Current, strings.Join(e.Allowed, ", "))
}

// PreconditionError is a business rule that blocks an otherwise valid action.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func Precondition(code, message string) *PreconditionError {
	return &PreconditionError{Code: code, Message: message}
}

// Kind maps an error to a stable label for logs and response bodies.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var tErr *InvalidTransitionError
	if errors.As(err, &tErr) {
		return "invalid_transition"
	}
	var pErr *PreconditionError
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return "unexpected"
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest
	}
	var tErr *InvalidTransitionError
	if errors.As(err, &tErr) {
		return http.StatusConflict
	}
	var pErr *PreconditionError
	if errors.As(err, &pErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
