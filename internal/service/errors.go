package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the session's current state.
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrSubmissionInFlight means another submission already holds the guard; the request was ignored.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrUnknownQuestion is returned for an answer key that addresses no question of the test.
	ErrUnknownQuestion = errors.New("unknown question")
)

// ValidationError is a client-side rejection raised before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// LoadError means the test could not be fetched. It is terminal for the session.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "Error loading test information: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// RegistrationError means the service rejected the registration or could not be reached.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string { return "Registration failed: " + e.Err.Error() }
func (e *RegistrationError) Unwrap() error { return e.Err }

// SubmissionError is a phase-1 failure; the session is back to ACTIVE and may retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "Failed to submit test: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }
