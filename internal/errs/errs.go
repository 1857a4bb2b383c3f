// Package errs defines the error taxonomy shared by every stage of the
// capture pipeline. Errors carry a Kind so callers can decide between
// dropping, skipping and retrying without string matching.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline error.
type Kind string

const (
	KindInvalidInput          Kind = "INVALID_INPUT"
	KindInferenceUnavailable  Kind = "INFERENCE_UNAVAILABLE"
	KindSchemaViolation       Kind = "SCHEMA_VIOLATION"
	KindDanglingReference     Kind = "DANGLING_REFERENCE"
	KindUnknownAction         Kind = "UNKNOWN_ACTION"
	KindExternalEffectFailure Kind = "EXTERNAL_EFFECT_FAILURE"
	KindStoreUnavailable      Kind = "STORE_UNAVAILABLE"
	KindNotFound              Kind = "NOT_FOUND"
	KindConflict              Kind = "CONFLICT"
)

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrInferenceUnavailable  = &Error{Kind: KindInferenceUnavailable}
	ErrSchemaViolation       = &Error{Kind: KindSchemaViolation}
	ErrDanglingReference     = &Error{Kind: KindDanglingReference}
	ErrUnknownAction         = &Error{Kind: KindUnknownAction}
	ErrExternalEffectFailure = &Error{Kind: KindExternalEffectFailure}
	ErrStoreUnavailable      = &Error{Kind: KindStoreUnavailable}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrConflict              = &Error{Kind: KindConflict}
)

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind    Kind     `json:"kind"`
	Op      string   `json:"op,omitempty"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
	Err     error    `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails attaches validation details.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the failed interaction should be left in its
// source list for the next poll cycle. Only malformed input is dropped.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindInvalidInput
}
