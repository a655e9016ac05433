// Package sdlcerr defines the typed error kinds the workers and the
// Coordinator attach to failures (spec.md §7, §9).
package sdlcerr

import (
	"github.com/go-faster/errors"
)

// Kind classifies an error; Retryable treats only KindTransient as
// retryable.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindTransient        Kind = "transient"
	KindUnsupportedIaC   Kind = "unsupported_iac"
	KindPackageIntegrity Kind = "package_integrity"
	KindProvisioning     Kind = "provisioning"
	KindProbeExecution   Kind = "probe_execution"
	KindAIResponseShape  Kind = "ai_response_shape"
	KindPushDenied       Kind = "push_denied"
	KindBudgetExhausted  Kind = "budget_exhausted"
)

// Error wraps an underlying cause with its Kind. Each worker's
// terminalFailure helper records Message as the terminal session message and
// Error() as the session's error text.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a *Error wrapping cause, using go-faster/errors so the message
// chain keeps %w-compatible formatting without pulling in fmt.Errorf at every
// call site.
func Wrap(kind Kind, cause error, message string) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, cause: errors.Wrap(cause, message)}
}

// Retryable reports whether the error kind is one the retry helper should
// attempt again (only transient-external errors, per spec.md §7).
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return false
}

// As reports whether err (or something it wraps) is a *Error and, if so,
// returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
