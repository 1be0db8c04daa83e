// Package kberr defines the error taxonomy shared by the retrieval
// pipeline. Every failure that crosses a component boundary is classified
// into one of five kinds so callers can make a single decision — retry,
// fall back, or reject — without string-matching error text.
package kberr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and fallback decisions.
type Kind int

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota

	// KindValidation marks malformed caller input (empty query text,
	// embedding dimension mismatch). Never retried, never triggers fallback.
	KindValidation

	// KindConnection marks an unreachable or misbehaving remote dependency.
	KindConnection

	// KindTimeout marks a deadline exceeded talking to a remote dependency.
	KindTimeout

	// KindRateLimit marks a rate-limit rejection from a remote dependency.
	KindRateLimit

	// KindAuth marks rejected or missing credentials. Not retryable —
	// retrying with the same credentials cannot succeed.
	KindAuth
)

// String returns the lowercase label used in logs and API error payloads.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "authentication"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the operation that failed
// (e.g. "embedding.Embed") and Msg is a human-readable summary that must
// never contain credentials.
type Error struct {
	// Kind is the taxonomy classification.
	Kind Kind
	// Op is the operation that failed, in package.Method form.
	Op string
	// Msg is the human-readable failure summary.
	Msg string
	// Err is the wrapped cause, if any.
	Err error
}

// Error renders "op: msg: cause", omitting absent parts.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

// Unwrap returns the wrapped cause so errors.Is/As see through Error.
func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. The cause is preserved for
// errors.Is/As; msg describes what the caller was doing.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the classification of err, or KindUnknown when err is nil
// or carries no *Error anywhere in its chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is worth presenting to the caller as
// transient: connection, timeout, and rate-limit failures may succeed on a
// later attempt; everything else will not.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindTimeout, KindRateLimit:
		return true
	default:
		return false
	}
}

// IsValidation reports whether err is a caller-input error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// Transient reports whether err should trigger store fallback: any
// connectivity/auth/rate-limit-class failure qualifies, validation and
// unclassified errors do not.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindTimeout, KindRateLimit, KindAuth:
		return true
	default:
		return false
	}
}
