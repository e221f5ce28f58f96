// Package mnerr defines the typed-result error machinery shared by every
// mnemocore component (spec §7). Components never let bare exceptions
// cross the outward boundary; they return or wrap one of these kinds
// instead, and the MCP/REST front ends translate Kind into a structured
// response rather than an HTTP exception.
package mnerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of error categories every component reports.
type Kind string

const (
	BadRequest  Kind = "bad_request"
	NotFound    Kind = "not_found"
	RateLimited Kind = "rate_limited"
	Conflict    Kind = "conflict"
	Transient   Kind = "transient"
	Cancelled   Kind = "cancelled"
	Internal    Kind = "internal"
)

// Error is the concrete error type returned across component boundaries.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap preserves kind and adds context, per spec §7's propagation rule.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// RateLimit builds a RateLimited error carrying the suggested retry delay.
func RateLimit(retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: RateLimited, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfter}
}

// KindOf extracts the Kind from err, defaulting to Internal for errors
// that did not originate from this package — this should not happen in a
// correct implementation (spec §7: Internal "must not be reachable").
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Internal
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
