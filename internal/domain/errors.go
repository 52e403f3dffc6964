package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDimensionMismatch reports vector operations on differing dimensions.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// ErrorKind classifies a failure into the shared taxonomy. Callers branch
// on the kind, never on vendor-specific strings.
type ErrorKind string

const (
	// KindConfiguration: requested provider/model/configuration does not
	// exist or has no usable credential. Never retried.
	KindConfiguration ErrorKind = "configuration"

	// KindAuthentication: vendor rejected credentials. Never retried.
	KindAuthentication ErrorKind = "authentication"

	// KindRateLimited: vendor 429 equivalent. Retried within budget using
	// the retry-after hint when present.
	KindRateLimited ErrorKind = "rate_limited"

	// KindContentFiltered: vendor refused to generate on policy grounds.
	// Never retried.
	KindContentFiltered ErrorKind = "content_filtered"

	// KindTimeout: local deadline exceeded. Retried within budget.
	KindTimeout ErrorKind = "timeout"

	// KindTransport: network failure below the HTTP layer. Retried within
	// budget.
	KindTransport ErrorKind = "transport"

	// KindVendor: any other non-2xx vendor response. Retried only when the
	// vendor marks it transient (5xx).
	KindVendor ErrorKind = "vendor"

	// KindProviderNotFound: explicit provider id not registered.
	KindProviderNotFound ErrorKind = "provider_not_found"

	// KindNoProviderAvailable: selection found no usable provider.
	KindNoProviderAvailable ErrorKind = "no_provider_available"
)

// Error is the typed failure surfaced by every core operation. It carries
// enough context for a caller to make its own retry-vs-surface decision.
type Error struct {
	Kind       ErrorKind
	Provider   string        // originating provider id, if any
	HTTPStatus int           // vendor HTTP status, 0 if not applicable
	RetryAfter time.Duration // vendor retry hint, 0 if absent
	Message    string        // human-readable vendor or selection message
	Err        error         // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Provider != "" {
		msg = fmt.Sprintf("[%s] %s", e.Provider, msg)
	}
	if e.HTTPStatus != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.HTTPStatus)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on kind: errors.Is(err, &Error{Kind: k}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a taxonomy error.
func NewError(kind ErrorKind, provider, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}

// WrapError builds a taxonomy error around a cause.
func WrapError(kind ErrorKind, provider string, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Provider: provider, Message: msg, Err: err}
}

// KindOf extracts the taxonomy kind of err, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError extracts the typed error, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Retryable reports whether the orchestrator's retry loop may re-dispatch
// after this failure. Selection errors are excluded: retrying selection
// cannot change its outcome.
func Retryable(err error) bool {
	e := AsError(err)
	if e == nil {
		return false
	}

	switch e.Kind {
	case KindRateLimited, KindTimeout, KindTransport:
		return true
	case KindVendor:
		return e.HTTPStatus >= 500
	default:
		return false
	}
}

// KindFromStatus maps a vendor HTTP status to the most specific taxonomy
// kind determinable from the status alone. Adapters refine it when the
// response body says more (e.g. a policy refusal inside a 400).
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindVendor
	}
}
