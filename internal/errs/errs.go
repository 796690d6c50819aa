// Package errs implements the closed error taxonomy shared by both
// binaries: Transient, Input, Consistency, Protocol, Fatal. Each kind
// dictates how the caller must respond — retry, reject immediately,
// reconcile and retry, log-and-continue, or abort the process.
package errs

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind is one of the five taxonomy members. It is a closed enumeration —
// adding a new kind requires updating every switch over Kind in this
// package and the HTTP/orchestrator boundaries that branch on it.
type Kind int

const (
	// Transient is recovered via bounded retry with backoff; surfaced only
	// after the retry budget is exhausted.
	Transient Kind = iota
	// Input is surfaced immediately to the caller; never retried.
	Input
	// Consistency is resolved by reconciliation: re-read and retry at the
	// entity level (optimistic-lock conflict, cursor contention, duplicate
	// event).
	Consistency
	// Protocol covers decoder/ABI mismatches; logged, the event is stored
	// as Undecodable, and ingestion continues.
	Protocol
	// Fatal aborts the process after flushing logs; an operator must
	// intervene (database corruption, invalid migration state, missing
	// required config).
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Input:
		return "input"
	case Consistency:
		return "consistency"
	case Protocol:
		return "protocol"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged, stack-preserving wrapped error. Code is a
// stable machine-readable identifier distinct from Kind (e.g.
// "insufficient_escrow", "duplicate_event") used in HTTP responses.
type Error struct {
	Kind       Kind
	Code       string
	RetryAfter int // seconds; 0 means unset
	httpStatus int // 0 means unset; overrides HTTPStatus(Kind) when set
	cause      error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New wraps cause (may be nil) with a kind and stable code.
func New(kind Kind, code string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Code: code, cause: cause}
}

// WithRetryAfter attaches a retry-after hint in seconds, surfaced on HTTP
// responses for Transient errors (e.g. rate-limit exhaustion).
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfter = seconds
	return e
}

// WithHTTPStatus overrides the status code HTTPStatus(Kind) would otherwise
// produce, for the handful of codes (unauthorized signatures, insufficient
// escrow) that don't follow the generic Kind-to-status mapping.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.httpStatus = status
	return e
}

// StatusOverride returns the HTTP status set via WithHTTPStatus, if any.
func (e *Error) StatusOverride() (int, bool) {
	if e.httpStatus == 0 {
		return 0, false
	}
	return e.httpStatus, true
}

// As reports whether err (or something it wraps) is an *Error, and returns
// it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to the conventional status code for the
// Coordinator Facade's JSON error envelope.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Input:
		return http.StatusBadRequest
	case Transient:
		return http.StatusServiceUnavailable
	case Consistency:
		return http.StatusConflict
	case Protocol:
		return http.StatusUnprocessableEntity
	case Fatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
