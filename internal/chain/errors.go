package chain

import "github.com/ciro-network/ciro/internal/errs"

// RpcErrorKind distinguishes the adapter's own retry-vs-surface decision
// from the generic errs.Kind — every RpcError still carries an errs.Kind so
// callers outside this package can branch the usual way.
type RpcErrorKind string

const (
	// KindTimeout, KindRateLimited, KindServerError, KindNetwork are
	// transient: retried with backoff up to max_retries.
	KindTimeout     RpcErrorKind = "timeout"
	KindRateLimited RpcErrorKind = "rate_limited"
	KindServerError RpcErrorKind = "server_error"
	KindNetwork     RpcErrorKind = "network"
	// KindMalformed and KindNotFound are permanent: surfaced without retry.
	KindMalformed RpcErrorKind = "malformed_request"
	KindNotFound  RpcErrorKind = "not_found"
)

// RpcError is the adapter's structured error. Permanent failures
// (KindMalformed, KindNotFound) surface as an RpcError without retry;
// everything else is treated as transient and retried by withRetry.
type RpcError struct {
	Kind  RpcErrorKind
	Cause error
}

func (e *RpcError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *RpcError) Unwrap() error { return e.Cause }

// Retryable reports whether this failure belongs to the Transient class.
func (e *RpcError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindServerError, KindNetwork:
		return true
	default:
		return false
	}
}

// AsTaxonomy maps the RPC-specific kind onto the shared error taxonomy.
func (e *RpcError) AsTaxonomy() *errs.Error {
	if e.Retryable() {
		return errs.New(errs.Transient, string(e.Kind), e)
	}
	return errs.New(errs.Input, string(e.Kind), e)
}
