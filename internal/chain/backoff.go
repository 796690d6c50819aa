package chain

import (
	"context"
	"math/rand"
	"time"
)

// withRetry runs fn, retrying transient RpcErrors with exponential backoff
// and jitter, bounded by maxRetries/maxBackoff. Permanent RpcErrors and
// context cancellation abort immediately without consuming a retry.
func withRetry(ctx context.Context, maxRetries int, maxBackoff time.Duration, fn func() error) error {
	var err error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		rpcErr, ok := err.(*RpcError)
		if !ok || !rpcErr.Retryable() {
			return err
		}
		if attempt == maxRetries {
			break
		}
		wait := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		if wait > maxBackoff {
			wait = maxBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}
