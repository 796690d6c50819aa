package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetrySucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Second, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRetriesTransientErrorsUntilSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, 10*time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &RpcError{Kind: KindTimeout}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	permanent := &RpcError{Kind: KindMalformed}
	err := withRetry(context.Background(), 5, time.Second, func() error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return &RpcError{Kind: KindNetwork}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestWithRetryDoesNotRetryNonRpcErrors(t *testing.T) {
	calls := 0
	plain := errors.New("boom")
	err := withRetry(context.Background(), 5, time.Second, func() error {
		calls++
		return plain
	})
	assert.Equal(t, plain, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := withRetry(ctx, 3, time.Second, func() error {
		calls++
		return &RpcError{Kind: KindTimeout}
	})
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, calls)
}
