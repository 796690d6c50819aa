package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalLimiterWaitSucceedsAtHighRate(t *testing.T) {
	l := newLocalLimiter(1000) // high rate, just checking Wait doesn't error
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Wait(ctx))
}

func TestLocalLimiterHonorsContextCancellation(t *testing.T) {
	l := newLocalLimiter(0.001) // effectively unusable within the test window
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestNewRedisLimiterFailsFastOnUnreachableRedis(t *testing.T) {
	_, err := newRedisLimiter("redis://127.0.0.1:1/0", "test", 10)
	assert.Error(t, err)
}
