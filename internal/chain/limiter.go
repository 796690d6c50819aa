package chain

import (
	"context"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v7"
	"golang.org/x/time/rate"
)

// limiter is the rate-limiting surface the adapter depends on, satisfied by
// either a process-local token bucket or one shared across orchestrator
// replicas through Redis.
type limiter interface {
	Wait(ctx context.Context) error
}

// localLimiter wraps golang.org/x/time/rate for single-process deployments,
// the default when RedisURL is unset.
type localLimiter struct {
	inner *rate.Limiter
}

func newLocalLimiter(perSecond float64) *localLimiter {
	burst := int(perSecond) + 1
	return &localLimiter{inner: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *localLimiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}

// redisLimiter implements a fixed-window limit (a per-second request
// counter) shared across every
// orchestrator replica hitting the same RPC endpoint, so horizontally scaled
// indexers don't collectively exceed the endpoint's rate limit. The
// window-counter approach is the simplest correct way to share one rate
// budget across independent processes without a central coordinator.
type redisLimiter struct {
	client    *redis.Client
	keyPrefix string
	perSecond int64
	fallback  *localLimiter
}

func newRedisLimiter(url, keyPrefix string, perSecond float64) (*redisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		perSecond: int64(perSecond),
		fallback:  newLocalLimiter(perSecond),
	}, nil
}

// Wait increments the current one-second window's counter and blocks briefly
// if the shared budget for this window is already exhausted. Falls back to
// the local limiter if Redis is unreachable, so a Redis outage degrades
// sharing rather than the RPC Adapter's availability.
func (l *redisLimiter) Wait(ctx context.Context) error {
	window := time.Now().Unix()
	key := fmt.Sprintf("%s:rl:%d", l.keyPrefix, window)

	count, err := l.client.Incr(key).Result()
	if err != nil {
		logger.Warn("redis rate limiter unavailable, falling back to local limiter", "err", err)
		return l.fallback.Wait(ctx)
	}
	if count == 1 {
		l.client.Expire(key, 2*time.Second)
	}
	if count <= l.perSecond {
		return nil
	}

	remaining := time.Until(time.Unix(window+1, 0))
	if remaining <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(remaining):
		return nil
	}
}

func (l *redisLimiter) Close() error {
	return l.client.Close()
}
