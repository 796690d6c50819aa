package chain

import (
	"sync"
	"time"
)

// circuitBreaker short-circuits calls to an endpoint that has failed
// consecutively threshold times, refusing new calls for cooldown. Once the
// cooldown has passed every call is let through again; the next failure
// re-opens the breaker for another cooldown, and a success closes it.
type circuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	cooldown     time.Duration
	consecutive  int
	openUntil    time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed right now.
func (c *circuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consecutive < c.threshold {
		return true
	}
	return time.Now().After(c.openUntil)
}

func (c *circuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutive = 0
}

func (c *circuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutive++
	if c.consecutive >= c.threshold {
		c.openUntil = time.Now().Add(c.cooldown)
	}
}
