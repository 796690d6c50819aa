package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerAllowsUntilThreshold(t *testing.T) {
	cb := newCircuitBreaker(3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := newCircuitBreaker(3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerClosesAfterCooldown(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	assert.False(t, cb.Allow())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	cb := newCircuitBreaker(2, time.Minute)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
}
