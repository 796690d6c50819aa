package telemetry

import (
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/ciro-network/ciro/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestComputeHealthScoreHealthyWorker(t *testing.T) {
	s := &Sink{}
	score := s.computeHealthScore(Heartbeat{CPUPercent: 10, MemoryPercent: 10, DiskPercent: 10, NetworkLatency: 20})
	assert.Greater(t, score, 0.9)
}

func TestComputeHealthScoreSaturatedWorker(t *testing.T) {
	s := &Sink{}
	score := s.computeHealthScore(Heartbeat{CPUPercent: 100, MemoryPercent: 100, DiskPercent: 100, NetworkLatency: 1000})
	assert.Less(t, score, 0.05)
}

func TestIsFreshRejectsStaleHeartbeat(t *testing.T) {
	s := &Sink{heartbeatTTL: 30 * time.Second}
	now := time.Now()
	assert.True(t, s.IsFresh(now.Add(-10*time.Second), now))
	assert.False(t, s.IsFresh(now.Add(-60*time.Second), now))
}

func TestDecodePublicKeyRejectsWrongLength(t *testing.T) {
	_, err := decodePublicKey("aabbcc")
	assert.Error(t, err)
}

func TestVerifySignatureMissingSignatureReturns401(t *testing.T) {
	s := &Sink{}
	err := s.verifySignature("aabbcc", Heartbeat{})
	taxErr, ok := errs.As(err)
	assert.True(t, ok)
	status, ok := taxErr.StatusOverride()
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestVerifySignatureBadSignatureReturns401(t *testing.T) {
	s := &Sink{}
	pub := make([]byte, 32)
	err := s.verifySignature(hex.EncodeToString(pub), Heartbeat{Signature: []byte("bad"), SignedPayload: []byte("payload")})
	taxErr, ok := errs.As(err)
	assert.True(t, ok)
	status, ok := taxErr.StatusOverride()
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status)
}
