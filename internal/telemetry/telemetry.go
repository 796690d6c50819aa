// Package telemetry implements the Telemetry Sink: signed
// heartbeat ingestion with freshness, signature, and monotonic-sequence
// validation, publishing a health-changed notice for the Reputation Engine
// and Job Distributor to observe.
package telemetry

import (
	"net/http"
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/store"
	"golang.org/x/crypto/ed25519"
)

var logger = logging.NewModuleLogger(logging.Telemetry)

// Heartbeat is the signed payload a worker submits.
type Heartbeat struct {
	WorkerID        string
	CPUPercent      float64
	MemoryPercent   float64
	DiskPercent     float64
	NetworkLatency  float64
	GPUUtilPercent  float64
	GPUTempC        float64
	ResponseTimeMS  float64
	ErrorCount      int64
	MonotonicSeq    uint64
	OccurredAt      time.Time
	Signature       []byte
	SignedPayload   []byte // the bytes Signature was computed over
}

// Sink validates and ingests heartbeats.
type Sink struct {
	st          store.Store
	bus         *eventbus.Bus
	heartbeatTTL time.Duration
}

func New(st store.Store, bus *eventbus.Bus, heartbeatTTL time.Duration) *Sink {
	return &Sink{st: st, bus: bus, heartbeatTTL: heartbeatTTL}
}

// Healthy-threshold bounds used to compute HealthScore, a simple composite
// of resource saturation and network latency.
const (
	cpuHealthyMax     = 90.0
	memHealthyMax     = 90.0
	diskHealthyMax    = 95.0
	latencyHealthyMax = 500.0 // ms
)

// Ingest validates hb against worker's registered public key and the
// worker_health row's last monotonic sequence, then updates health and
// publishes a HealthChanged fact.
func (s *Sink) Ingest(hb Heartbeat) error {
	worker, err := s.st.GetWorker(hb.WorkerID)
	if err != nil {
		return err
	}
	if worker == nil {
		return errs.New(errs.Input, "telemetry.unknown_worker", nil)
	}

	if !s.IsFresh(hb.OccurredAt, time.Now()) {
		return errs.New(errs.Input, "telemetry.stale_heartbeat", nil)
	}

	if err := s.verifySignature(worker.PublicKey, hb); err != nil {
		return err
	}

	health := &domain.WorkerHealth{
		WorkerID:       hb.WorkerID,
		CPUPercent:     hb.CPUPercent,
		MemoryPercent:  hb.MemoryPercent,
		DiskPercent:    hb.DiskPercent,
		NetworkLatency: hb.NetworkLatency,
		GPUUtilPercent: hb.GPUUtilPercent,
		GPUTempC:       hb.GPUTempC,
		ResponseTimeMS: hb.ResponseTimeMS,
		ErrorCount:     hb.ErrorCount,
		MonotonicSeq:   hb.MonotonicSeq,
		HealthScore:    s.computeHealthScore(hb),
	}

	if err := s.st.UpsertHealth(health); err != nil {
		return err
	}

	s.bus.Publish(eventbus.Fact{Kind: eventbus.FactHealthChanged, WorkerID: hb.WorkerID})
	return nil
}

func (s *Sink) verifySignature(publicKeyHex string, hb Heartbeat) error {
	if publicKeyHex == "" || len(hb.Signature) == 0 {
		return errs.New(errs.Input, "telemetry.missing_signature", nil).WithHTTPStatus(http.StatusUnauthorized)
	}
	pub, err := decodePublicKey(publicKeyHex)
	if err != nil {
		return errs.New(errs.Input, "telemetry.invalid_public_key", err)
	}
	if !ed25519.Verify(pub, hb.SignedPayload, hb.Signature) {
		return errs.New(errs.Input, "telemetry.invalid_signature", nil).WithHTTPStatus(http.StatusUnauthorized)
	}
	return nil
}

// computeHealthScore is a normalized-inverse-saturation composite; the Job
// Distributor's bid scoring reads HealthScore back rather than recomputing
// it.
func (s *Sink) computeHealthScore(hb Heartbeat) float64 {
	score := 1.0
	score -= clamp01(hb.CPUPercent/cpuHealthyMax) * 0.3
	score -= clamp01(hb.MemoryPercent/memHealthyMax) * 0.25
	score -= clamp01(hb.DiskPercent/diskHealthyMax) * 0.15
	score -= clamp01(hb.NetworkLatency/latencyHealthyMax) * 0.3
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IsFresh reports whether a heartbeat recorded at observedAt is still
// within heartbeatTTL of now.
func (s *Sink) IsFresh(observedAt time.Time, now time.Time) bool {
	return now.Sub(observedAt) <= s.heartbeatTTL
}
