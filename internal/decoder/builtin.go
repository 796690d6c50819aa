package decoder

import (
	"encoding/binary"
	"fmt"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/domain"
)

// JobSubmittedPayload is the typed schema for a JobSubmitted log, ABI
// version 1: topics[1]=job_id, topics[2]=submitter; data = priority (8
// bytes, big-endian) followed by payment (8 bytes, big-endian, fixed-point
// wei-like units).
type JobSubmittedPayload struct {
	JobID     string `json:"job_id"`
	Submitter string `json:"submitter"`
	Priority  uint64 `json:"priority"`
	Payment   uint64 `json:"payment"`
}

// JobAssignedPayload mirrors the on-chain JobAssigned log.
type JobAssignedPayload struct {
	JobID  string `json:"job_id"`
	Worker string `json:"worker"`
}

// JobCompletedPayload mirrors the on-chain JobCompleted log.
type JobCompletedPayload struct {
	JobID  string `json:"job_id"`
	Worker string `json:"worker"`
}

// JobFailedPayload mirrors the on-chain JobFailed log.
type JobFailedPayload struct {
	JobID  string `json:"job_id"`
	Worker string `json:"worker"`
	Reason string `json:"reason"`
}

// JobSlashedPayload mirrors the on-chain JobSlashed log.
type JobSlashedPayload struct {
	JobID  string `json:"job_id"`
	Worker string `json:"worker"`
	Amount uint64 `json:"amount"`
}

// WorkerStakedPayload mirrors the on-chain WorkerStaked log.
type WorkerStakedPayload struct {
	Worker string `json:"worker"`
	Amount uint64 `json:"amount"`
}

func requireTopics(raw chain.RawEvent, n int) error {
	if len(raw.Topics) < n {
		return fmt.Errorf("expected at least %d topics, got %d", n, len(raw.Topics))
	}
	return nil
}

func decodeUint64Pair(data []byte) (uint64, uint64, error) {
	if len(data) < 16 {
		return 0, 0, fmt.Errorf("expected 16 bytes of data, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data[:8]), binary.BigEndian.Uint64(data[8:16]), nil
}

// RegisterV1 installs the ABI-version-1 decoders for the job registry and
// worker registry contracts. Later ABI versions register under their own
// version number and coexist with these.
func RegisterV1(r *Registry, jobRegistryAddr, workerRegistryAddr string) {
	r.Register(jobRegistryAddr, domain.EventJobSubmitted, 1, func(raw chain.RawEvent) (*Decoded, error) {
		if err := requireTopics(raw, 3); err != nil {
			return nil, err
		}
		priority, payment, err := decodeUint64Pair(raw.Data)
		if err != nil {
			return nil, err
		}
		return jsonPayload(domain.EventJobSubmitted, JobSubmittedPayload{
			JobID:     raw.Topics[1],
			Submitter: raw.Topics[2],
			Priority:  priority,
			Payment:   payment,
		})
	})

	r.Register(jobRegistryAddr, domain.EventJobAssigned, 1, func(raw chain.RawEvent) (*Decoded, error) {
		if err := requireTopics(raw, 3); err != nil {
			return nil, err
		}
		return jsonPayload(domain.EventJobAssigned, JobAssignedPayload{JobID: raw.Topics[1], Worker: raw.Topics[2]})
	})

	r.Register(jobRegistryAddr, domain.EventJobCompleted, 1, func(raw chain.RawEvent) (*Decoded, error) {
		if err := requireTopics(raw, 3); err != nil {
			return nil, err
		}
		return jsonPayload(domain.EventJobCompleted, JobCompletedPayload{JobID: raw.Topics[1], Worker: raw.Topics[2]})
	})

	r.Register(jobRegistryAddr, domain.EventJobFailed, 1, func(raw chain.RawEvent) (*Decoded, error) {
		if err := requireTopics(raw, 3); err != nil {
			return nil, err
		}
		return jsonPayload(domain.EventJobFailed, JobFailedPayload{
			JobID:  raw.Topics[1],
			Worker: raw.Topics[2],
			Reason: string(raw.Data),
		})
	})

	r.Register(jobRegistryAddr, domain.EventJobSlashed, 1, func(raw chain.RawEvent) (*Decoded, error) {
		if err := requireTopics(raw, 3); err != nil {
			return nil, err
		}
		if len(raw.Data) < 8 {
			return nil, fmt.Errorf("expected 8 bytes of data, got %d", len(raw.Data))
		}
		return jsonPayload(domain.EventJobSlashed, JobSlashedPayload{
			JobID:  raw.Topics[1],
			Worker: raw.Topics[2],
			Amount: binary.BigEndian.Uint64(raw.Data[:8]),
		})
	})

	r.Register(workerRegistryAddr, domain.EventWorkerStaked, 1, func(raw chain.RawEvent) (*Decoded, error) {
		if err := requireTopics(raw, 2); err != nil {
			return nil, err
		}
		if len(raw.Data) < 8 {
			return nil, fmt.Errorf("expected 8 bytes of data, got %d", len(raw.Data))
		}
		return jsonPayload(domain.EventWorkerStaked, WorkerStakedPayload{
			Worker: raw.Topics[1],
			Amount: binary.BigEndian.Uint64(raw.Data[:8]),
		})
	})
}
