package store

import (
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/jinzhu/gorm"
)

// WorkerStore covers worker registration and the heartbeat-updated health
// row.
type WorkerStore interface {
	CreateWorker(w *domain.Worker) error
	GetWorker(workerID string) (*domain.Worker, error)
	UpdateWorkerStatus(workerID string, status domain.WorkerStatus, expectedVersion uint64) error
	ListEligibleWorkers(requiredCaps []domain.Capability, minReputation, maxHeartbeatAge float64) ([]domain.Worker, error)

	// UpsertHealth applies a heartbeat, rejecting one whose monotonic
	// sequence does not strictly exceed the stored sequence.
	UpsertHealth(health *domain.WorkerHealth) error
	GetHealth(workerID string) (*domain.WorkerHealth, error)
}

func (s *gormStore) CreateWorker(w *domain.Worker) error {
	w.RegisteredAt = time.Now()
	w.Version = 1
	if err := s.db.Create(w).Error; err != nil {
		return errs.New(errs.Consistency, "worker.create", err)
	}
	if err := s.db.Create(&domain.WorkerReputation{WorkerID: w.WorkerID, Version: 1}).Error; err != nil {
		return errs.New(errs.Transient, "worker.create_reputation", err)
	}
	return nil
}

func (s *gormStore) GetWorker(workerID string) (*domain.Worker, error) {
	var out domain.Worker
	err := s.db.Where("worker_id = ?", workerID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "worker.get", err)
	}
	return &out, nil
}

func (s *gormStore) UpdateWorkerStatus(workerID string, status domain.WorkerStatus, expectedVersion uint64) error {
	result := s.db.Model(&domain.Worker{}).
		Where("worker_id = ? AND version = ?", workerID, expectedVersion).
		Updates(map[string]interface{}{"status": status, "version": expectedVersion + 1})
	if result.Error != nil {
		return errs.New(errs.Transient, "worker.update_status", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New(errs.Consistency, "worker.version_conflict", nil)
	}
	return nil
}

// ListEligibleWorkers applies the eligibility predicate: not banned, score
// above the floor, heartbeat fresh, status idle or busy, and holding every
// required capability.
func (s *gormStore) ListEligibleWorkers(requiredCaps []domain.Capability, minReputation, maxHeartbeatAgeSeconds float64) ([]domain.Worker, error) {
	freshSince := time.Now().Add(-time.Duration(maxHeartbeatAgeSeconds) * time.Second)

	var rows []domain.Worker
	err := s.db.
		Joins("JOIN worker_reputation ON worker_reputation.worker_id = workers.worker_id").
		Where("worker_reputation.is_banned = ? AND worker_reputation.reputation_score >= ?", false, minReputation).
		Where("workers.last_heartbeat_at >= ?", freshSince).
		Where("workers.status IN (?)", []string{string(domain.WorkerIdle), string(domain.WorkerBusy)}).
		Find(&rows).Error
	if err != nil {
		return nil, errs.New(errs.Transient, "worker.list_eligible", err)
	}

	filtered := rows[:0]
	for _, w := range rows {
		if domain.HasAll(w.Capabilities, requiredCaps) {
			filtered = append(filtered, w)
		}
	}
	return filtered, nil
}

func (s *gormStore) UpsertHealth(health *domain.WorkerHealth) error {
	var existing domain.WorkerHealth
	err := s.db.Where("worker_id = ?", health.WorkerID).First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		health.UpdatedAt = time.Now()
		if err := s.db.Create(health).Error; err != nil {
			return errs.New(errs.Transient, "health.create", err)
		}
		return s.db.Model(&domain.Worker{}).Where("worker_id = ?", health.WorkerID).
			Update("last_heartbeat_at", health.UpdatedAt).Error
	case err != nil:
		return errs.New(errs.Transient, "health.read", err)
	}

	if health.MonotonicSeq <= existing.MonotonicSeq {
		return errs.New(errs.Consistency, "health.regressing_sequence", nil)
	}

	health.UpdatedAt = time.Now()
	result := s.db.Model(&domain.WorkerHealth{}).
		Where("worker_id = ? AND monotonic_seq = ?", health.WorkerID, existing.MonotonicSeq).
		Updates(map[string]interface{}{
			"cpu_percent":      health.CPUPercent,
			"memory_percent":   health.MemoryPercent,
			"disk_percent":     health.DiskPercent,
			"network_latency":  health.NetworkLatency,
			"gpu_util_percent": health.GPUUtilPercent,
			"gpu_temp_c":       health.GPUTempC,
			"response_time_ms": health.ResponseTimeMS,
			"error_count":      health.ErrorCount,
			"health_score":     health.HealthScore,
			"monotonic_seq":    health.MonotonicSeq,
			"updated_at":       health.UpdatedAt,
		})
	if result.Error != nil {
		return errs.New(errs.Transient, "health.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New(errs.Consistency, "health.version_conflict", nil)
	}
	return s.db.Model(&domain.Worker{}).Where("worker_id = ?", health.WorkerID).
		Update("last_heartbeat_at", health.UpdatedAt).Error
}

func (s *gormStore) GetHealth(workerID string) (*domain.WorkerHealth, error) {
	var out domain.WorkerHealth
	err := s.db.Where("worker_id = ?", workerID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "health.get", err)
	}
	return &out, nil
}
