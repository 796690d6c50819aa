package store

import (
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/jinzhu/gorm"
)

// ReputationStore is the single-writer-per-worker mutable reputation row
// plus its append-only history log.
type ReputationStore interface {
	GetReputation(workerID string) (*domain.WorkerReputation, error)
	ListActiveReputations() ([]domain.WorkerReputation, error)

	// ApplyReputationUpdate compares-and-swaps the reputation row on
	// Version, appends a history row, and (when ban transitions true for the
	// first time) records an audit entry.
	ApplyReputationUpdate(rep *domain.WorkerReputation, reason string) error
	AppendPenalty(p *domain.Penalty) error
	UnbanWorker(workerID, actor, reason string) error
}

func (s *gormStore) GetReputation(workerID string) (*domain.WorkerReputation, error) {
	var out domain.WorkerReputation
	err := s.db.Where("worker_id = ?", workerID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "reputation.get", err)
	}
	return &out, nil
}

func (s *gormStore) ListActiveReputations() ([]domain.WorkerReputation, error) {
	var out []domain.WorkerReputation
	if err := s.db.Where("is_banned = ?", false).Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "reputation.list_active", err)
	}
	return out, nil
}

func (s *gormStore) ApplyReputationUpdate(rep *domain.WorkerReputation, reason string) error {
	var existing domain.WorkerReputation
	if err := s.db.Where("worker_id = ?", rep.WorkerID).First(&existing).Error; err != nil {
		return errs.New(errs.Transient, "reputation.read_before_update", err)
	}

	result := s.db.Model(&domain.WorkerReputation{}).
		Where("worker_id = ? AND version = ?", rep.WorkerID, existing.Version).
		Updates(map[string]interface{}{
			"reputation_score": rep.ReputationScore,
			"jobs_completed":   rep.JobsCompleted,
			"jobs_failed":      rep.JobsFailed,
			"total_earnings":   rep.TotalEarnings,
			"malicious_count":  rep.MaliciousCount,
			"is_banned":        rep.IsBanned,
			"ban_reason":       rep.BanReason,
			"last_decay_at":    rep.LastDecayAt,
			"version":          existing.Version + 1,
		})
	if result.Error != nil {
		return errs.New(errs.Transient, "reputation.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New(errs.Consistency, "reputation.version_conflict", nil)
	}

	history := domain.ReputationHistory{
		WorkerID:  rep.WorkerID,
		Score:     rep.ReputationScore,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&history).Error; err != nil {
		return errs.New(errs.Transient, "reputation.append_history", err)
	}

	if rep.IsBanned && !existing.IsBanned {
		if err := s.recordAudit("reputation_engine", "auto_ban", "worker", rep.WorkerID, rep.BanReason); err != nil {
			return err
		}
	}
	return nil
}

func (s *gormStore) AppendPenalty(p *domain.Penalty) error {
	p.AppliedAt = time.Now()
	if err := s.db.Create(p).Error; err != nil {
		return errs.New(errs.Transient, "penalty.append", err)
	}
	return nil
}

// UnbanWorker is the only reversal of a ban.
func (s *gormStore) UnbanWorker(workerID, actor, reason string) error {
	result := s.db.Model(&domain.WorkerReputation{}).
		Where("worker_id = ? AND is_banned = ?", workerID, true).
		Updates(map[string]interface{}{"is_banned": false, "ban_reason": ""})
	if result.Error != nil {
		return errs.New(errs.Transient, "reputation.unban", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New(errs.Input, "reputation.not_banned", nil)
	}
	return s.recordAudit(actor, "admin_unban", "worker", workerID, reason)
}
