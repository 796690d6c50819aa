package store

import (
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
)

// DashboardStore exposes the two materialized views the Query/Dashboard API
// reads: a worker leaderboard ranked by reputation, and per-job-kind
// completion stats. Neither is computed ad hoc per request — both are
// recomputed wholesale by RefreshMaterializedViews and read back as plain
// tables.
type DashboardStore interface {
	RefreshMaterializedViews() error
	WorkerLeaderboard(limit int) ([]domain.WorkerLeaderboardEntry, error)
	JobStats() ([]domain.JobStatsEntry, error)
}

func (s *gormStore) RefreshMaterializedViews() error {
	if err := s.refreshWorkerLeaderboard(); err != nil {
		return err
	}
	return s.refreshJobStats()
}

func (s *gormStore) refreshWorkerLeaderboard() error {
	var reps []domain.WorkerReputation
	if err := s.db.Order("reputation_score DESC").Find(&reps).Error; err != nil {
		return errs.New(errs.Transient, "dashboard.load_reputations", err)
	}

	now := time.Now()
	for i, rep := range reps {
		entry := domain.WorkerLeaderboardEntry{
			WorkerID:        rep.WorkerID,
			ReputationScore: rep.ReputationScore,
			JobsCompleted:   rep.JobsCompleted,
			JobsFailed:      rep.JobsFailed,
			TotalEarnings:   rep.TotalEarnings,
			Rank:            i + 1,
			RefreshedAt:     now,
		}
		var out domain.WorkerLeaderboardEntry
		if err := s.db.Where(domain.WorkerLeaderboardEntry{WorkerID: rep.WorkerID}).
			Assign(entry).FirstOrCreate(&out).Error; err != nil {
			return errs.New(errs.Transient, "dashboard.upsert_leaderboard", err)
		}
	}
	return nil
}

func (s *gormStore) refreshJobStats() error {
	var kinds []string
	if err := s.db.Model(&domain.Job{}).Group("job_kind").Pluck("job_kind", &kinds).Error; err != nil {
		return errs.New(errs.Transient, "dashboard.load_job_kinds", err)
	}

	now := time.Now()
	for _, kind := range kinds {
		var submitted, completed, failed int
		s.db.Model(&domain.Job{}).Where("job_kind = ?", kind).Count(&submitted)
		s.db.Model(&domain.Job{}).Where("job_kind = ? AND status = ?", kind, domain.JobCompleted).Count(&completed)
		s.db.Model(&domain.Job{}).Where("job_kind = ? AND status = ?", kind, domain.JobFailed).Count(&failed)

		var avgPayment float64
		if err := s.db.Model(&domain.Job{}).Where("job_kind = ?", kind).
			Pluck("AVG(payment)", &avgPayment).Error; err != nil {
			return errs.New(errs.Transient, "dashboard.avg_payment", err)
		}

		entry := domain.JobStatsEntry{
			JobKind:        kind,
			TotalSubmitted: submitted,
			TotalCompleted: completed,
			TotalFailed:    failed,
			AvgPayment:     avgPayment,
			RefreshedAt:    now,
		}
		var out domain.JobStatsEntry
		if err := s.db.Where(domain.JobStatsEntry{JobKind: kind}).
			Assign(entry).FirstOrCreate(&out).Error; err != nil {
			return errs.New(errs.Transient, "dashboard.upsert_job_stats", err)
		}
	}
	return nil
}

func (s *gormStore) WorkerLeaderboard(limit int) ([]domain.WorkerLeaderboardEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.WorkerLeaderboardEntry
	if err := s.db.Order("rank ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "dashboard.read_leaderboard", err)
	}
	return out, nil
}

func (s *gormStore) JobStats() ([]domain.JobStatsEntry, error) {
	var out []domain.JobStatsEntry
	if err := s.db.Order("job_kind ASC").Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "dashboard.read_job_stats", err)
	}
	return out, nil
}
