package domain

import "time"

// WorkerLeaderboardEntry is one row of the worker leaderboard materialized
// view, ranked by reputation score. Recomputed wholesale by
// RefreshMaterializedViews rather than updated incrementally, same as
// ReputationHistory is an append-only projection of WorkerReputation.
type WorkerLeaderboardEntry struct {
	WorkerID        string `gorm:"primary_key"`
	ReputationScore float64
	JobsCompleted   int64
	JobsFailed      int64
	TotalEarnings   float64
	Rank            int
	RefreshedAt     time.Time
}

func (WorkerLeaderboardEntry) TableName() string { return "mv_worker_leaderboard" }

// JobStatsEntry is one row of the per-kind job statistics materialized
// view.
type JobStatsEntry struct {
	JobKind        string `gorm:"primary_key"`
	TotalSubmitted int
	TotalCompleted int
	TotalFailed    int
	AvgPayment     float64
	RefreshedAt    time.Time
}

func (JobStatsEntry) TableName() string { return "mv_job_stats" }
