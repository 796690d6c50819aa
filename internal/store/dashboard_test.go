package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRefreshMaterializedViewsNoRowsIsANoop(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT (.+) FROM `worker_reputation`").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "reputation_score", "jobs_completed", "jobs_failed", "total_earnings"}))
	mock.ExpectQuery("SELECT job_kind FROM `jobs`").
		WillReturnRows(sqlmock.NewRows([]string{"job_kind"}))

	err := s.RefreshMaterializedViews()
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerLeaderboardReturnsRowsOrderedByRank(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"worker_id", "reputation_score", "rank"}).
		AddRow("worker-1", 0.95, 1).
		AddRow("worker-2", 0.80, 2)
	mock.ExpectQuery("SELECT (.+) FROM `mv_worker_leaderboard`").WillReturnRows(rows)

	entries, err := s.WorkerLeaderboard(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "worker-1", entries[0].WorkerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStatsReturnsRowsOrderedByKind(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"job_kind", "total_submitted", "total_completed", "total_failed"}).
		AddRow("gpu_training", 10, 8, 2)
	mock.ExpectQuery("SELECT (.+) FROM `mv_job_stats`").WillReturnRows(rows)

	entries, err := s.JobStats()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "gpu_training", entries[0].JobKind)
	require.NoError(t, mock.ExpectationsWereMet())
}
