package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*gormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gdb, err := gorm.Open("mysql", sqlDB)
	require.NoError(t, err)
	gdb.LogMode(false)
	return &gormStore{db: gdb}, mock
}

func TestUpdateJobStatusRejectsIllegalTransition(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"job_id", "status", "version"}).
		AddRow("job-1", string(domain.JobCompleted), 3)
	mock.ExpectQuery("SELECT (.+) FROM `jobs`").WillReturnRows(rows)

	err := s.UpdateJobStatus("job-1", domain.JobProcessing, 3)
	require.Error(t, err)
	taxErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.Input, taxErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusDetectsVersionConflict(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"job_id", "status", "version"}).
		AddRow("job-1", string(domain.JobPending), 3)
	mock.ExpectQuery("SELECT (.+) FROM `jobs`").WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `jobs`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.UpdateJobStatus("job-1", domain.JobAssigned, 3)
	require.Error(t, err)
	taxErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.Consistency, taxErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementJobRetryPersistsNewCount(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"job_id", "retry_count"}).AddRow("job-1", 1)
	mock.ExpectQuery("SELECT (.+) FROM `jobs`").WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `jobs`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := s.IncrementJobRetry("job-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertHealthRejectsRegressingSequence(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"worker_id", "monotonic_seq"}).AddRow("worker-1", 9)
	mock.ExpectQuery("SELECT (.+) FROM `worker_health`").WillReturnRows(rows)

	err := s.UpsertHealth(&domain.WorkerHealth{WorkerID: "worker-1", MonotonicSeq: 7})
	require.Error(t, err)
	taxErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.Consistency, taxErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}
