package store

import (
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/jinzhu/gorm"
)

// JobStore covers jobs, tasks, and bids. Cross-entity
// transitions — assigning a job updates the job, the worker, and inserts a
// task — are expected to run inside Store.Transaction.
type JobStore interface {
	CreateJob(j *domain.Job) error
	GetJob(jobID string) (*domain.Job, error)
	ListJobsByStatus(status domain.JobStatus) ([]domain.Job, error)
	// UpdateJobStatus enforces §3 legality via domain.CanTransition before
	// issuing the CAS update.
	UpdateJobStatus(jobID string, to domain.JobStatus, expectedVersion uint64) error

	CreateTask(t *domain.Task) error
	ListTasksForJob(jobID string) ([]domain.Task, error)
	UpdateTaskStatus(taskID string, status domain.TaskStatus) error
	IncrementTaskRetry(taskID string) (retryCount int, err error)
	IncrementJobRetry(jobID string) (retryCount int, err error)

	CreateBid(b *domain.Bid) error
	ListBidsForJob(jobID string) ([]domain.Bid, error)
	WithdrawBid(bidID uint64) error

	// AssignJob performs the single-transaction job+worker+task mutation
	// required for assignment.
	AssignJob(jobID, workerID, taskID string, deadline time.Time) error
}

func (s *gormStore) CreateJob(j *domain.Job) error {
	j.SubmittedAt = time.Now()
	j.Status = domain.JobPending
	j.Version = 1
	if err := s.db.Create(j).Error; err != nil {
		return errs.New(errs.Consistency, "job.create", err)
	}
	return nil
}

func (s *gormStore) GetJob(jobID string) (*domain.Job, error) {
	var out domain.Job
	err := s.db.Where("job_id = ?", jobID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "job.get", err)
	}
	return &out, nil
}

func (s *gormStore) ListJobsByStatus(status domain.JobStatus) ([]domain.Job, error) {
	var out []domain.Job
	if err := s.db.Where("status = ?", status).Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "job.list_by_status", err)
	}
	return out, nil
}

func (s *gormStore) UpdateJobStatus(jobID string, to domain.JobStatus, expectedVersion uint64) error {
	var existing domain.Job
	if err := s.db.Where("job_id = ?", jobID).First(&existing).Error; err != nil {
		return errs.New(errs.Transient, "job.read_before_status", err)
	}
	if !domain.CanTransition(existing.Status, to) {
		return errs.New(errs.Input, "job.illegal_transition", nil)
	}

	result := s.db.Model(&domain.Job{}).
		Where("job_id = ? AND version = ?", jobID, expectedVersion).
		Updates(map[string]interface{}{"status": to, "version": expectedVersion + 1})
	if result.Error != nil {
		return errs.New(errs.Transient, "job.update_status", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New(errs.Consistency, "job.version_conflict", nil)
	}
	return nil
}

// IncrementJobRetry persists the job's retry count so a timeout sweep can
// compare against max_retries across crashes/restarts rather than an
// in-memory counter.
func (s *gormStore) IncrementJobRetry(jobID string) (int, error) {
	var j domain.Job
	if err := s.db.Where("job_id = ?", jobID).First(&j).Error; err != nil {
		return 0, errs.New(errs.Transient, "job.read_before_retry", err)
	}
	newCount := j.RetryCount + 1
	if err := s.db.Model(&domain.Job{}).Where("job_id = ?", jobID).Update("retry_count", newCount).Error; err != nil {
		return 0, errs.New(errs.Transient, "job.increment_retry", err)
	}
	return newCount, nil
}

func (s *gormStore) CreateTask(t *domain.Task) error {
	if err := s.db.Create(t).Error; err != nil {
		return errs.New(errs.Consistency, "task.create", err)
	}
	return nil
}

func (s *gormStore) ListTasksForJob(jobID string) ([]domain.Task, error) {
	var out []domain.Task
	if err := s.db.Where("job_id = ?", jobID).Order("sequence ASC").Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "task.list_for_job", err)
	}
	return out, nil
}

func (s *gormStore) UpdateTaskStatus(taskID string, status domain.TaskStatus) error {
	if err := s.db.Model(&domain.Task{}).Where("task_id = ?", taskID).Update("status", status).Error; err != nil {
		return errs.New(errs.Transient, "task.update_status", err)
	}
	return nil
}

func (s *gormStore) IncrementTaskRetry(taskID string) (int, error) {
	var t domain.Task
	if err := s.db.Where("task_id = ?", taskID).First(&t).Error; err != nil {
		return 0, errs.New(errs.Transient, "task.read_before_retry", err)
	}
	newCount := t.RetryCount + 1
	if err := s.db.Model(&domain.Task{}).Where("task_id = ?", taskID).Update("retry_count", newCount).Error; err != nil {
		return 0, errs.New(errs.Transient, "task.increment_retry", err)
	}
	return newCount, nil
}

func (s *gormStore) CreateBid(b *domain.Bid) error {
	b.SubmittedAt = time.Now()
	if err := s.db.Create(b).Error; err != nil {
		return errs.New(errs.Consistency, "bid.create", err)
	}
	return nil
}

func (s *gormStore) ListBidsForJob(jobID string) ([]domain.Bid, error) {
	var out []domain.Bid
	if err := s.db.Where("job_id = ? AND withdrawn = ?", jobID, false).Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "bid.list_for_job", err)
	}
	return out, nil
}

func (s *gormStore) WithdrawBid(bidID uint64) error {
	if err := s.db.Model(&domain.Bid{}).Where("id = ?", bidID).Update("withdrawn", true).Error; err != nil {
		return errs.New(errs.Transient, "bid.withdraw", err)
	}
	return nil
}

// AssignJob updates the job to assigned, the worker to busy, and inserts
// the task row as a single unit. Call through Store.Transaction so a
// failure anywhere rolls back the whole thing: partial assignments are
// never visible to readers.
func (s *gormStore) AssignJob(jobID, workerID, taskID string, deadline time.Time) error {
	var job domain.Job
	if err := s.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return errs.New(errs.Transient, "assign.read_job", err)
	}
	if !domain.CanTransition(job.Status, domain.JobAssigned) {
		return errs.New(errs.Input, "assign.illegal_transition", nil)
	}

	jobResult := s.db.Model(&domain.Job{}).
		Where("job_id = ? AND version = ?", jobID, job.Version).
		Updates(map[string]interface{}{
			"status":          domain.JobAssigned,
			"assigned_worker": workerID,
			"assigned_at":     time.Now(),
			"deadline_at":     deadline,
			"version":         job.Version + 1,
		})
	if jobResult.Error != nil {
		return errs.New(errs.Transient, "assign.update_job", jobResult.Error)
	}
	if jobResult.RowsAffected == 0 {
		return errs.New(errs.Consistency, "assign.job_version_conflict", nil)
	}

	var worker domain.Worker
	if err := s.db.Where("worker_id = ?", workerID).First(&worker).Error; err != nil {
		return errs.New(errs.Transient, "assign.read_worker", err)
	}
	workerResult := s.db.Model(&domain.Worker{}).
		Where("worker_id = ? AND version = ?", workerID, worker.Version).
		Updates(map[string]interface{}{"status": domain.WorkerBusy, "version": worker.Version + 1})
	if workerResult.Error != nil {
		return errs.New(errs.Transient, "assign.update_worker", workerResult.Error)
	}
	if workerResult.RowsAffected == 0 {
		return errs.New(errs.Consistency, "assign.worker_version_conflict", nil)
	}

	task := domain.Task{
		TaskID:         taskID,
		JobID:          jobID,
		Status:         domain.TaskProcessing,
		AssignedWorker: workerID,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return errs.New(errs.Consistency, "assign.create_task", err)
	}
	return nil
}
