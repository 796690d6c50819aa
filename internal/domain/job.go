package domain

import "time"

// JobStatus enumerates the monotonic status sequence:
// pending -> assigned -> processing -> (completed | failed); cancellation
// allowed from pending/assigned only.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobAssigned   JobStatus = "assigned"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// legalTransitions encodes the full set of legal (from, to) status edges.
// State-transition legality (testable property 8) is checked against this
// table, not against ad hoc if-chains scattered across the codebase.
var legalTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobAssigned, JobCancelled},
	JobAssigned:   {JobProcessing, JobFailed, JobCancelled},
	JobProcessing: {JobCompleted, JobFailed},
}

// CanTransition reports whether from -> to is a legal job status edge.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Job is a unit of compute work submitted by a client.
type Job struct {
	JobID         string `gorm:"primary_key"`
	JobKind       string
	Status        JobStatus
	Priority      int
	Requirements  string // JSON-encoded capability/requirement predicate
	RequiredCapabilities string // comma-joined Capability values, matched via HasAll
	Payment       float64
	SubmittedAt   time.Time
	DeadlineAt    time.Time
	AssignedAt    time.Time
	AssignedWorker string
	Result        string
	Error         string
	RetryCount    int
	Version       uint64
}

func (Job) TableName() string { return "jobs" }

// TaskStatus mirrors JobStatus for the finer-grained subdivision.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is a subdivision of a job. A task may enter Processing only once
// every dependency task is Completed.
type Task struct {
	TaskID         string `gorm:"primary_key"`
	JobID          string `gorm:"index"`
	Sequence       int
	Dependencies   string // comma-joined task IDs
	Status         TaskStatus
	AssignedWorker string
	RetryCount     int
	MaxRetries     int
}

func (Task) TableName() string { return "tasks" }

// Bid is ephemeral: one per (worker, job), expiring at auction close.
type Bid struct {
	ID                  uint64 `gorm:"primary_key"`
	WorkerID            string `gorm:"index:idx_bid_worker_job,unique"`
	JobID               string `gorm:"index:idx_bid_worker_job,unique"`
	BidAmount           float64
	EstimatedCompletionMS int64
	SubmittedAt         time.Time
	Withdrawn           bool
}

func (Bid) TableName() string { return "bids" }
