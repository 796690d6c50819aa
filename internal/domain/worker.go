package domain

import "time"

// WorkerStatus is the enumerated worker lifecycle state.
type WorkerStatus string

const (
	WorkerOffline     WorkerStatus = "offline"
	WorkerIdle        WorkerStatus = "idle"
	WorkerBusy        WorkerStatus = "busy"
	WorkerMaintenance WorkerStatus = "maintenance"
	WorkerError       WorkerStatus = "error"
)

// Worker is the registered compute provider.
type Worker struct {
	WorkerID        string `gorm:"primary_key"`
	PublicKey       string
	Capabilities    string // comma-joined enumerated set; see ParseCapabilities/JoinCapabilities
	StakeAmount     float64
	Status          WorkerStatus
	RegisteredAt    time.Time
	LastHeartbeatAt time.Time
	Version         uint64 // optimistic lock for single-writer enforcement
}

func (Worker) TableName() string { return "workers" }

// WorkerHealth is the volatile, heartbeat-updated telemetry row.
type WorkerHealth struct {
	WorkerID        string `gorm:"primary_key"`
	CPUPercent      float64
	MemoryPercent   float64
	DiskPercent     float64
	NetworkLatency  float64 // ms
	GPUUtilPercent  float64
	GPUTempC        float64
	ResponseTimeMS  float64
	ErrorCount      int64
	HealthScore     float64 // derived, [0,1]
	MonotonicSeq    uint64
	UpdatedAt       time.Time
}

func (WorkerHealth) TableName() string { return "worker_health" }

// WorkerReputation is the single-writer-per-worker mutable reputation row.
type WorkerReputation struct {
	WorkerID        string `gorm:"primary_key"`
	ReputationScore float64
	JobsCompleted   int64
	JobsFailed      int64
	TotalEarnings   float64
	MaliciousCount  int
	IsBanned        bool
	BanReason       string
	LastDecayAt     time.Time
	Version         uint64
}

func (WorkerReputation) TableName() string { return "worker_reputation" }

// ReputationHistory is an append-only snapshot log for the dashboard's trend
// view, distinct from the mutable WorkerReputation row.
type ReputationHistory struct {
	ID        uint64 `gorm:"primary_key"`
	WorkerID  string `gorm:"index"`
	Score     float64
	Reason    string
	CreatedAt time.Time
}

func (ReputationHistory) TableName() string { return "reputation_history" }

// Penalty is applied atomically with the reputation mutation it causes.
type PenaltyKind string

const (
	PenaltyJobTimeout        PenaltyKind = "JobTimeout"
	PenaltyJobFailure        PenaltyKind = "JobFailure"
	PenaltyMaliciousBehavior PenaltyKind = "MaliciousBehavior"
	PenaltyPoorPerformance   PenaltyKind = "PoorPerformance"
	PenaltyNetworkIssues     PenaltyKind = "NetworkIssues"
	PenaltyResourceAbuse     PenaltyKind = "ResourceAbuse"
	PenaltyInvalidResult     PenaltyKind = "InvalidResult"
	PenaltySpam              PenaltyKind = "Spam"
	PenaltyBan               PenaltyKind = "Ban"
)

type Penalty struct {
	ID        uint64 `gorm:"primary_key"`
	WorkerID  string `gorm:"index"`
	Kind      PenaltyKind
	Severity  float64
	Reason    string
	JobID     string
	AppliedAt time.Time
}

func (Penalty) TableName() string { return "penalties" }
