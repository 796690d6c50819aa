// Package domain holds the shared jobs/workers/tasks/events data model
// that both the indexer and the coordinator operate on.
package domain

import "time"

// ChainEvent is the immutable fact recorded by the Event Store. Its unique
// key is (BlockHash, TxIndex, EventIndex); ordering within a contract is
// strictly ascending on (BlockNumber, TxIndex, EventIndex).
type ChainEvent struct {
	ID              uint64 `gorm:"primary_key"`
	ContractAddress string `gorm:"index:idx_event_contract_order"`
	EventKind       string `gorm:"index"`
	BlockNumber     uint64 `gorm:"index:idx_event_contract_order"`
	BlockHash       string `gorm:"index:idx_event_unique,unique"`
	TxHash          string `gorm:"index"`
	TxIndex         uint32 `gorm:"index:idx_event_unique,unique;index:idx_event_contract_order"`
	EventIndex      uint32 `gorm:"index:idx_event_unique,unique;index:idx_event_contract_order"`
	Timestamp       time.Time
	Payload         []byte // decoded JSON payload, or raw bytes if Undecodable
	Undecodable     bool
	ABIVersion      int
	Finalized       bool `gorm:"index"`
}

func (ChainEvent) TableName() string { return "events" }

// Well-known event kinds the Reputation Engine and Job Distributor react to.
// The decoder registry and penalty taxonomy are closed enumerations at
// boot; new kinds require a migration entry and a registered decoder, not
// open-ended polymorphism.
const (
	EventJobSubmitted = "JobSubmitted"
	EventJobAssigned  = "JobAssigned"
	EventJobCompleted = "JobCompleted"
	EventJobFailed    = "JobFailed"
	EventJobSlashed   = "JobSlashed"
	EventWorkerStaked = "WorkerStaked"
)

// IndexerCursor is the single authoritative per-indexer progress record.
// Concurrent writers are rejected via the Version optimistic-lock column.
type IndexerCursor struct {
	Name                  string `gorm:"primary_key"`
	LastProcessedBlock    uint64
	LastFinalizedBlock    uint64
	LastSeenBlockHashAtTip string
	UpdatedAt             time.Time
	Version               uint64
}

func (IndexerCursor) TableName() string { return "indexer_cursors" }

// AuditEntry records an operator-visible, auditable mutation: reorg
// rollbacks (delete_above) and administrative unbans.
type AuditEntry struct {
	ID       uint64 `gorm:"primary_key"`
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Detail   string
	CreatedAt time.Time
}

func (AuditEntry) TableName() string { return "audit_log" }
