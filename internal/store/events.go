package store

import (
	"strconv"
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/jinzhu/gorm"
)

// CursorUpdate is applied alongside an event batch append; callers run
// AppendEventsBatch inside Store.Transaction so both commit as one unit.
type CursorUpdate struct {
	Name                   string
	LastProcessedBlock     uint64
	LastFinalizedBlock     uint64
	LastSeenBlockHashAtTip string
}

// EventStore is the Event Store: append-only, with a primary
// index on (contract, block_number, tx_index, event_index).
type EventStore interface {
	AppendEventsBatch(events []domain.ChainEvent, cursor CursorUpdate) error
	ReadEventRange(contract string, fromBlock, toBlock uint64, kinds []string) ([]domain.ChainEvent, error)
	LatestEventOfKind(contract, kind string) (*domain.ChainEvent, error)
	DeleteEventsAboveBlock(blockNumber uint64, rollbackTo uint64, actor string) error
	MarkFinalizedUpTo(blockNumber uint64) error
}

// CursorStore is the single authoritative per-indexer progress record.
type CursorStore interface {
	GetCursor(name string) (*domain.IndexerCursor, error)
}

func (s *gormStore) AppendEventsBatch(events []domain.ChainEvent, cursor CursorUpdate) error {
	for i := range events {
		// at-most-once insertion per (block_hash, tx_index, event_index);
		// a duplicate from a retried batch is silently absorbed rather than
		// surfaced as a Consistency error, since append_batch is meant to be
		// safely re-runnable after a crash.
		err := s.db.Where(domain.ChainEvent{
			BlockHash:  events[i].BlockHash,
			TxIndex:    events[i].TxIndex,
			EventIndex: events[i].EventIndex,
		}).FirstOrCreate(&events[i]).Error
		if err != nil {
			return errs.New(errs.Consistency, "events.append", err)
		}
	}

	var existing domain.IndexerCursor
	err := s.db.Where("name = ?", cursor.Name).First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		existing = domain.IndexerCursor{
			Name:                   cursor.Name,
			LastProcessedBlock:     cursor.LastProcessedBlock,
			LastFinalizedBlock:     cursor.LastFinalizedBlock,
			LastSeenBlockHashAtTip: cursor.LastSeenBlockHashAtTip,
			UpdatedAt:              time.Now(),
			Version:                1,
		}
		if err := s.db.Create(&existing).Error; err != nil {
			return errs.New(errs.Transient, "cursor.create", err)
		}
		return nil
	case err != nil:
		return errs.New(errs.Transient, "cursor.read", err)
	}

	result := s.db.Model(&domain.IndexerCursor{}).
		Where("name = ? AND version = ?", cursor.Name, existing.Version).
		Updates(map[string]interface{}{
			"last_processed_block":      cursor.LastProcessedBlock,
			"last_finalized_block":      cursor.LastFinalizedBlock,
			"last_seen_block_hash_at_tip": cursor.LastSeenBlockHashAtTip,
			"updated_at":                 time.Now(),
			"version":                    existing.Version + 1,
		})
	if result.Error != nil {
		return errs.New(errs.Transient, "cursor.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New(errs.Consistency, "cursor.version_conflict", nil)
	}
	return nil
}

func (s *gormStore) ReadEventRange(contract string, fromBlock, toBlock uint64, kinds []string) ([]domain.ChainEvent, error) {
	q := s.db.Where("contract_address = ? AND block_number BETWEEN ? AND ?", contract, fromBlock, toBlock)
	if len(kinds) > 0 {
		q = q.Where("event_kind IN (?)", kinds)
	}
	var out []domain.ChainEvent
	if err := q.Order("block_number ASC, tx_index ASC, event_index ASC").Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "events.read_range", err)
	}
	return out, nil
}

func (s *gormStore) LatestEventOfKind(contract, kind string) (*domain.ChainEvent, error) {
	var out domain.ChainEvent
	err := s.db.Where("contract_address = ? AND event_kind = ?", contract, kind).
		Order("block_number DESC, tx_index DESC, event_index DESC").
		First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "events.latest_of", err)
	}
	return &out, nil
}

// DeleteEventsAboveBlock removes every event from an abandoned fork and
// resets the cursor to rollbackTo, recording an audit entry. Called only by
// the Orchestrator during reorg handling.
func (s *gormStore) DeleteEventsAboveBlock(blockNumber uint64, rollbackTo uint64, actor string) error {
	if err := s.db.Where("block_number > ?", blockNumber).Delete(&domain.ChainEvent{}).Error; err != nil {
		return errs.New(errs.Transient, "events.delete_above", err)
	}
	if err := s.db.Model(&domain.IndexerCursor{}).
		Where("name = ?", actor).
		Updates(map[string]interface{}{"last_processed_block": rollbackTo}).Error; err != nil {
		return errs.New(errs.Transient, "cursor.rollback", err)
	}
	detail := "rolled back from " + strconv.FormatUint(blockNumber, 10) + " to " + strconv.FormatUint(rollbackTo, 10)
	return s.recordAudit(actor, "reorg_rollback", "events", actor, detail)
}

func (s *gormStore) MarkFinalizedUpTo(blockNumber uint64) error {
	if err := s.db.Model(&domain.ChainEvent{}).
		Where("block_number <= ? AND finalized = ?", blockNumber, false).
		Updates(map[string]interface{}{"finalized": true}).Error; err != nil {
		return errs.New(errs.Transient, "events.mark_finalized", err)
	}
	return nil
}

func (s *gormStore) GetCursor(name string) (*domain.IndexerCursor, error) {
	var out domain.IndexerCursor
	err := s.db.Where("name = ?", name).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "cursor.get", err)
	}
	return &out, nil
}
