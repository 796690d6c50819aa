package store

import (
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
)

// AuditStore records operator-visible mutations: reorg rollbacks and
// administrative unbans.
type AuditStore interface {
	RecordAudit(actor, action, entity, entityID, detail string) error
	ListAuditEntries(entity string, limit int) ([]domain.AuditEntry, error)
}

func (s *gormStore) recordAudit(actor, action, entity, entityID, detail string) error {
	entry := domain.AuditEntry{
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return errs.New(errs.Transient, "audit.record", err)
	}
	return nil
}

func (s *gormStore) RecordAudit(actor, action, entity, entityID, detail string) error {
	return s.recordAudit(actor, action, entity, entityID, detail)
}

func (s *gormStore) ListAuditEntries(entity string, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	q := s.db.Order("created_at DESC")
	if entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, errs.New(errs.Transient, "audit.list", err)
	}
	return out, nil
}
