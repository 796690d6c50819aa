// Package store is the Persistence Layer: the relational schema covering
// events, indexer_cursors, workers, worker_health, worker_reputation,
// jobs, tasks, bids, penalties, schema_migrations, and audit_log. One
// large interface, one primary implementation, every cross-entity
// mutation wrapped in a single transaction.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/jinzhu/gorm"
	_ "github.com/go-sql-driver/mysql"
)

var logger = logging.NewModuleLogger(logging.Store)

// Store is the full persistence surface both executables depend on: one
// wide interface so call sites depend on behavior, not on gorm directly.
type Store interface {
	Migrate() error
	Close() error

	// Transaction runs fn against a Store bound to a single database
	// transaction; a non-nil return rolls back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	EventStore
	CursorStore
	WorkerStore
	ReputationStore
	JobStore
	AuditStore
	DashboardStore
}

type gormStore struct {
	db *gorm.DB
}

// Open connects to a MySQL database at dsn and returns a Store. Retries are
// the caller's concern: cmd/*/main.go dials once at startup and aborts as
// Fatal on failure.
func Open(dsn string) (Store, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, errs.New(errs.Fatal, "store.open", err)
	}
	db.LogMode(false)
	return &gormStore{db: db}, nil
}

func (s *gormStore) Close() error {
	return s.db.Close()
}

// Transaction begins a gorm transaction, hands the caller a Store bound to
// it, and commits on a nil return or rolls back otherwise. Context
// cancellation rolls back even if fn has not yet returned an error.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errs.New(errs.Transient, "store.begin", tx.Error)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(&gormStore{db: tx})
	}()

	select {
	case <-ctx.Done():
		tx.Rollback()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			tx.Rollback()
			return err
		}
		if cerr := tx.Commit().Error; cerr != nil {
			return errs.New(errs.Transient, "store.commit", cerr)
		}
		return nil
	}
}

// SchemaMigration records one applied, numbered, forward-only migration.
type SchemaMigration struct {
	Number    int `gorm:"primary_key"`
	Name      string
	AppliedAt time.Time
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

type migration struct {
	number int
	name   string
	models []interface{}
}

// migrations is the forward-only, numbered list. AutoMigrate is
// additive-only (create table / add column), matching the "numbered and
// forward-only" contract without hand-written DDL per step.
var migrations = []migration{
	{1, "create_events", []interface{}{&domain.ChainEvent{}, &domain.IndexerCursor{}}},
	{2, "create_workers", []interface{}{&domain.Worker{}, &domain.WorkerHealth{}, &domain.WorkerReputation{}, &domain.ReputationHistory{}}},
	{3, "create_jobs", []interface{}{&domain.Job{}, &domain.Task{}, &domain.Bid{}, &domain.Penalty{}}},
	{4, "create_audit_log", []interface{}{&domain.AuditEntry{}}},
	{5, "create_dashboard_views", []interface{}{&domain.WorkerLeaderboardEntry{}, &domain.JobStatsEntry{}}},
}

// Migrate applies every migration not yet recorded in schema_migrations, in
// ascending order. A gap (migration N applied without N-1) aborts startup.
func (s *gormStore) Migrate() error {
	if err := s.db.AutoMigrate(&SchemaMigration{}).Error; err != nil {
		return errs.New(errs.Fatal, "store.migrate.bootstrap", err)
	}

	var applied []SchemaMigration
	if err := s.db.Find(&applied).Error; err != nil {
		return errs.New(errs.Fatal, "store.migrate.read", err)
	}
	appliedSet := make(map[int]bool, len(applied))
	for _, m := range applied {
		appliedSet[m.Number] = true
	}

	for i, m := range migrations {
		if i > 0 && appliedSet[m.number] && !appliedSet[migrations[i-1].number] {
			return errs.New(errs.Fatal, "store.migrate.gap", fmt.Errorf("migration %d missing before %d", migrations[i-1].number, m.number))
		}
		if appliedSet[m.number] {
			continue
		}
		for _, model := range m.models {
			if err := s.db.AutoMigrate(model).Error; err != nil {
				return errs.New(errs.Fatal, "store.migrate."+m.name, err)
			}
		}
		if err := s.db.Create(&SchemaMigration{Number: m.number, Name: m.name, AppliedAt: time.Now()}).Error; err != nil {
			return errs.New(errs.Fatal, "store.migrate.record", err)
		}
		logger.Info("applied migration", "number", m.number, "name", m.name)
	}
	return nil
}
