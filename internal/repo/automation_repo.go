// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the automation
// registry, the idempotency ledger, and the execution log.
//
// The ledger insert in MarkFired is the engine's only synchronization
// primitive: the unique index on (automation_id, entity_type, entity_id)
// arbitrates between concurrent trigger sources, and a UNIQUE violation is
// surfaced as ErrDuplicate so callers can record a "skipped" run instead of
// treating it as a failure.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a ledger fact already exists for the
// given (automation_id, entity_type, entity_id) tuple.
var ErrDuplicate = errors.New("duplicate")

// ListAutomationConfigs returns every registry row, ordered by ID. The
// engine calls this once per tick and works from the snapshot.
func ListAutomationConfigs(ctx context.Context, db *gorm.DB) ([]domain.AutomationConfig, error) {
	var out []domain.AutomationConfig
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// GetAutomationConfig fetches a single registry row or ErrNotFound.
func GetAutomationConfig(ctx context.Context, db *gorm.DB, id string) (*domain.AutomationConfig, error) {
	var cfg domain.AutomationConfig
	err := db.WithContext(ctx).Where("id = ?", id).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetAutomationActive toggles an automation on or off. Returns ErrNotFound
// if the identity has no registry row.
func SetAutomationActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.AutomationConfig{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedAutomationConfigs inserts the given registry rows if they do not
// already exist. Existing rows are left untouched so admin edits survive
// restarts.
func SeedAutomationConfigs(ctx context.Context, db *gorm.DB, defaults []domain.AutomationConfig) error {
	for _, cfg := range defaults {
		if err := db.WithContext(ctx).
			Where(domain.AutomationConfig{ID: cfg.ID}).
			Attrs(cfg).
			FirstOrCreate(&domain.AutomationConfig{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// HasFired reports whether a ledger fact exists for the key.
func HasFired(ctx context.Context, db *gorm.DB, automationID, entityType, entityID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AutomationFact{}).
		Where("automation_id = ? AND entity_type = ? AND entity_id = ?", automationID, entityType, entityID).
		Count(&n).Error
	return n > 0, err
}

// MarkFired appends a ledger fact and returns ErrDuplicate on unique
// violation. The insert is a single conditional write, so a concurrent
// caller for the same key loses deterministically.
func MarkFired(ctx context.Context, db *gorm.DB, automationID, entityType, entityID string) error {
	fact := &domain.AutomationFact{
		ID:           uuid.NewString(),
		AutomationID: automationID,
		EntityType:   entityType,
		EntityID:     entityID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fact).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// LogRun appends an execution-log row. The log is observability data, not
// control data: a failed write here must never block the engine, so callers
// only log the error and move on.
func LogRun(ctx context.Context, db *gorm.DB, automationID, entityType, entityID, status, errMsg string) error {
	run := &domain.AutomationRun{
		ID:           uuid.NewString(),
		AutomationID: automationID,
		EntityType:   entityType,
		EntityID:     entityID,
		Status:       status,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(run).Error
}

// CountRuns returns the total number of execution-log rows for one
// automation, for pagination.
func CountRuns(ctx context.Context, db *gorm.DB, automationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AutomationRun{}).
		Where("automation_id = ?", automationID).
		Count(&total).Error
	return total, err
}

// ListRunsPage returns a page of execution-log rows for one automation,
// newest first.
func ListRunsPage(ctx context.Context, db *gorm.DB, automationID string, offset, limit int) ([]domain.AutomationRun, error) {
	var out []domain.AutomationRun
	err := db.WithContext(ctx).
		Where("automation_id = ?", automationID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
