// Package audit is the append-only trail of state-changing administrative
// actions. Entries are written once and only ever read back; there is no
// update or delete path.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Recorder struct {
	Bun *bun.DB
}

func NewRecorder(db *bun.DB) *Recorder {
	return &Recorder{Bun: db}
}

// Record appends one entry. Before/after snapshots are stored as JSON; nil
// means the entity did not exist on that side of the change.
func (r *Recorder) Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error {
	entry := &models.AuditLogEntry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     snapshot(before),
		After:      snapshot(after),
		CreatedAt:  time.Now(),
	}
	_, err := r.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

// Query returns entries matching the filters, newest first, with the exact
// total alongside the page.
func (r *Recorder) Query(ctx context.Context, filters models.AuditLogFilters, page models.Page) (*models.AuditLogList, error) {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Limit > 100 {
		page.Limit = 100
	}
	if page.Number < 1 {
		page.Number = 1
	}

	var entries []models.AuditLogEntry
	q := r.Bun.NewSelect().Model(&entries)

	if filters.Action != "" {
		q = q.Where("al.action = ?", filters.Action)
	}
	if filters.EntityType != "" {
		q = q.Where("al.entity_type = ?", filters.EntityType)
	}
	if filters.ActorID != "" {
		q = q.Where("al.actor_id = ?", filters.ActorID)
	}
	if !filters.StartDate.IsZero() {
		q = q.Where("al.created_at >= ?", filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		q = q.Where("al.created_at <= ?", filters.EndDate)
	}

	total, err := q.Order("al.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, errs.Transient("query audit log", err)
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}
	return &models.AuditLogList{Items: entries, Total: total, Page: page.Number, Limit: page.Limit}, nil
}

// snapshot normalizes any value to a JSON object map so arbitrary structs
// can be recorded without the store knowing their types.
func snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"_unserializable": err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"_value": string(data)}
	}
	return m
}
