package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLogEntry is immutable once written. There is deliberately no update
// or delete path anywhere in the codebase for this model.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         string         `bun:"id,pk" json:"id"`
	ActorID    string         `bun:"actor_id,notnull" json:"actor_id"`
	Action     string         `bun:"action,notnull" json:"action"`
	EntityType string         `bun:"entity_type,notnull" json:"entity_type"`
	EntityID   string         `bun:"entity_id,notnull" json:"entity_id"`
	Before     map[string]any `bun:"before,type:jsonb,nullzero" json:"before,omitempty"`
	After      map[string]any `bun:"after,type:jsonb,nullzero" json:"after,omitempty"`
	CreatedAt  time.Time      `bun:"created_at,notnull" json:"created_at"`
}

type AuditLogFilters struct {
	Action     string
	EntityType string
	ActorID    string
	StartDate  time.Time
	EndDate    time.Time
}

type AuditLogList struct {
	Items []AuditLogEntry `json:"items"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
