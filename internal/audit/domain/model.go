// Package domain defines the append-only audit trail.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Action names an audited mutation.
type Action string

const (
	ActionAccountCreated Action = "account.created"
	ActionPlanChanged    Action = "plan.changed"
)

// AuditLog is one immutable trail entry. Rows are only ever inserted;
// Before/After hold partial snapshots of the fields the mutation touched.
type AuditLog struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType      string            `json:"actor_type" gorm:"not null"`
	ActorID        string            `json:"actor_id"`
	Action         Action            `json:"action" gorm:"type:text;not null;index"`
	AccountID      snowflake.ID      `json:"account_id" gorm:"not null;index"`
	Before         datatypes.JSONMap `json:"before"`
	After          datatypes.JSONMap `json:"after"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// AuditCursor is the keyset position for List pagination.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter narrows a trail read. A zero AccountID means all accounts.
type ListFilter struct {
	AccountID snowflake.ID
	Action    string
	Cursor    *AuditCursor
	Limit     int
}
