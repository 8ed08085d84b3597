// Package domain defines the canonical payment event and reconciler contract.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/internal/plan"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcome is the terminal state a provider reported for a checkout.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExpired   Outcome = "expired"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeExpired, OutcomeFailed:
		return true
	default:
		return false
	}
}

// Event is the provider-agnostic reconciler input. Adapters produce it from
// raw webhook payloads; only OutcomeCompleted carries a TargetPlan.
type Event struct {
	Provider       string
	IdempotencyKey string
	Outcome        Outcome
	AccountID      snowflake.ID
	TargetPlan     plan.Plan
	OccurredAt     time.Time
	RawPayload     []byte
}

// EventRecord is the processed-event ledger row. The unique index on
// (provider, idempotency_key) is the idempotency mechanism: a second insert
// of the same key changes nothing.
type EventRecord struct {
	ID             snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider       string         `json:"provider" gorm:"not null;uniqueIndex:idx_payment_events_provider_key"`
	IdempotencyKey string         `json:"idempotency_key" gorm:"not null;uniqueIndex:idx_payment_events_provider_key"`
	AccountID      snowflake.ID   `json:"account_id" gorm:"not null;index"`
	Outcome        Outcome        `json:"outcome" gorm:"type:text;not null"`
	TargetPlan     plan.Plan      `json:"target_plan" gorm:"type:text"`
	Applied        bool           `json:"applied" gorm:"not null"`
	RawPayload     datatypes.JSON `json:"raw_payload,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	ReceivedAt     time.Time      `json:"received_at" gorm:"not null"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Result reports what reconciliation did. A redelivered event returns the
// stored outcome with AlreadyProcessed set and no state change.
type Result struct {
	Applied          bool    `json:"applied"`
	AlreadyProcessed bool    `json:"already_processed"`
	Outcome          Outcome `json:"outcome"`
}

type Service interface {
	// Process reconciles one canonical event. Malformed events error out
	// before anything is recorded; everything else lands in exactly one
	// transaction.
	Process(ctx context.Context, event *Event) (Result, error)
}

type Repository interface {
	// InsertEvent writes the record unless its (provider, idempotency_key)
	// pair already exists. Returns whether the row was inserted.
	InsertEvent(ctx context.Context, db *gorm.DB, record *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, idempotencyKey string) (*EventRecord, error)
}

// Adapter turns one provider's webhook traffic into canonical events.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

var (
	ErrMalformedEvent   = errors.New("malformed_event")
	ErrEventInFlight    = errors.New("event_in_flight")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_adapter_config")
)
