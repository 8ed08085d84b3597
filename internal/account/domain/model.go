// Package domain contains the account model and its store contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/internal/plan"
)

// Account is one billable tenant. Counters only ever move up; the plan
// field is owned by the payment reconciler and the admin override path.
type Account struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Plan            plan.Plan    `json:"plan" gorm:"type:text;not null"`
	WebsitesCreated int64        `json:"websites_created" gorm:"not null;default:0"`
	AnalysesUsed    int64        `json:"analyses_used" gorm:"not null;default:0"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
	PlanUpdatedAt   *time.Time   `json:"plan_updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Counters is a point-in-time read of the account tallies.
type Counters struct {
	WebsitesCreated int64 `json:"websites_created"`
	AnalysesUsed    int64 `json:"analyses_used"`
}

// Counter names one of the account usage tallies.
type Counter string

const (
	CounterWebsitesCreated Counter = "websites_created"
	CounterAnalysesUsed    Counter = "analyses_used"
)

func (c Counter) Valid() bool {
	switch c {
	case CounterWebsitesCreated, CounterAnalysesUsed:
		return true
	default:
		return false
	}
}

// Column returns the accounts table column backing the counter. The counter
// set is closed, so this is total for valid counters.
func (c Counter) Column() string { return string(c) }
