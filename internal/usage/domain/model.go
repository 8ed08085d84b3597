// Package domain contains the allocation record model and commit contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
)

// AllocationRecord is the reporting trail of successful commits. The source
// of truth for the tally stays on the account row; these rows only exist so
// operators can see when each unit was taken.
type AllocationRecord struct {
	ID        snowflake.ID          `json:"id" gorm:"primaryKey"`
	AccountID snowflake.ID          `json:"account_id" gorm:"not null;index"`
	Counter   accountdomain.Counter `json:"counter" gorm:"type:text;not null"`
	Value     int64                 `json:"value" gorm:"not null"` // counter value after the commit
	RequestID string                `json:"request_id,omitempty"`
	CreatedAt time.Time             `json:"created_at" gorm:"not null"`
}

func (AllocationRecord) TableName() string { return "usage_records" }
