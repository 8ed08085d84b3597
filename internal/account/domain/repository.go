package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/internal/plan"
	"gorm.io/gorm"
)

// Repository is the account store. The db handle is passed per call so the
// reconciler can run these inside its own transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)

	// TryIncrement performs the atomic conditional increment: the counter
	// moves up by one only while it is below limit. A negative limit means
	// unlimited. Returns whether the increment happened and the counter
	// value after the call.
	TryIncrement(ctx context.Context, db *gorm.DB, id snowflake.ID, counter Counter, limit plan.Limit, now time.Time) (bool, int64, error)

	// UpdatePlan rewrites the plan field and stamps plan_updated_at. Only
	// the payment reconciler and the admin override path may call it.
	UpdatePlan(ctx context.Context, db *gorm.DB, id snowflake.ID, p plan.Plan, now time.Time) error
}
