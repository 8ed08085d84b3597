// Package seed bootstraps a demo account so a fresh local install is
// usable without any manual setup.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	"github.com/webloom/entitled/internal/plan"
	"gorm.io/gorm"
)

// DemoAccountID is stable across restarts so local tooling can refer to it.
const DemoAccountID snowflake.ID = 1

// EnsureDemoAccount inserts the demo account when the store is empty.
func EnsureDemoAccount(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&accountdomain.Account{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Create(&accountdomain.Account{
			ID:        DemoAccountID,
			Plan:      plan.Basic,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
}
