package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/internal/account/domain"
	"github.com/webloom/entitled/internal/plan"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repo) TryIncrement(ctx context.Context, db *gorm.DB, id snowflake.ID, counter domain.Counter, limit plan.Limit, now time.Time) (bool, int64, error) {
	if !counter.Valid() {
		return false, 0, domain.ErrUnknownCounter
	}
	column := counter.Column()

	var success bool
	var value int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Column names come from the closed Counter set, never from input.
		res := tx.Exec(fmt.Sprintf(
			`UPDATE accounts
			 SET %s = %s + 1, updated_at = ?
			 WHERE id = ? AND (? < 0 OR %s < ?)`,
			column, column, column,
		), now, id, int64(limit), int64(limit))
		if res.Error != nil {
			return res.Error
		}
		success = res.RowsAffected > 0

		var row struct {
			Value *int64 `gorm:"column:value"`
		}
		if err := tx.Raw(fmt.Sprintf(
			`SELECT %s AS value FROM accounts WHERE id = ?`, column,
		), id).Scan(&row).Error; err != nil {
			return err
		}
		if row.Value == nil {
			return domain.ErrAccountNotFound
		}
		value = *row.Value
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return success, value, nil
}

func (r *repo) UpdatePlan(ctx context.Context, db *gorm.DB, id snowflake.ID, p plan.Plan, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET plan = ?, plan_updated_at = ?, updated_at = ?
		 WHERE id = ?`,
		p, now, now, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
