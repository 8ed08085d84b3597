package repository

import (
	"context"
	"errors"

	"github.com/webloom/entitled/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, record *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, idempotencyKey string) (*domain.EventRecord, error) {
	var record domain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND idempotency_key = ?", provider, idempotencyKey).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
