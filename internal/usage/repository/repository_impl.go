package repository

import (
	"context"

	"github.com/webloom/entitled/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.AllocationRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}
