package domain

import (
	"context"

	"gorm.io/gorm"
)

// CommitRequest asks for one unit of the named counter.
type CommitRequest struct {
	AccountID string `json:"account_id"`
	Counter   string `json:"counter"`
}

// CommitResult reports the outcome. Success false is the limit-reached
// answer, not an error; NewValue is the counter value after the call either
// way.
type CommitResult struct {
	Success  bool  `json:"success"`
	NewValue int64 `json:"new_value"`
}

type Service interface {
	// Commit atomically takes one unit of the counter while it is below the
	// account plan's limit. On denial nothing changes.
	Commit(ctx context.Context, req CommitRequest) (CommitResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *AllocationRecord) error
}
