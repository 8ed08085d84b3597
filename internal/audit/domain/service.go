package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry is what callers hand the audit service; actor and timestamps are
// resolved by the service itself.
type Entry struct {
	Action         Action
	AccountID      snowflake.ID
	Before         map[string]any
	After          map[string]any
	IdempotencyKey string
}

type ListRequest struct {
	pagination.Pagination
	AccountID string
	Action    string
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []*AuditLog `json:"audit_logs"`
}

type Service interface {
	// Append writes one trail entry through the given handle. Callers that
	// need the entry coupled to their own mutation pass their transaction;
	// a failed append must fail the surrounding transaction with it.
	Append(ctx context.Context, db *gorm.DB, entry Entry) error

	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
