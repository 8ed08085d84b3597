package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	GetCounters(ctx context.Context, id string) (Counters, error)

	// OverridePlan rewrites the plan outside the payment flow. The change
	// is audit-logged with the acting operator.
	OverridePlan(ctx context.Context, id string, target string) (*Account, error)
}

type CreateRequest struct {
	Plan string `json:"plan"`
}

var (
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrAccountNotFound = errors.New("account_not_found")
	ErrUnknownCounter  = errors.New("unknown_counter")
)
