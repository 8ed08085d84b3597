package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	"github.com/webloom/entitled/internal/actorcontext"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/observability/metrics"
	"github.com/webloom/entitled/internal/plan"
	"github.com/webloom/entitled/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Catalog  plan.Catalog
	Accounts accountdomain.Repository
	Repo     domain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	catalog  plan.Catalog
	accounts accountdomain.Repository
	repo     domain.Repository
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("usage.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		catalog:  p.Catalog,
		accounts: p.Accounts,
		repo:     p.Repo,
		metrics:  p.Metrics,
	}
}

func (s *Service) Commit(ctx context.Context, req domain.CommitRequest) (domain.CommitResult, error) {
	accountID, err := snowflake.ParseString(strings.TrimSpace(req.AccountID))
	if err != nil || accountID == 0 {
		return domain.CommitResult{}, accountdomain.ErrInvalidAccount
	}

	counter := accountdomain.Counter(strings.TrimSpace(req.Counter))
	if !counter.Valid() {
		return domain.CommitResult{}, accountdomain.ErrUnknownCounter
	}

	var result domain.CommitResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return accountdomain.ErrAccountNotFound
		}

		limits, err := s.catalog.LimitsFor(account.Plan)
		if err != nil {
			return err
		}

		success, newValue, err := s.accounts.TryIncrement(ctx, tx, accountID, counter, limitFor(limits, counter), s.clock.Now())
		if err != nil {
			return err
		}
		result = domain.CommitResult{Success: success, NewValue: newValue}
		if !success {
			return nil
		}

		return s.repo.Insert(ctx, tx, &domain.AllocationRecord{
			ID:        s.genID.Generate(),
			AccountID: accountID,
			Counter:   counter,
			Value:     newValue,
			RequestID: actorcontext.RequestIDFromContext(ctx),
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return domain.CommitResult{}, err
	}

	s.metrics.RecordAllocation(ctx, string(counter), result.Success)
	if !result.Success {
		s.log.Debug("allocation denied",
			zap.String("account_id", accountID.String()),
			zap.String("counter", string(counter)),
			zap.Int64("value", result.NewValue),
		)
	}
	return result, nil
}

func limitFor(limits plan.Limits, counter accountdomain.Counter) plan.Limit {
	switch counter {
	case accountdomain.CounterWebsitesCreated:
		return limits.Websites
	case accountdomain.CounterAnalysesUsed:
		return limits.Analyses
	default:
		return 0
	}
}
