package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/internal/account/domain"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/plan"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Audit auditdomain.Service `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Account, error) {
	target := plan.Basic
	if strings.TrimSpace(req.Plan) != "" {
		parsed, err := plan.Parse(req.Plan)
		if err != nil {
			return nil, err
		}
		target = parsed
	}

	now := s.clock.Now()
	account := &domain.Account{
		ID:        s.genID.Generate(),
		Plan:      target,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, account); err != nil {
			return err
		}
		if s.audit == nil {
			return nil
		}
		return s.audit.Append(ctx, tx, auditdomain.Entry{
			Action:    auditdomain.ActionAccountCreated,
			AccountID: account.ID,
			After:     map[string]any{"plan": account.Plan.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("plan", account.Plan.String()),
	)
	return account, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Account, error) {
	accountID, err := parseAccountID(id)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) GetCounters(ctx context.Context, id string) (domain.Counters, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return domain.Counters{}, err
	}
	return domain.Counters{
		WebsitesCreated: account.WebsitesCreated,
		AnalysesUsed:    account.AnalysesUsed,
	}, nil
}

func (s *Service) OverridePlan(ctx context.Context, id string, target string) (*domain.Account, error) {
	accountID, err := parseAccountID(id)
	if err != nil {
		return nil, err
	}
	targetPlan, err := plan.Parse(target)
	if err != nil {
		return nil, err
	}

	var updated *domain.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}

		now := s.clock.Now()
		if err := s.repo.UpdatePlan(ctx, tx, accountID, targetPlan, now); err != nil {
			return err
		}

		previous := account.Plan
		account.Plan = targetPlan
		account.UpdatedAt = now
		account.PlanUpdatedAt = &now
		updated = account

		if s.audit == nil {
			return nil
		}
		return s.audit.Append(ctx, tx, auditdomain.Entry{
			Action:    auditdomain.ActionPlanChanged,
			AccountID: accountID,
			Before:    map[string]any{"plan": previous.String()},
			After:     map[string]any{"plan": targetPlan.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("plan overridden",
		zap.String("account_id", accountID.String()),
		zap.String("plan", targetPlan.String()),
	)
	return updated, nil
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidAccount
	}
	return id, nil
}
