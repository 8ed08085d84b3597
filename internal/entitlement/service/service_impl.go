package service

import (
	"context"
	"fmt"

	accountdomain "github.com/webloom/entitled/internal/account/domain"
	"github.com/webloom/entitled/internal/entitlement/domain"
	"github.com/webloom/entitled/internal/observability/metrics"
	"github.com/webloom/entitled/internal/plan"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Catalog  plan.Catalog
	Accounts accountdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	catalog  plan.Catalog
	accounts accountdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("entitlement.service"),
		catalog:  p.Catalog,
		accounts: p.Accounts,
		metrics:  p.Metrics,
	}
}

func (s *Service) CanPerform(ctx context.Context, accountID string, action domain.Action) (domain.Decision, error) {
	if !action.Kind.Valid() {
		return domain.Decision{}, domain.ErrUnknownAction
	}

	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.Decision{}, err
	}

	limits, err := s.catalog.LimitsFor(account.Plan)
	if err != nil {
		return domain.Decision{}, err
	}

	var decision domain.Decision
	switch action.Kind {
	case domain.ActionCreateWebsite:
		decision = s.evalCount(account.Plan, limits.Websites, account.WebsitesCreated, "websites",
			func(l plan.Limits) bool { return l.Websites.Allows(account.WebsitesCreated) })
	case domain.ActionRunAnalysis:
		decision = s.evalCount(account.Plan, limits.Analyses, account.AnalysesUsed, "analyses",
			func(l plan.Limits) bool { return l.Analyses.Allows(account.AnalysesUsed) })
	case domain.ActionUseFeature:
		if action.Feature == "" {
			return domain.Decision{}, domain.ErrUnknownAction
		}
		decision = s.evalFeature(account.Plan, limits, action.Feature)
	}

	s.metrics.RecordEntitlementCheck(ctx, string(action.Kind), decision.Allowed)
	if !decision.Allowed {
		s.log.Debug("entitlement denied",
			zap.String("account_id", accountID),
			zap.String("action", string(action.Kind)),
			zap.String("reason", decision.Reason),
		)
	}
	return decision, nil
}

// evalCount applies the exclusive upper bound: an account sitting exactly at
// the limit is already out of room. Counts above the limit happen after a
// downgrade and deny the same way.
func (s *Service) evalCount(current plan.Plan, limit plan.Limit, count int64, noun string, satisfies func(plan.Limits) bool) domain.Decision {
	if limit.Allows(count) {
		return domain.Decision{Allowed: true}
	}
	reason := fmt.Sprintf("plan %s allows %d %s", current, int64(limit), noun)
	if upgrade, ok := s.catalog.CheapestSatisfying(satisfies); ok && upgrade.Compare(current) > 0 {
		reason += fmt.Sprintf("; upgrade to %s to continue", upgrade)
		return domain.Decision{Reason: reason, UpgradeSuggested: &upgrade}
	}
	return domain.Decision{Reason: reason}
}

func (s *Service) evalFeature(current plan.Plan, limits plan.Limits, flag plan.FeatureFlag) domain.Decision {
	if limits.HasFeature(flag) {
		return domain.Decision{Allowed: true}
	}
	upgrade, ok := s.catalog.CheapestSatisfying(func(l plan.Limits) bool { return l.HasFeature(flag) })
	if !ok {
		return domain.Decision{Reason: fmt.Sprintf("feature %s is not available on any plan", flag)}
	}
	if upgrade.Compare(current) > 0 {
		return domain.Decision{
			Reason:           fmt.Sprintf("feature %s is not included in plan %s; upgrade to %s to use it", flag, current, upgrade),
			UpgradeSuggested: &upgrade,
		}
	}
	return domain.Decision{Reason: fmt.Sprintf("feature %s is not included in plan %s", flag, current)}
}
