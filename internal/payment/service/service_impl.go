package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/observability/metrics"
	"github.com/webloom/entitled/internal/payment/domain"
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
	Accounts accountdomain.Repository
	Audit    auditdomain.Service
	Repo     domain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	accounts accountdomain.Repository
	audit    auditdomain.Service
	repo     domain.Repository
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
		audit:    p.Audit,
		repo:     p.Repo,
		metrics:  p.Metrics,
	}
}

func (s *Service) Process(ctx context.Context, event *domain.Event) (domain.Result, error) {
	if err := validate(event); err != nil {
		s.logMalformed(event)
		return domain.Result{}, err
	}

	var result domain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.FindByID(ctx, tx, event.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return accountdomain.ErrAccountNotFound
		}

		now := s.clock.Now()
		record := &domain.EventRecord{
			ID:             s.genID.Generate(),
			Provider:       event.Provider,
			IdempotencyKey: event.IdempotencyKey,
			AccountID:      event.AccountID,
			Outcome:        event.Outcome,
			TargetPlan:     event.TargetPlan,
			Applied:        event.Outcome == domain.OutcomeCompleted,
			RawPayload:     event.RawPayload,
			OccurredAt:     event.OccurredAt.UTC(),
			ReceivedAt:     now,
		}

		inserted, err := s.repo.InsertEvent(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			prior, err := s.repo.FindEvent(ctx, tx, event.Provider, event.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior == nil {
				return domain.ErrMalformedEvent
			}
			result = domain.Result{
				Applied:          prior.Applied,
				AlreadyProcessed: true,
				Outcome:          prior.Outcome,
			}
			return nil
		}

		result = domain.Result{Applied: record.Applied, Outcome: event.Outcome}
		if event.Outcome != domain.OutcomeCompleted {
			return nil
		}

		if err := s.accounts.UpdatePlan(ctx, tx, event.AccountID, event.TargetPlan, now); err != nil {
			return err
		}

		// the trail entry rides the same transaction: either the plan
		// change and its audit row both land, or neither does
		return s.audit.Append(ctx, tx, auditdomain.Entry{
			Action:         auditdomain.ActionPlanChanged,
			AccountID:      event.AccountID,
			Before:         map[string]any{"plan": account.Plan.String()},
			After:          map[string]any{"plan": event.TargetPlan.String()},
			IdempotencyKey: event.IdempotencyKey,
		})
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.metrics.RecordPaymentEvent(ctx, event.Provider, string(event.Outcome))
	s.log.Info("payment event reconciled",
		zap.String("provider", event.Provider),
		zap.String("idempotency_key", event.IdempotencyKey),
		zap.String("outcome", string(result.Outcome)),
		zap.Bool("applied", result.Applied),
		zap.Bool("already_processed", result.AlreadyProcessed),
	)
	return result, nil
}

// Malformed events are a permanent failure. The full payload goes to the
// log so an operator can replay the event once the source is corrected.
func (s *Service) logMalformed(event *domain.Event) {
	if event == nil {
		s.log.Error("malformed payment event rejected")
		return
	}
	s.log.Error("malformed payment event rejected",
		zap.String("provider", event.Provider),
		zap.String("idempotency_key", event.IdempotencyKey),
		zap.ByteString("raw_payload", event.RawPayload),
	)
}

func validate(event *domain.Event) error {
	if event == nil {
		return domain.ErrMalformedEvent
	}
	if strings.TrimSpace(event.Provider) == "" ||
		strings.TrimSpace(event.IdempotencyKey) == "" ||
		event.AccountID == 0 ||
		!event.Outcome.Valid() {
		return domain.ErrMalformedEvent
	}
	if event.Outcome == domain.OutcomeCompleted && !event.TargetPlan.Valid() {
		return domain.ErrMalformedEvent
	}
	return nil
}
