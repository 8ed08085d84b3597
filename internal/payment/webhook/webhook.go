// Package webhook routes raw provider deliveries through the matching
// adapter and into the reconciler.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/webloom/entitled/internal/actorcontext"
	"github.com/webloom/entitled/internal/payment/domain"
	"github.com/webloom/entitled/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		registry.adapters[provider] = adapter
	}
	return registry
}

func (r *Registry) Adapter(provider string) (domain.Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return adapter, ok
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Registry   *Registry
	Reconciler domain.Service
	Limiter    *ratelimit.WebhookLimiter `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	registry   *Registry
	reconciler domain.Service
	limiter    *ratelimit.WebhookLimiter
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		registry:   p.Registry,
		reconciler: p.Reconciler,
		limiter:    p.Limiter,
	}
}

// Handle verifies, parses and reconciles one delivery. Verification and
// parse failures return before anything touches the store.
func (s *Service) Handle(ctx context.Context, provider string, payload []byte, headers http.Header) (domain.Result, error) {
	adapter, ok := s.registry.Adapter(provider)
	if !ok {
		return domain.Result{}, domain.ErrProviderNotFound
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", adapter.Provider()))
		return domain.Result{}, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			s.log.Error("malformed webhook payload rejected",
				zap.String("provider", adapter.Provider()),
				zap.ByteString("raw_payload", payload),
			)
		}
		return domain.Result{}, err
	}

	if s.limiter.Enabled() {
		token, acquired, err := s.limiter.TryLockEvent(ctx, event.Provider, event.IdempotencyKey)
		if err != nil {
			s.log.Warn("event lock unavailable", zap.Error(err))
		} else if !acquired {
			return domain.Result{}, domain.ErrEventInFlight
		} else {
			defer func() {
				_ = s.limiter.ReleaseEvent(ctx, event.Provider, event.IdempotencyKey, token)
			}()
		}
	}

	ctx = actorcontext.WithActor(ctx, actorcontext.Actor{
		Type: actorcontext.ActorTypeProvider,
		ID:   adapter.Provider(),
	})
	return s.reconciler.Process(ctx, event)
}
