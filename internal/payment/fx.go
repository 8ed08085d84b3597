package payment

import (
	"github.com/webloom/entitled/internal/config"
	"github.com/webloom/entitled/internal/payment/domain"
	"github.com/webloom/entitled/internal/payment/repository"
	"github.com/webloom/entitled/internal/payment/service"
	"github.com/webloom/entitled/internal/payment/webhook"
	"github.com/webloom/entitled/internal/payment/webhook/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(newRegistry),
	fx.Provide(webhook.NewService),
)

func newRegistry(cfg config.Config) (*webhook.Registry, error) {
	adapters := []domain.Adapter{}
	if cfg.WebhookSecret != "" {
		adapter, err := stripe.New(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return webhook.NewRegistry(adapters...), nil
}
