package usage

import (
	"github.com/webloom/entitled/internal/usage/repository"
	"github.com/webloom/entitled/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
