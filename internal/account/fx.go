package account

import (
	"github.com/webloom/entitled/internal/account/repository"
	"github.com/webloom/entitled/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
