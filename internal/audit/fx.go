package audit

import (
	"github.com/webloom/entitled/internal/audit/repository"
	"github.com/webloom/entitled/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
