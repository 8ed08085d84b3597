package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/webloom/entitled/internal/account"
	"github.com/webloom/entitled/internal/audit"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/config"
	"github.com/webloom/entitled/internal/entitlement"
	"github.com/webloom/entitled/internal/migration"
	"github.com/webloom/entitled/internal/observability"
	"github.com/webloom/entitled/internal/payment"
	"github.com/webloom/entitled/internal/plan"
	"github.com/webloom/entitled/internal/ratelimit"
	"github.com/webloom/entitled/internal/server"
	"github.com/webloom/entitled/internal/usage"
	"github.com/webloom/entitled/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// domains
		plan.Module,
		account.Module,
		entitlement.Module,
		usage.Module,
		payment.Module,
		audit.Module,
		ratelimit.Module,

		server.Module,
	)

	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
