package migration

import (
	"strings"

	accountdomain "github.com/webloom/entitled/internal/account/domain"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	"github.com/webloom/entitled/internal/config"
	paymentdomain "github.com/webloom/entitled/internal/payment/domain"
	"github.com/webloom/entitled/internal/seed"
	usagedomain "github.com/webloom/entitled/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// non-postgres targets (sqlite for local runs) fall back to
			// the model-driven schema
			log.Named("migrations").Info("using auto migration", zap.String("db_type", cfg.DBType))
			if err := conn.AutoMigrate(
				&accountdomain.Account{},
				&paymentdomain.EventRecord{},
				&auditdomain.AuditLog{},
				&usagedomain.AllocationRecord{},
			); err != nil {
				return err
			}
		}

		if strings.EqualFold(cfg.Environment, "development") {
			return seed.EnsureDemoAccount(conn)
		}
		return nil
	}),
)
