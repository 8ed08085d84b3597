package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	"github.com/webloom/entitled/internal/config"
	entitlementdomain "github.com/webloom/entitled/internal/entitlement/domain"
	"github.com/webloom/entitled/internal/observability"
	obslogger "github.com/webloom/entitled/internal/observability/logger"
	obsmetrics "github.com/webloom/entitled/internal/observability/metrics"
	obstracing "github.com/webloom/entitled/internal/observability/tracing"
	paymentwebhook "github.com/webloom/entitled/internal/payment/webhook"
	"github.com/webloom/entitled/internal/ratelimit"
	usagedomain "github.com/webloom/entitled/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:             log.Named("http"),
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	accountSvc     accountdomain.Service
	entitlementSvc entitlementdomain.Service
	usageSvc       usagedomain.Service
	webhookSvc     *paymentwebhook.Service
	auditSvc       auditdomain.Service
	webhookLimiter *ratelimit.WebhookLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	AccountSvc     accountdomain.Service
	EntitlementSvc entitlementdomain.Service
	UsageSvc       usagedomain.Service
	WebhookSvc     *paymentwebhook.Service
	AuditSvc       auditdomain.Service
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		accountSvc:     p.AccountSvc,
		entitlementSvc: p.EntitlementSvc,
		usageSvc:       p.UsageSvc,
		webhookSvc:     p.WebhookSvc,
		auditSvc:       p.AuditSvc,
		webhookLimiter: p.WebhookLimiter,
		obsMetrics:     p.ObsMetrics,
	}
}

func registerRoutes(s *Server) {
	v1 := s.engine.Group("/v1")

	v1.POST("/entitlements/check", s.CheckEntitlement)
	v1.POST("/usage/commits", s.CommitUsage)
	v1.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)

	v1.POST("/accounts", s.CreateAccount)
	v1.GET("/accounts/:id", s.GetAccount)
	v1.GET("/accounts/:id/counters", s.GetAccountCounters)
	v1.PUT("/accounts/:id/plan", s.OverridePlan)

	v1.GET("/audit-logs", s.ListAuditLogs)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
