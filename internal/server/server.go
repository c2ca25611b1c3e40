package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/campushq/paycore/internal/billing"
	billingservice "github.com/campushq/paycore/internal/billing/service"
	"github.com/campushq/paycore/internal/checkout"
	checkoutservice "github.com/campushq/paycore/internal/checkout/service"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/correlation"
	"github.com/campushq/paycore/internal/gateway"
	"github.com/campushq/paycore/internal/locker"
	"github.com/campushq/paycore/internal/observability"
	obsmiddleware "github.com/campushq/paycore/internal/observability/logger"
	obsmetrics "github.com/campushq/paycore/internal/observability/metrics"
	obstracing "github.com/campushq/paycore/internal/observability/tracing"
	"github.com/campushq/paycore/internal/plan"
	"github.com/campushq/paycore/internal/tenant"
	"github.com/campushq/paycore/internal/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	plan.Module,
	tenant.Module,
	billing.Module,
	correlation.Module,
	gateway.Module,
	locker.Module,
	checkout.Module,
	webhook.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	checkoutSvc *checkoutservice.Service
	ledger      *billingservice.Service
	dispatcher  *webhook.Dispatcher
}

type ServerParams struct {
	fx.In

	Engine      *gin.Engine
	Cfg         config.Config
	CheckoutSvc *checkoutservice.Service
	Ledger      *billingservice.Service
	Dispatcher  *webhook.Dispatcher
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Engine,
		cfg:         p.Cfg,
		checkoutSvc: p.CheckoutSvc,
		ledger:      p.Ledger,
		dispatcher:  p.Dispatcher,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api/v1")
	api.POST("/checkout", s.HandleCreateCheckout)
	api.GET("/tenants/:tenant_id/subscription", s.HandleSubscriptionStatus)
	api.GET("/tenants/:tenant_id/payments", s.HandleListPayments)

	payments := s.engine.Group("/payments")
	payments.POST("/webhooks/:gateway", s.HandleGatewayWebhook)
	payments.GET("/return/:gateway", s.HandleGatewayReturn)
}
