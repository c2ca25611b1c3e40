package service

import (
	"context"
	"crypto/rand"
	"strings"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/gateway/adapters"
	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
	plandomain "github.com/campushq/paycore/internal/plan/domain"
	tenantdomain "github.com/campushq/paycore/internal/tenant/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Settings *config.GatewaySettingsHolder
	Registry *adapters.Registry
	Plans    plandomain.Repository
	Tenants  tenantdomain.Repository
}

// Service starts checkouts. It owns amount computation: the price always
// comes from the plan, never from the caller.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	settings *config.GatewaySettingsHolder
	registry *adapters.Registry
	plans    plandomain.Repository
	tenants  tenantdomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("checkout.service"),
		clock:    p.Clock,
		settings: p.Settings,
		registry: p.Registry,
		plans:    p.Plans,
		tenants:  p.Tenants,
	}
}

type InitiateRequest struct {
	TenantID  int64
	PlanID    int64
	Frequency billing.Frequency
	Gateway   string
}

func (s *Service) InitiateCheckout(ctx context.Context, req InitiateRequest) (*gwdomain.PaymentIntent, error) {
	if !req.Frequency.Valid() {
		return nil, gwdomain.ErrInvalidPayload
	}

	gateway := strings.ToLower(strings.TrimSpace(req.Gateway))
	if !s.settings.Get().GatewayEnabled(gateway) {
		return nil, gwdomain.ErrGatewayNotFound
	}

	tenant, err := s.tenants.FindByID(ctx, s.db, req.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil || !tenant.Active {
		return nil, billing.ErrTenantNotFound
	}

	plan, err := s.plans.FindByID(ctx, s.db, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, billing.ErrPlanNotFound
	}
	if !plan.Active {
		return nil, billing.ErrPlanInactive
	}

	adapter, err := s.registry.NewAdapter(gateway)
	if err != nil {
		return nil, err
	}

	orderRef := ulid.MustNew(ulid.Timestamp(s.clock.Now()), rand.Reader).String()

	intent, err := adapter.CreatePayment(ctx, gwdomain.CreatePaymentRequest{
		TenantID:  req.TenantID,
		PlanID:    req.PlanID,
		Frequency: req.Frequency,
		Amount:    plan.PriceFor(req.Frequency),
		Currency:  plan.Currency,
		OrderRef:  orderRef,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout initiated",
		zap.String("gateway", gateway),
		zap.String("order_ref", intent.OrderRef),
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("plan_id", req.PlanID),
		zap.String("frequency", string(req.Frequency)),
	)
	return intent, nil
}
