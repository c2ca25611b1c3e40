package gateway

import (
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/config"
	correlation "github.com/campushq/paycore/internal/correlation/domain"
	"github.com/campushq/paycore/internal/gateway/adapters"
	"github.com/campushq/paycore/internal/gateway/adapters/alfalah"
	"github.com/campushq/paycore/internal/gateway/adapters/jazzcash"
	"github.com/campushq/paycore/internal/gateway/adapters/kuickpay"
	"github.com/campushq/paycore/internal/gateway/adapters/paypal"
	"github.com/campushq/paycore/internal/gateway/adapters/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(NewRegistry),
)

type Params struct {
	fx.In

	Config   config.Config
	Settings *config.GatewaySettingsHolder
	Orders   correlation.Store
	Clock    clock.Clock
	Log      *zap.Logger
}

func NewRegistry(p Params) *adapters.Registry {
	settings := p.Settings.Get()
	return adapters.NewRegistry(
		alfalah.NewFactory(p.Config.Alfalah),
		jazzcash.NewFactory(p.Config.JazzCash, settings.RequestTimeout),
		kuickpay.NewFactory(p.Config.Kuickpay, settings.RequestTimeout, settings.PendingTTL, p.Orders, p.Clock, p.Log),
		paypal.NewFactory(p.Config.PayPal, settings.RequestTimeout, p.Log),
		stripe.NewFactory(p.Config.Stripe),
	)
}
