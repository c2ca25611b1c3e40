package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	billingdomain "github.com/campushq/paycore/internal/billing/domain"
	billingservice "github.com/campushq/paycore/internal/billing/service"
	"github.com/campushq/paycore/internal/gateway/adapters"
	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
	"github.com/campushq/paycore/internal/locker"
	"github.com/campushq/paycore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const callbackLockTTL = 30 * time.Second

type Params struct {
	fx.In

	Log      *zap.Logger
	Registry *adapters.Registry
	Ledger   *billingservice.Service
	Locker   *locker.Locker `optional:"true"`
	Metrics  *metrics.Metrics
}

// Dispatcher routes raw callbacks to the right adapter and feeds verified
// settlements into the ledger. Verification failures never reveal which
// check failed.
type Dispatcher struct {
	log      *zap.Logger
	registry *adapters.Registry
	ledger   *billingservice.Service
	locker   *locker.Locker
	metrics  *metrics.Metrics
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		log:      p.Log.Named("webhook.dispatcher"),
		registry: p.Registry,
		ledger:   p.Ledger,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}
}

// IngestCallback verifies and applies one callback. The returned result is
// nil when the event was authenticated but carries nothing to settle.
func (d *Dispatcher) IngestCallback(ctx context.Context, gateway string, cb gwdomain.Callback) (result *billingdomain.ApplyResult, err error) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway == "" || !d.registry.GatewayExists(gateway) {
		return nil, gwdomain.ErrGatewayNotFound
	}

	// a panicking adapter must not take the process down with it
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("adapter panicked",
				zap.String("gateway", gateway),
				zap.Any("panic", r),
			)
			d.metrics.RecordWebhookRejection(ctx, gateway, "panic")
			result = nil
			err = gwdomain.ErrInvalidPayload
		}
	}()

	adapter, err := d.registry.NewAdapter(gateway)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	settlement, err := adapter.VerifyCallback(ctx, cb)
	d.metrics.RecordGatewayCall(ctx, gateway, "verify", time.Since(started))
	if err != nil {
		return nil, d.classifyVerifyError(ctx, gateway, err)
	}
	if settlement == nil {
		return nil, gwdomain.ErrInvalidPayload
	}

	if d.locker != nil {
		key := fmt.Sprintf("paycore:callback:%s:%s", settlement.Gateway, settlement.ExternalRef)
		token, acquired, lockErr := d.locker.TryLock(ctx, key, callbackLockTTL)
		if lockErr != nil {
			d.log.Warn("callback lock unavailable", zap.Error(lockErr))
		} else if acquired {
			defer func() {
				if releaseErr := d.locker.Release(ctx, key, token); releaseErr != nil {
					d.log.Warn("callback lock release failed", zap.Error(releaseErr))
				}
			}()
		}
		// not acquired: proceed anyway, the ledger's unique index dedupes
	}

	result, err = d.ledger.Apply(ctx, settlement)
	if err != nil {
		return nil, err
	}

	d.metrics.RecordSettlement(ctx, gateway, string(settlement.Outcome))
	return result, nil
}

func (d *Dispatcher) classifyVerifyError(ctx context.Context, gateway string, err error) error {
	switch {
	case errors.Is(err, gwdomain.ErrEventIgnored):
		return err
	case errors.Is(err, gwdomain.ErrDeclined):
		d.log.Info("payment declined", zap.String("gateway", gateway), zap.Error(err))
		d.metrics.RecordWebhookRejection(ctx, gateway, "declined")
		return err
	case errors.Is(err, gwdomain.ErrInvalidSignature):
		d.log.Warn("callback failed verification", zap.String("gateway", gateway))
		d.metrics.RecordWebhookRejection(ctx, gateway, "signature")
		return err
	case errors.Is(err, gwdomain.ErrUnknownCorrelation):
		d.metrics.RecordWebhookRejection(ctx, gateway, "correlation")
		return err
	case errors.Is(err, gwdomain.ErrGatewayUnavailable):
		d.log.Warn("gateway verification call failed", zap.String("gateway", gateway), zap.Error(err))
		d.metrics.RecordWebhookRejection(ctx, gateway, "upstream")
		return err
	default:
		d.metrics.RecordWebhookRejection(ctx, gateway, "payload")
		return err
	}
}
