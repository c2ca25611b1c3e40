package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/campushq/paycore/internal/billing/domain"
	billingrepo "github.com/campushq/paycore/internal/billing/repository"
	billingservice "github.com/campushq/paycore/internal/billing/service"
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/gateway/adapters"
	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
)

type scriptedAdapter struct {
	name       string
	settlement *gwdomain.Settlement
	err        error
	panicWith  any
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) CreatePayment(ctx context.Context, req gwdomain.CreatePaymentRequest) (*gwdomain.PaymentIntent, error) {
	return nil, gwdomain.ErrGatewayUnavailable
}

func (a *scriptedAdapter) VerifyCallback(ctx context.Context, cb gwdomain.Callback) (*gwdomain.Settlement, error) {
	if a.panicWith != nil {
		panic(a.panicWith)
	}
	return a.settlement, a.err
}

type scriptedFactory struct{ adapter *scriptedAdapter }

func (f *scriptedFactory) Gateway() string { return f.adapter.name }

func (f *scriptedFactory) NewAdapter() (gwdomain.Adapter, error) { return f.adapter, nil }

func newDispatcher(t *testing.T, adapter *scriptedAdapter) *Dispatcher {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&billingdomain.Subscription{}, &billingdomain.PaymentRecord{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	ledger := billingservice.New(billingservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  billingrepo.Provide(),
	})

	return New(Params{
		Log:      zap.NewNop(),
		Registry: adapters.NewRegistry(&scriptedFactory{adapter: adapter}),
		Ledger:   ledger,
	})
}

func verifiedSettlement() *gwdomain.Settlement {
	return &gwdomain.Settlement{
		TenantID:    1,
		PlanID:      2,
		Frequency:   billingdomain.FrequencyMonthly,
		Amount:      250000,
		Currency:    "PKR",
		ExternalRef: "REF-1",
		Gateway:     "testpay",
		Outcome:     billingdomain.OutcomeSuccess,
	}
}

func TestIngestCallbackAppliesSettlement(t *testing.T) {
	adapter := &scriptedAdapter{name: "testpay", settlement: verifiedSettlement()}
	dispatcher := newDispatcher(t, adapter)

	result, err := dispatcher.IngestCallback(context.Background(), "testpay", gwdomain.Callback{})
	assert.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, billingdomain.StatusActive, result.Subscription.Status)
}

func TestIngestCallbackReplayedSettlement(t *testing.T) {
	adapter := &scriptedAdapter{name: "testpay", settlement: verifiedSettlement()}
	dispatcher := newDispatcher(t, adapter)

	_, err := dispatcher.IngestCallback(context.Background(), "testpay", gwdomain.Callback{})
	assert.NoError(t, err)

	result, err := dispatcher.IngestCallback(context.Background(), "testpay", gwdomain.Callback{})
	assert.NoError(t, err)
	assert.True(t, result.Replayed)
}

func TestIngestCallbackUnknownGateway(t *testing.T) {
	adapter := &scriptedAdapter{name: "testpay"}
	dispatcher := newDispatcher(t, adapter)

	_, err := dispatcher.IngestCallback(context.Background(), "paymob", gwdomain.Callback{})
	assert.ErrorIs(t, err, gwdomain.ErrGatewayNotFound)
}

func TestIngestCallbackSurvivesPanickingAdapter(t *testing.T) {
	adapter := &scriptedAdapter{name: "testpay", panicWith: "boom"}
	dispatcher := newDispatcher(t, adapter)

	result, err := dispatcher.IngestCallback(context.Background(), "testpay", gwdomain.Callback{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, gwdomain.ErrInvalidPayload)
}

func TestIngestCallbackPassesThroughVerifyErrors(t *testing.T) {
	for _, sentinel := range []error{
		gwdomain.ErrEventIgnored,
		gwdomain.ErrDeclined,
		gwdomain.ErrInvalidSignature,
		gwdomain.ErrUnknownCorrelation,
		gwdomain.ErrGatewayUnavailable,
	} {
		adapter := &scriptedAdapter{name: "testpay", err: sentinel}
		dispatcher := newDispatcher(t, adapter)

		_, err := dispatcher.IngestCallback(context.Background(), "testpay", gwdomain.Callback{})
		assert.ErrorIs(t, err, sentinel)
	}
}

func TestIngestCallbackNilSettlementIsRejected(t *testing.T) {
	adapter := &scriptedAdapter{name: "testpay"}
	dispatcher := newDispatcher(t, adapter)

	_, err := dispatcher.IngestCallback(context.Background(), "testpay", gwdomain.Callback{})
	assert.ErrorIs(t, err, gwdomain.ErrInvalidPayload)
}
