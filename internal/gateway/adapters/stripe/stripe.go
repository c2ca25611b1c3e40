package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/gateway/domain"
	stripeapi "github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/webhook"
)

const gatewayName = "stripe"

type Factory struct {
	cfg config.StripeConfig
}

func NewFactory(cfg config.StripeConfig) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) Gateway() string {
	return gatewayName
}

func (f *Factory) NewAdapter() (domain.Adapter, error) {
	if strings.TrimSpace(f.cfg.SecretKey) == "" || strings.TrimSpace(f.cfg.WebhookSecret) == "" {
		return nil, domain.ErrInvalidConfig
	}
	stripeapi.Key = f.cfg.SecretKey
	return &Adapter{cfg: f.cfg}, nil
}

// Adapter drives hosted checkout sessions. Checkout context rides in the
// session and payment-intent metadata; webhooks are authenticated with the
// SDK's signed-event construction.
type Adapter struct {
	cfg config.StripeConfig
}

func (a *Adapter) Name() string { return gatewayName }

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentIntent, error) {
	checkoutCtx := domain.CheckoutContext{
		TenantID:  req.TenantID,
		PlanID:    req.PlanID,
		Frequency: req.Frequency,
	}
	metadata := map[string]string{
		"tenant_id": strconv.FormatInt(req.TenantID, 10),
		"plan_id":   strconv.FormatInt(req.PlanID, 10),
		"frequency": string(req.Frequency),
		"context":   checkoutCtx.Encode(),
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(a.cfg.SuccessURL),
		CancelURL:         stripeapi.String(a.cfg.CancelURL),
		ClientReferenceID: stripeapi.String(req.OrderRef),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{{
			Quantity: stripeapi.Int64(1),
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(strings.ToLower(req.Currency)),
				UnitAmount: stripeapi.Int64(req.Amount),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(fmt.Sprintf("subscription %s", req.Frequency)),
				},
			},
		}},
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	params.Context = ctx

	session, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.PaymentIntent{
		Gateway:     gatewayName,
		OrderRef:    session.ID,
		RedirectURL: session.URL,
	}, nil
}

func (a *Adapter) VerifyCallback(ctx context.Context, cb domain.Callback) (*domain.Settlement, error) {
	signature := strings.TrimSpace(cb.Header.Get("Stripe-Signature"))
	if signature == "" {
		return nil, domain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(cb.Body, signature, a.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}

	switch event.Type {
	case "checkout.session.completed":
		return a.settleCompletedSession(event)
	case "charge.refunded":
		return a.settleRefundedCharge(event)
	default:
		return nil, domain.ErrEventIgnored
	}
}

func (a *Adapter) settleCompletedSession(event stripeapi.Event) (*domain.Settlement, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	checkoutCtx, err := domain.DecodeCheckoutContext(session.Metadata["context"])
	if err != nil {
		return nil, err
	}
	if session.AmountTotal <= 0 {
		return nil, domain.ErrInvalidPayload
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}

	return &domain.Settlement{
		TenantID:           checkoutCtx.TenantID,
		PlanID:             checkoutCtx.PlanID,
		Frequency:          checkoutCtx.Frequency,
		Amount:             session.AmountTotal,
		Currency:           strings.ToUpper(string(session.Currency)),
		ExternalRef:        session.ID,
		Gateway:            gatewayName,
		Outcome:            billing.OutcomeSuccess,
		ExternalCustomerID: customerID,
	}, nil
}

func (a *Adapter) settleRefundedCharge(event stripeapi.Event) (*domain.Settlement, error) {
	var charge stripeapi.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(charge.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	checkoutCtx, err := domain.DecodeCheckoutContext(charge.Metadata["context"])
	if err != nil {
		return nil, err
	}

	amount := charge.AmountRefunded
	if amount <= 0 {
		amount = charge.Amount
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Settlement{
		TenantID:    checkoutCtx.TenantID,
		PlanID:      checkoutCtx.PlanID,
		Frequency:   checkoutCtx.Frequency,
		Amount:      amount,
		Currency:    strings.ToUpper(string(charge.Currency)),
		ExternalRef: charge.ID,
		Gateway:     gatewayName,
		Outcome:     billing.OutcomeRefunded,
	}, nil
}
