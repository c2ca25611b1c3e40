package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/gateway/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const gatewayName = "paypal"

const tokenEarlyExpiry = 60 * time.Second

type Factory struct {
	cfg     config.PayPalConfig
	timeout time.Duration
	log     *zap.Logger

	once    sync.Once
	adapter *Adapter
	err     error
}

func NewFactory(cfg config.PayPalConfig, timeout time.Duration, log *zap.Logger) *Factory {
	return &Factory{cfg: cfg, timeout: timeout, log: log}
}

func (f *Factory) Gateway() string {
	return gatewayName
}

// NewAdapter hands out one shared adapter so the cached bearer token
// survives across requests.
func (f *Factory) NewAdapter() (domain.Adapter, error) {
	f.once.Do(func() {
		if strings.TrimSpace(f.cfg.ClientID) == "" ||
			strings.TrimSpace(f.cfg.ClientSecret) == "" ||
			strings.TrimSpace(f.cfg.WebhookID) == "" {
			f.err = domain.ErrInvalidConfig
			return
		}

		creds := &clientcredentials.Config{
			ClientID:     f.cfg.ClientID,
			ClientSecret: f.cfg.ClientSecret,
			TokenURL:     strings.TrimRight(f.cfg.BaseURL, "/") + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}

		f.adapter = &Adapter{
			cfg:    f.cfg,
			log:    f.log.Named("gateway.paypal"),
			tokens: oauth2.ReuseTokenSourceWithExpiry(nil, creds.TokenSource(context.Background()), tokenEarlyExpiry),
			client: &http.Client{Timeout: f.timeout},
		}
	})
	if f.err != nil {
		return nil, f.err
	}
	return f.adapter, nil
}

// Adapter drives the order/capture flow. Checkout context travels in
// purchase_units[0].custom_id, which the platform echoes on every capture
// resource. Webhook authenticity is checked against the platform's own
// verification endpoint rather than locally.
type Adapter struct {
	cfg    config.PayPalConfig
	log    *zap.Logger
	tokens oauth2.TokenSource
	client *http.Client
}

func (a *Adapter) Name() string { return gatewayName }

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string      `json:"reference_id,omitempty"`
	CustomID    string      `json:"custom_id,omitempty"`
	Amount      orderAmount `json:"amount"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type orderLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Links  []orderLink `json:"links"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentIntent, error) {
	checkoutCtx := domain.CheckoutContext{
		TenantID:  req.TenantID,
		PlanID:    req.PlanID,
		Frequency: req.Frequency,
	}

	body, err := json.Marshal(createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: req.OrderRef,
			CustomID:    checkoutCtx.Encode(),
			Amount: orderAmount{
				CurrencyCode: req.Currency,
				Value:        domain.FormatMajor(req.Amount),
			},
		}},
		ApplicationContext: applicationContext{
			ReturnURL: a.cfg.ReturnURL,
			CancelURL: a.cfg.CancelURL,
		},
	})
	if err != nil {
		return nil, err
	}

	var order orderResponse
	if err := a.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	approve := linkByRel(order.Links, "approve")
	if approve == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.PaymentIntent{
		Gateway:     gatewayName,
		OrderRef:    order.ID,
		RedirectURL: approve,
	}, nil
}

// VerifyCallback handles both legs: the buyer's return (order token in the
// query, which we capture) and the async webhook (signed event body). Both
// settle on the capture id, so the ledger collapses them into one row.
func (a *Adapter) VerifyCallback(ctx context.Context, cb domain.Callback) (*domain.Settlement, error) {
	if token := strings.TrimSpace(cb.Query.Get("token")); token != "" {
		return a.captureOrder(ctx, token)
	}
	if len(cb.Body) > 0 {
		return a.handleWebhook(ctx, cb)
	}
	return nil, domain.ErrInvalidPayload
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []captureResource `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		PayerID string `json:"payer_id"`
	} `json:"payer"`
}

type captureResource struct {
	ID       string      `json:"id"`
	Status   string      `json:"status"`
	CustomID string      `json:"custom_id"`
	Amount   orderAmount `json:"amount"`
}

func (a *Adapter) captureOrder(ctx context.Context, orderID string) (*domain.Settlement, error) {
	var captured captureResponse
	err := a.call(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", []byte("{}"), &captured)
	if err != nil {
		return nil, err
	}

	var capture *captureResource
	for _, unit := range captured.PurchaseUnits {
		for i := range unit.Payments.Captures {
			capture = &unit.Payments.Captures[i]
		}
	}
	if capture == nil || strings.TrimSpace(capture.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	if !strings.EqualFold(capture.Status, "COMPLETED") {
		return nil, fmt.Errorf("%w: capture status %s", domain.ErrDeclined, capture.Status)
	}

	return a.settlementFromCapture(*capture, billing.OutcomeSuccess, captured.Payer.PayerID)
}

type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   time.Time       `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

func (a *Adapter) handleWebhook(ctx context.Context, cb domain.Callback) (*domain.Settlement, error) {
	if err := a.verifyTransmission(ctx, cb); err != nil {
		return nil, err
	}

	var event webhookEvent
	if err := json.Unmarshal(cb.Body, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	var outcome billing.Outcome
	switch strings.TrimSpace(event.EventType) {
	case "PAYMENT.CAPTURE.COMPLETED":
		outcome = billing.OutcomeSuccess
	case "PAYMENT.CAPTURE.DENIED":
		outcome = billing.OutcomeFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		outcome = billing.OutcomeRefunded
	default:
		return nil, domain.ErrEventIgnored
	}

	var capture captureResource
	if err := json.Unmarshal(event.Resource, &capture); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(capture.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	settlement, err := a.settlementFromCapture(capture, outcome, "")
	if err != nil {
		return nil, err
	}
	if !event.CreateTime.IsZero() {
		settlement.OccurredAt = event.CreateTime.UTC()
	}
	return settlement, nil
}

func (a *Adapter) settlementFromCapture(capture captureResource, outcome billing.Outcome, payerID string) (*domain.Settlement, error) {
	checkoutCtx, err := domain.DecodeCheckoutContext(capture.CustomID)
	if err != nil {
		return nil, err
	}

	amount, err := domain.ParseMajor(capture.Amount.Value)
	if err != nil || amount <= 0 {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Settlement{
		TenantID:           checkoutCtx.TenantID,
		PlanID:             checkoutCtx.PlanID,
		Frequency:          checkoutCtx.Frequency,
		Amount:             amount,
		Currency:           strings.ToUpper(strings.TrimSpace(capture.Amount.CurrencyCode)),
		ExternalRef:        capture.ID,
		Gateway:            gatewayName,
		Outcome:            outcome,
		ExternalCustomerID: payerID,
	}, nil
}

type verifyRequest struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	TransmissionSig  string          `json:"transmission_sig"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// verifyTransmission asks the platform whether it really sent this event.
func (a *Adapter) verifyTransmission(ctx context.Context, cb domain.Callback) error {
	transmissionID := strings.TrimSpace(cb.Header.Get("Paypal-Transmission-Id"))
	transmissionTime := strings.TrimSpace(cb.Header.Get("Paypal-Transmission-Time"))
	transmissionSig := strings.TrimSpace(cb.Header.Get("Paypal-Transmission-Sig"))
	certURL := strings.TrimSpace(cb.Header.Get("Paypal-Cert-Url"))
	authAlgo := strings.TrimSpace(cb.Header.Get("Paypal-Auth-Algo"))

	if transmissionID == "" || transmissionTime == "" || transmissionSig == "" || certURL == "" || authAlgo == "" {
		return domain.ErrInvalidSignature
	}

	body, err := json.Marshal(verifyRequest{
		TransmissionID:   transmissionID,
		TransmissionTime: transmissionTime,
		TransmissionSig:  transmissionSig,
		CertURL:          certURL,
		AuthAlgo:         authAlgo,
		WebhookID:        a.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(cb.Body),
	})
	if err != nil {
		return err
	}

	var verdict verifyResponse
	if err := a.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &verdict); err != nil {
		return err
	}

	if !strings.EqualFold(verdict.VerificationStatus, "SUCCESS") {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) call(ctx context.Context, method, path string, body []byte, out any) error {
	token, err := a.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(a.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ErrInvalidPayload
	}
	return nil
}

func linkByRel(links []orderLink, rel string) string {
	for _, link := range links {
		if strings.EqualFold(link.Rel, rel) {
			return strings.TrimSpace(link.Href)
		}
	}
	return ""
}
