package kuickpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/config"
	correlation "github.com/campushq/paycore/internal/correlation/domain"
	"github.com/campushq/paycore/internal/gateway/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const gatewayName = "kuickpay"

// tokens are refreshed this long before they expire, so an in-flight call
// never races a token that dies under it
const tokenEarlyExpiry = 60 * time.Second

type Factory struct {
	cfg        config.KuickpayConfig
	timeout    time.Duration
	pendingTTL time.Duration
	orders     correlation.Store
	clock      clock.Clock
	log        *zap.Logger

	once    sync.Once
	adapter *Adapter
	err     error
}

func NewFactory(cfg config.KuickpayConfig, timeout, pendingTTL time.Duration, orders correlation.Store, clk clock.Clock, log *zap.Logger) *Factory {
	return &Factory{cfg: cfg, timeout: timeout, pendingTTL: pendingTTL, orders: orders, clock: clk, log: log}
}

func (f *Factory) Gateway() string {
	return gatewayName
}

// NewAdapter hands out one shared adapter. The token source inside it must
// live for the whole process or the bearer token is re-fetched per request.
func (f *Factory) NewAdapter() (domain.Adapter, error) {
	f.once.Do(func() {
		if strings.TrimSpace(f.cfg.ClientID) == "" ||
			strings.TrimSpace(f.cfg.ClientSecret) == "" ||
			strings.TrimSpace(f.cfg.TokenURL) == "" {
			f.err = domain.ErrInvalidConfig
			return
		}

		creds := &clientcredentials.Config{
			ClientID:     f.cfg.ClientID,
			ClientSecret: f.cfg.ClientSecret,
			TokenURL:     f.cfg.TokenURL,
		}

		f.adapter = &Adapter{
			cfg:        f.cfg,
			orders:     f.orders,
			clock:      f.clock,
			log:        f.log.Named("gateway.kuickpay"),
			pendingTTL: f.pendingTTL,
			tokens:     oauth2.ReuseTokenSourceWithExpiry(nil, creds.TokenSource(context.Background()), tokenEarlyExpiry),
			client:     &http.Client{Timeout: f.timeout},
		}
	})
	if f.err != nil {
		return nil, f.err
	}
	return f.adapter, nil
}

// Adapter speaks an OAuth2 client-credentials REST API whose callbacks
// carry nothing but an opaque transaction id. Checkout context is parked
// in the pending-order store before the network ever sees the order.
type Adapter struct {
	cfg        config.KuickpayConfig
	orders     correlation.Store
	clock      clock.Clock
	log        *zap.Logger
	pendingTTL time.Duration
	tokens     oauth2.TokenSource
	client     *http.Client
}

func (a *Adapter) Name() string { return gatewayName }

func (a *Adapter) pendingTTLOrDefault() time.Duration {
	if a.pendingTTL > 0 {
		return a.pendingTTL
	}
	return time.Hour
}

type createPaymentRequest struct {
	OrderRef  string `json:"order_ref"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	ReturnURL string `json:"return_url"`
}

type createPaymentResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// CreatePayment persists the pending order before calling the network, so
// a callback racing the create response still resolves.
func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentIntent, error) {
	now := a.clock.Now()
	pending := &correlation.PendingOrder{
		Reference: req.OrderRef,
		TenantID:  req.TenantID,
		PlanID:    req.PlanID,
		Frequency: req.Frequency,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Gateway:   gatewayName,
		CreatedAt: now,
		ExpiresAt: now.Add(a.pendingTTLOrDefault()),
	}
	if err := a.orders.Put(ctx, pending); err != nil {
		return nil, err
	}

	body, err := json.Marshal(createPaymentRequest{
		OrderRef:  req.OrderRef,
		Amount:    req.Amount,
		Currency:  req.Currency,
		ReturnURL: a.cfg.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodPost, a.cfg.BaseURL+"/payments", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var created createPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(created.CheckoutURL) == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.PaymentIntent{
		Gateway:     gatewayName,
		OrderRef:    req.OrderRef,
		RedirectURL: created.CheckoutURL,
	}, nil
}

type transactionResponse struct {
	TransactionID string `json:"transaction_id"`
	OrderRef      string `json:"order_ref"`
	Message       string `json:"message"`
	Amount        int64  `json:"amount"`
}

// VerifyCallback resolves the opaque transaction id against the network,
// then consumes the matching pending order. A transaction we have no
// pending order for gets its own failure mode so operators can spot it.
func (a *Adapter) VerifyCallback(ctx context.Context, cb domain.Callback) (*domain.Settlement, error) {
	transactionID := strings.TrimSpace(cb.Query.Get("transaction_id"))
	if transactionID == "" {
		return nil, domain.ErrInvalidPayload
	}

	resp, err := a.do(ctx, http.MethodGet, a.cfg.BaseURL+"/transactions/"+transactionID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var tx transactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(tx.OrderRef) == "" {
		return nil, domain.ErrInvalidPayload
	}

	if !strings.EqualFold(strings.TrimSpace(tx.Message), "successful") {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeclined, tx.Message)
	}

	pending, err := a.orders.Take(ctx, tx.OrderRef)
	if err != nil {
		if errors.Is(err, correlation.ErrNotFound) {
			a.log.Error("settled transaction has no pending order",
				zap.String("transaction_id", transactionID),
				zap.String("order_ref", tx.OrderRef),
			)
			return nil, domain.ErrUnknownCorrelation
		}
		return nil, err
	}

	return &domain.Settlement{
		TenantID:    pending.TenantID,
		PlanID:      pending.PlanID,
		Frequency:   pending.Frequency,
		Amount:      pending.Amount,
		Currency:    pending.Currency,
		ExternalRef: tx.OrderRef,
		Gateway:     gatewayName,
		Outcome:     billing.OutcomeSuccess,
	}, nil
}

func (a *Adapter) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	token, err := a.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token.SetAuthHeader(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return resp, nil
}
