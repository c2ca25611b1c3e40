package jazzcash

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/gateway/domain"
)

const gatewayName = "jazzcash"

const approvedCode = "00"

const signatureHeader = "X-Signature"

type Factory struct {
	cfg     config.JazzCashConfig
	timeout time.Duration
}

func NewFactory(cfg config.JazzCashConfig, timeout time.Duration) *Factory {
	return &Factory{cfg: cfg, timeout: timeout}
}

func (f *Factory) Gateway() string {
	return gatewayName
}

func (f *Factory) NewAdapter() (domain.Adapter, error) {
	if strings.TrimSpace(f.cfg.MerchantID) == "" ||
		strings.TrimSpace(f.cfg.APIToken) == "" ||
		strings.TrimSpace(f.cfg.SharedSecret) == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		cfg:    f.cfg,
		client: &http.Client{Timeout: f.timeout},
	}, nil
}

// Adapter speaks the wallet's REST API. Outbound requests carry an HMAC of
// the exact body; inbound webhooks are verified against the same secret.
type Adapter struct {
	cfg    config.JazzCashConfig
	client *http.Client
}

func (a *Adapter) Name() string { return gatewayName }

type createSessionRequest struct {
	MerchantID  string `json:"merchant_id"`
	InvoiceRef  string `json:"invoice_ref"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	ReturnURL   string `json:"return_url"`
	Context     string `json:"context"`
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentIntent, error) {
	checkoutCtx := domain.CheckoutContext{
		TenantID:  req.TenantID,
		PlanID:    req.PlanID,
		Frequency: req.Frequency,
	}

	body, err := json.Marshal(createSessionRequest{
		MerchantID:  a.cfg.MerchantID,
		InvoiceRef:  req.OrderRef,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: fmt.Sprintf("subscription %s", req.OrderRef),
		ReturnURL:   a.cfg.ReturnURL,
		Context:     checkoutCtx.Encode(),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)
	httpReq.Header.Set(signatureHeader, signBody(body, a.cfg.SharedSecret))

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var session createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.RedirectURL) == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.PaymentIntent{
		Gateway:     gatewayName,
		OrderRef:    req.OrderRef,
		RedirectURL: session.RedirectURL,
	}, nil
}

type webhookPayload struct {
	InvoiceRef   string `json:"invoice_ref"`
	ResponseCode string `json:"response_code"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Context      string `json:"context"`
}

// VerifyCallback recomputes the webhook signature over
// invoiceRef|responseCode|amount. A missing signature header fails closed.
func (a *Adapter) VerifyCallback(ctx context.Context, cb domain.Callback) (*domain.Settlement, error) {
	signature := strings.TrimSpace(cb.Header.Get(signatureHeader))
	if signature == "" {
		return nil, domain.ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(cb.Body, &payload); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(payload.InvoiceRef) == "" || strings.TrimSpace(payload.ResponseCode) == "" {
		return nil, domain.ErrInvalidPayload
	}

	signed := fmt.Sprintf("%s|%s|%d", payload.InvoiceRef, payload.ResponseCode, payload.Amount)
	expected := signString(signed, a.cfg.SharedSecret)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, domain.ErrInvalidSignature
	}

	// declines classify before the context decodes; a signed decline is a
	// decline even when its context field is junk
	if payload.ResponseCode != approvedCode {
		return nil, fmt.Errorf("%w: code %s", domain.ErrDeclined, payload.ResponseCode)
	}

	checkoutCtx, err := domain.DecodeCheckoutContext(payload.Context)
	if err != nil {
		return nil, err
	}
	if payload.Amount <= 0 {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Settlement{
		TenantID:    checkoutCtx.TenantID,
		PlanID:      checkoutCtx.PlanID,
		Frequency:   checkoutCtx.Frequency,
		Amount:      payload.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(payload.Currency)),
		ExternalRef: payload.InvoiceRef,
		Gateway:     gatewayName,
		Outcome:     billing.OutcomeSuccess,
	}, nil
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signString(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
