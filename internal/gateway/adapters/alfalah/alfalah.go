package alfalah

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/gateway/domain"
)

const gatewayName = "alfalah"

const approvedCode = "00"

type Factory struct {
	cfg config.AlfalahConfig
}

func NewFactory(cfg config.AlfalahConfig) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) Gateway() string {
	return gatewayName
}

func (f *Factory) NewAdapter() (domain.Adapter, error) {
	if strings.TrimSpace(f.cfg.MerchantID) == "" || strings.TrimSpace(f.cfg.SharedSecret) == "" {
		return nil, domain.ErrInvalidConfig
	}
	if strings.TrimSpace(f.cfg.PageBaseURL) == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{cfg: f.cfg}, nil
}

// Adapter drives the bank's hosted payment page. There is no API call in
// either direction: the request is a signed redirect and the result comes
// back as a signed return query.
type Adapter struct {
	cfg config.AlfalahConfig
}

func (a *Adapter) Name() string { return gatewayName }

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentIntent, error) {
	amount := strconv.FormatInt(req.Amount, 10)
	digest := requestDigest(
		a.cfg.MerchantID,
		req.OrderRef,
		amount,
		a.cfg.SuccessURL,
		a.cfg.DeclineURL,
		a.cfg.CancelURL,
		a.cfg.SharedSecret,
	)

	checkoutCtx := domain.CheckoutContext{
		TenantID:  req.TenantID,
		PlanID:    req.PlanID,
		Frequency: req.Frequency,
	}

	values := url.Values{}
	values.Set("merchant_id", a.cfg.MerchantID)
	values.Set("order_ref", req.OrderRef)
	values.Set("amount", amount)
	values.Set("currency", req.Currency)
	values.Set("success_url", a.cfg.SuccessURL)
	values.Set("decline_url", a.cfg.DeclineURL)
	values.Set("cancel_url", a.cfg.CancelURL)
	values.Set("udf1", checkoutCtx.Encode())
	values.Set("digest", digest)

	return &domain.PaymentIntent{
		Gateway:     gatewayName,
		OrderRef:    req.OrderRef,
		RedirectURL: a.cfg.PageBaseURL + "?" + values.Encode(),
	}, nil
}

// VerifyCallback authenticates the signed return query. The page echoes
// udf1 untouched, so the checkout context rides back in it.
func (a *Adapter) VerifyCallback(ctx context.Context, cb domain.Callback) (*domain.Settlement, error) {
	responseCode := strings.TrimSpace(cb.Query.Get("response_code"))
	amountRaw := strings.TrimSpace(cb.Query.Get("amount"))
	authCode := strings.TrimSpace(cb.Query.Get("auth_code"))
	orderRef := strings.TrimSpace(cb.Query.Get("order_ref"))
	signature := strings.TrimSpace(cb.Query.Get("signature"))

	if responseCode == "" || amountRaw == "" || orderRef == "" {
		return nil, domain.ErrInvalidPayload
	}
	if signature == "" {
		return nil, domain.ErrInvalidSignature
	}

	expected := responseDigest(responseCode, amountRaw, authCode, a.cfg.SharedSecret)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, domain.ErrInvalidSignature
	}

	// a signed decline classifies as a decline before udf1 is even looked at
	if responseCode != approvedCode {
		return nil, fmt.Errorf("%w: code %s", domain.ErrDeclined, responseCode)
	}

	checkoutCtx, err := domain.DecodeCheckoutContext(cb.Query.Get("udf1"))
	if err != nil {
		return nil, err
	}

	amount, err := strconv.ParseInt(amountRaw, 10, 64)
	if err != nil || amount <= 0 {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Settlement{
		TenantID:    checkoutCtx.TenantID,
		PlanID:      checkoutCtx.PlanID,
		Frequency:   checkoutCtx.Frequency,
		Amount:      amount,
		Currency:    strings.ToUpper(strings.TrimSpace(cb.Query.Get("currency"))),
		ExternalRef: orderRef,
		Gateway:     gatewayName,
		Outcome:     billing.OutcomeSuccess,
	}, nil
}

func requestDigest(fields ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(fields, "")))
	return hex.EncodeToString(sum[:])
}

func responseDigest(responseCode, amount, authCode, secret string) string {
	sum := sha256.Sum256([]byte(responseCode + amount + authCode + secret))
	return hex.EncodeToString(sum[:])
}
