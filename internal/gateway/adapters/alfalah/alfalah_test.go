package alfalah

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/config"
	"github.com/campushq/paycore/internal/gateway/domain"
)

func testConfig() config.AlfalahConfig {
	return config.AlfalahConfig{
		MerchantID:   "MER001",
		SharedSecret: "topsecret",
		PageBaseURL:  "https://pay.example.com/HS",
		SuccessURL:   "https://app.example.com/return/alfalah",
		DeclineURL:   "https://app.example.com/return/alfalah",
		CancelURL:    "https://app.example.com/cancel",
	}
}

func newAdapter(t *testing.T) domain.Adapter {
	t.Helper()
	adapter, err := NewFactory(testConfig()).NewAdapter()
	assert.NoError(t, err)
	return adapter
}

func TestFactoryRejectsIncompleteConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SharedSecret = ""
	_, err := NewFactory(cfg).NewAdapter()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCreatePaymentSignsRedirect(t *testing.T) {
	adapter := newAdapter(t)

	intent, err := adapter.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		TenantID:  1,
		PlanID:    2,
		Frequency: billing.FrequencyMonthly,
		Amount:    250000,
		Currency:  "PKR",
		OrderRef:  "ORD-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "alfalah", intent.Gateway)
	assert.Equal(t, "ORD-1", intent.OrderRef)

	parsed, err := url.Parse(intent.RedirectURL)
	assert.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "MER001", q.Get("merchant_id"))
	assert.Equal(t, "ORD-1", q.Get("order_ref"))
	assert.Equal(t, "250000", q.Get("amount"))
	assert.Equal(t, "t:1;p:2;f:monthly", q.Get("udf1"))

	cfg := testConfig()
	expected := requestDigest(cfg.MerchantID, "ORD-1", "250000",
		cfg.SuccessURL, cfg.DeclineURL, cfg.CancelURL, cfg.SharedSecret)
	assert.Equal(t, expected, q.Get("digest"))
}

func signedReturnQuery(code, amount, authCode string) url.Values {
	q := url.Values{}
	q.Set("response_code", code)
	q.Set("amount", amount)
	q.Set("auth_code", authCode)
	q.Set("order_ref", "ORD-1")
	q.Set("currency", "pkr")
	q.Set("udf1", "t:1;p:2;f:monthly")
	q.Set("signature", responseDigest(code, amount, authCode, "topsecret"))
	return q
}

func TestVerifyCallbackApproved(t *testing.T) {
	adapter := newAdapter(t)

	settlement, err := adapter.VerifyCallback(context.Background(), domain.Callback{
		Query: signedReturnQuery("00", "250000", "A123"),
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), settlement.TenantID)
	assert.Equal(t, int64(2), settlement.PlanID)
	assert.Equal(t, billing.FrequencyMonthly, settlement.Frequency)
	assert.Equal(t, int64(250000), settlement.Amount)
	assert.Equal(t, "PKR", settlement.Currency)
	assert.Equal(t, "ORD-1", settlement.ExternalRef)
	assert.Equal(t, billing.OutcomeSuccess, settlement.Outcome)
}

func TestVerifyCallbackRejectsTamperedDigest(t *testing.T) {
	adapter := newAdapter(t)

	q := signedReturnQuery("00", "250000", "A123")
	sig := []byte(q.Get("signature"))
	sig[0] ^= 1
	q.Set("signature", string(sig))

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: q})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyCallbackRejectsTamperedAmount(t *testing.T) {
	adapter := newAdapter(t)

	q := signedReturnQuery("00", "250000", "A123")
	q.Set("amount", "1")

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: q})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyCallbackMissingSignatureFailsClosed(t *testing.T) {
	adapter := newAdapter(t)

	q := signedReturnQuery("00", "250000", "A123")
	q.Del("signature")

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: q})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyCallbackDeclined(t *testing.T) {
	adapter := newAdapter(t)

	// The decline is still signed; a forged decline must not be trusted
	// any more than a forged approval.
	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{
		Query: signedReturnQuery("51", "250000", ""),
	})
	assert.ErrorIs(t, err, domain.ErrDeclined)
}

func TestVerifyCallbackDeclinedWithBrokenContext(t *testing.T) {
	adapter := newAdapter(t)

	// udf1 is not signed, so a mangled echo must not change how a signed
	// decline classifies.
	q := signedReturnQuery("51", "250000", "")
	q.Set("udf1", "garbage")

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: q})
	assert.ErrorIs(t, err, domain.ErrDeclined)
}
