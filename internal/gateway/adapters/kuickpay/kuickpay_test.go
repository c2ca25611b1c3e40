package kuickpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/config"
	correlation "github.com/campushq/paycore/internal/correlation/domain"
	"github.com/campushq/paycore/internal/gateway/domain"
)

// memStore is a map-backed pending-order store for adapter tests; the
// SQL-backed behavior has its own tests.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*correlation.PendingOrder
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]*correlation.PendingOrder{}}
}

func (s *memStore) Put(ctx context.Context, order *correlation.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.Reference] = order
	return nil
}

func (s *memStore) Peek(ctx context.Context, reference string) (*correlation.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[reference]
	if !ok {
		return nil, correlation.ErrNotFound
	}
	return order, nil
}

func (s *memStore) Take(ctx context.Context, reference string) (*correlation.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[reference]
	if !ok {
		return nil, correlation.ErrNotFound
	}
	delete(s.orders, reference)
	return order, nil
}

func (s *memStore) Sweep(ctx context.Context) (int64, error) { return 0, nil }

type fakeNetwork struct {
	srv         *httptest.Server
	tokenIssued int
	messages    map[string]transactionResponse
}

func newFakeNetwork(t *testing.T) *fakeNetwork {
	t.Helper()
	n := &fakeNetwork{messages: map[string]transactionResponse{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n.tokenIssued++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(createPaymentResponse{
			CheckoutURL: "https://pay.example.com/kp/1",
		})
	})
	mux.HandleFunc("/v1/transactions/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		id := r.URL.Path[len("/v1/transactions/"):]
		tx, ok := n.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(tx)
	})

	n.srv = httptest.NewServer(mux)
	t.Cleanup(n.srv.Close)
	return n
}

func newTestFactory(n *fakeNetwork, orders correlation.Store, clk clock.Clock) *Factory {
	return NewFactory(config.KuickpayConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     n.srv.URL + "/oauth/token",
		BaseURL:      n.srv.URL + "/v1",
		ReturnURL:    "https://app.example.com/return/kuickpay",
	}, 5*time.Second, time.Hour, orders, clk, zap.NewNop())
}

func newAdapter(t *testing.T, n *fakeNetwork, orders correlation.Store, clk clock.Clock) domain.Adapter {
	t.Helper()
	adapter, err := newTestFactory(n, orders, clk).NewAdapter()
	assert.NoError(t, err)
	return adapter
}

func TestCreatePaymentParksPendingOrderFirst(t *testing.T) {
	network := newFakeNetwork(t)
	orders := newMemStore()
	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	adapter := newAdapter(t, network, orders, clk)

	intent, err := adapter.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		TenantID:  1,
		PlanID:    2,
		Frequency: billing.FrequencyMonthly,
		Amount:    250000,
		Currency:  "PKR",
		OrderRef:  "KP-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/kp/1", intent.RedirectURL)

	pending, err := orders.Peek(context.Background(), "KP-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), pending.TenantID)
	assert.Equal(t, clk.Now().Add(time.Hour), pending.ExpiresAt)
}

func TestVerifyCallbackResolvesPendingOrder(t *testing.T) {
	network := newFakeNetwork(t)
	network.messages["txn-1"] = transactionResponse{
		TransactionID: "txn-1",
		OrderRef:      "KP-1",
		Message:       "Successful",
		Amount:        250000,
	}
	orders := newMemStore()
	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	factory := newTestFactory(network, orders, clk)

	_ = orders.Put(context.Background(), &correlation.PendingOrder{
		Reference: "KP-1",
		TenantID:  1,
		PlanID:    2,
		Frequency: billing.FrequencyMonthly,
		Amount:    250000,
		Currency:  "PKR",
		Gateway:   "kuickpay",
	})

	query := url.Values{}
	query.Set("transaction_id", "txn-1")

	// Callers resolve the adapter from the factory per request; that must
	// not reset the token cache.
	adapter, err := factory.NewAdapter()
	assert.NoError(t, err)

	settlement, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: query})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), settlement.TenantID)
	assert.Equal(t, int64(250000), settlement.Amount)
	assert.Equal(t, "KP-1", settlement.ExternalRef)
	assert.Equal(t, billing.OutcomeSuccess, settlement.Outcome)

	// The order was consumed; a replayed callback no longer correlates.
	replayAdapter, err := factory.NewAdapter()
	assert.NoError(t, err)
	_, err = replayAdapter.VerifyCallback(context.Background(), domain.Callback{Query: query})
	assert.ErrorIs(t, err, domain.ErrUnknownCorrelation)

	// Both lookups, through separately resolved adapters, rode one token.
	assert.Equal(t, 1, network.tokenIssued)
}

func TestVerifyCallbackDeclined(t *testing.T) {
	network := newFakeNetwork(t)
	network.messages["txn-2"] = transactionResponse{
		TransactionID: "txn-2",
		OrderRef:      "KP-2",
		Message:       "Insufficient funds",
		Amount:        250000,
	}
	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	adapter := newAdapter(t, network, newMemStore(), clk)

	query := url.Values{}
	query.Set("transaction_id", "txn-2")

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: query})
	assert.ErrorIs(t, err, domain.ErrDeclined)
}

func TestVerifyCallbackUnknownCorrelation(t *testing.T) {
	network := newFakeNetwork(t)
	network.messages["txn-3"] = transactionResponse{
		TransactionID: "txn-3",
		OrderRef:      "KP-GONE",
		Message:       "successful",
		Amount:        250000,
	}
	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	adapter := newAdapter(t, network, newMemStore(), clk)

	query := url.Values{}
	query.Set("transaction_id", "txn-3")

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: query})
	assert.ErrorIs(t, err, domain.ErrUnknownCorrelation)
}

func TestVerifyCallbackMissingTransactionID(t *testing.T) {
	network := newFakeNetwork(t)
	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	adapter := newAdapter(t, network, newMemStore(), clk)

	_, err := adapter.VerifyCallback(context.Background(), domain.Callback{Query: url.Values{}})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
