package domain

import (
	"net/http"
	"net/url"
	"time"

	billing "github.com/campushq/paycore/internal/billing/domain"
)

// CreatePaymentRequest carries everything an adapter needs to start a
// checkout. Amount is authoritative: computed from the plan price, never
// taken from the caller.
type CreatePaymentRequest struct {
	TenantID  int64
	PlanID    int64
	Frequency billing.Frequency
	Amount    int64
	Currency  string
	OrderRef  string
}

// PaymentIntent is the adapter's answer to CreatePayment: where to send
// the payer, and the reference the network will echo back.
type PaymentIntent struct {
	Gateway     string
	OrderRef    string
	RedirectURL string
}

// Callback is a raw inbound notification, webhook body or signed return
// query, exactly as the network delivered it.
type Callback struct {
	Body   []byte
	Query  url.Values
	Header http.Header
}

// Settlement is the network-agnostic result of a verified callback. It is
// the only thing the ledger ever sees from a gateway.
type Settlement struct {
	TenantID           int64
	PlanID             int64
	Frequency          billing.Frequency
	Amount             int64
	Currency           string
	ExternalRef        string
	Gateway            string
	Outcome            billing.Outcome
	ExternalCustomerID string
	OccurredAt         time.Time
}
