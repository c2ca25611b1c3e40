package domain

import "context"

// Adapter speaks one payment network. CreatePayment starts a checkout;
// VerifyCallback authenticates an inbound notification and, when it is
// meaningful, reduces it to a Settlement. Verification fails closed.
type Adapter interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentIntent, error)
	VerifyCallback(ctx context.Context, cb Callback) (*Settlement, error)
}

// Factory builds an adapter from static configuration. Gateway returns the
// lowercase name the registry routes on.
type Factory interface {
	Gateway() string
	NewAdapter() (Adapter, error)
}
