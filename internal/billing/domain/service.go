package domain

import (
	"errors"
	"time"
)

// ApplyResult reports what a settlement did to the ledger.
type ApplyResult struct {
	Record       *PaymentRecord
	Subscription *Subscription
	// Replayed is true when the settlement had already been recorded and
	// the call changed nothing.
	Replayed bool
}

var (
	ErrPlanNotFound   = errors.New("plan_not_found")
	ErrPlanInactive   = errors.New("plan_inactive")
	ErrTenantNotFound = errors.New("tenant_not_found")
)

// GracePeriod is how long an expired subscription keeps access before
// suspension.
const GracePeriod = 7 * 24 * time.Hour
