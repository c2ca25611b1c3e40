package domain

import (
	"fmt"
	"strconv"
	"strings"

	billing "github.com/campushq/paycore/internal/billing/domain"
)

// CheckoutContext identifies what a payment was for. Networks that only
// echo opaque strings carry it encoded; networks with structured metadata
// carry the fields individually.
type CheckoutContext struct {
	TenantID  int64
	PlanID    int64
	Frequency billing.Frequency
}

// Encode renders the context as "t:<tenant>;p:<plan>;f:<freq>".
func (c CheckoutContext) Encode() string {
	return fmt.Sprintf("t:%d;p:%d;f:%s", c.TenantID, c.PlanID, c.Frequency)
}

// DecodeCheckoutContext parses the encoded form. Any missing or malformed
// field makes the whole value invalid.
func DecodeCheckoutContext(raw string) (CheckoutContext, error) {
	var out CheckoutContext
	for _, part := range strings.Split(strings.TrimSpace(raw), ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return CheckoutContext{}, ErrInvalidPayload
		}
		switch kv[0] {
		case "t":
			id, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil || id == 0 {
				return CheckoutContext{}, ErrInvalidPayload
			}
			out.TenantID = id
		case "p":
			id, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil || id == 0 {
				return CheckoutContext{}, ErrInvalidPayload
			}
			out.PlanID = id
		case "f":
			freq := billing.Frequency(kv[1])
			if !freq.Valid() {
				return CheckoutContext{}, ErrInvalidPayload
			}
			out.Frequency = freq
		default:
			return CheckoutContext{}, ErrInvalidPayload
		}
	}
	if out.TenantID == 0 || out.PlanID == 0 || out.Frequency == "" {
		return CheckoutContext{}, ErrInvalidPayload
	}
	return out, nil
}
