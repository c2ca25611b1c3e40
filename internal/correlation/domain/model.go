package domain

import (
	"context"
	"errors"
	"time"

	billing "github.com/campushq/paycore/internal/billing/domain"
)

// PendingOrder remembers what an in-flight checkout was for, keyed by the
// reference we hand the network. Rows outlive process restarts; expiry
// bounds how long an abandoned checkout lingers.
type PendingOrder struct {
	Reference string            `json:"reference" gorm:"primaryKey;type:text"`
	TenantID  int64             `json:"tenant_id" gorm:"not null"`
	PlanID    int64             `json:"plan_id" gorm:"not null"`
	Frequency billing.Frequency `json:"frequency" gorm:"type:text;not null"`
	Amount    int64             `json:"amount" gorm:"not null"`
	Currency  string            `json:"currency" gorm:"type:text;not null"`
	Gateway   string            `json:"gateway" gorm:"type:text;not null"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null"`
	ExpiresAt time.Time         `json:"expires_at" gorm:"not null;index"`
}

func (PendingOrder) TableName() string { return "pending_orders" }

var ErrNotFound = errors.New("pending_order_not_found")

// Store persists pending orders. Take consumes: a reference resolves at
// most once.
type Store interface {
	Put(ctx context.Context, order *PendingOrder) error
	Peek(ctx context.Context, reference string) (*PendingOrder, error)
	Take(ctx context.Context, reference string) (*PendingOrder, error)
	Sweep(ctx context.Context) (int64, error)
}
