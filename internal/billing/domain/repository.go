package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertPaymentRecord appends a ledger row. It reports false without
	// error when a row for the same (gateway, external_ref) already exists.
	InsertPaymentRecord(ctx context.Context, db *gorm.DB, record *PaymentRecord) (bool, error)
	FindPaymentRecord(ctx context.Context, db *gorm.DB, gateway, externalRef string) (*PaymentRecord, error)
	// ListPaymentRecords pages the ledger newest first with a
	// (created_at, id) keyset. Zero beforeAt means start from the top.
	ListPaymentRecords(ctx context.Context, db *gorm.DB, tenantID int64, beforeAt time.Time, beforeID int64, limit int) ([]PaymentRecord, error)

	// FindSubscriptionForUpdate locks the tenant's subscription row for the
	// duration of the surrounding transaction.
	FindSubscriptionForUpdate(ctx context.Context, db *gorm.DB, tenantID int64) (*Subscription, error)
	FindSubscription(ctx context.Context, db *gorm.DB, tenantID int64) (*Subscription, error)
	CreateSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	UpdateSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
}
