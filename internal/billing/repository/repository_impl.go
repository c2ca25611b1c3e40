package repository

import (
	"context"
	"time"

	"github.com/campushq/paycore/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPaymentRecord(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, subscription_id, tenant_id, gateway, external_ref,
			amount, currency, outcome, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, external_ref) DO NOTHING`,
		record.ID,
		record.SubscriptionID,
		record.TenantID,
		record.Gateway,
		record.ExternalRef,
		record.Amount,
		record.Currency,
		record.Outcome,
		record.Description,
		record.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindPaymentRecord(ctx context.Context, db *gorm.DB, gateway, externalRef string) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, tenant_id, gateway, external_ref,
			amount, currency, outcome, description, created_at
		 FROM payment_records WHERE gateway = ? AND external_ref = ?`,
		gateway,
		externalRef,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListPaymentRecords(ctx context.Context, db *gorm.DB, tenantID int64, beforeAt time.Time, beforeID int64, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, subscription_id, tenant_id, gateway, external_ref,
			amount, currency, outcome, description, created_at
		 FROM payment_records WHERE tenant_id = ?`
	args := []any{tenantID}

	if !beforeAt.IsZero() {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, beforeAt, beforeAt, beforeID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var records []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(query, args...).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) FindSubscriptionForUpdate(ctx context.Context, db *gorm.DB, tenantID int64) (*domain.Subscription, error) {
	query := `SELECT id, tenant_id, plan_id, status, frequency, start_at, end_at,
		grace_until, next_payment_due_at, external_customer_id, created_at, updated_at
	 FROM subscriptions WHERE tenant_id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var sub domain.Subscription
	err := db.WithContext(ctx).Raw(query, tenantID).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) FindSubscription(ctx context.Context, db *gorm.DB, tenantID int64) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, plan_id, status, frequency, start_at, end_at,
			grace_until, next_payment_due_at, external_customer_id, created_at, updated_at
		 FROM subscriptions WHERE tenant_id = ?`,
		tenantID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) CreateSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, tenant_id, plan_id, status, frequency, start_at, end_at,
			grace_until, next_payment_due_at, external_customer_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.TenantID,
		sub.PlanID,
		sub.Status,
		sub.Frequency,
		sub.StartAt,
		sub.EndAt,
		sub.GraceUntil,
		sub.NextPaymentDueAt,
		sub.ExternalCustomerID,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	if sub == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET plan_id = ?, status = ?, frequency = ?, start_at = ?, end_at = ?,
			grace_until = ?, next_payment_due_at = ?, external_customer_id = ?, updated_at = ?
		 WHERE id = ?`,
		sub.PlanID,
		sub.Status,
		sub.Frequency,
		sub.StartAt,
		sub.EndAt,
		sub.GraceUntil,
		sub.NextPaymentDueAt,
		sub.ExternalCustomerID,
		sub.UpdatedAt,
		sub.ID,
	).Error
}
