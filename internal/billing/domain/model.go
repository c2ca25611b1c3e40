package domain

import "time"

type SubscriptionStatus string

const (
	StatusNone        SubscriptionStatus = "NONE"
	StatusActive      SubscriptionStatus = "ACTIVE"
	StatusGracePeriod SubscriptionStatus = "GRACE_PERIOD"
	StatusExpired     SubscriptionStatus = "EXPIRED"
	StatusCancelled   SubscriptionStatus = "CANCELLED"
	StatusSuspended   SubscriptionStatus = "SUSPENDED"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeFailed   Outcome = "FAILED"
	OutcomeRefunded Outcome = "REFUNDED"
)

// Frequency is the billing cadence a tenant pays on.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyAnnual  Frequency = "annual"
)

func (f Frequency) Valid() bool {
	return f == FrequencyMonthly || f == FrequencyAnnual
}

// Subscription tracks a tenant's access window. At most one row per tenant;
// mutated only inside Service.Apply.
type Subscription struct {
	ID                 int64              `json:"id" gorm:"primaryKey"`
	TenantID           int64              `json:"tenant_id" gorm:"not null;uniqueIndex:ux_subscriptions_tenant"`
	PlanID             int64              `json:"plan_id" gorm:"not null"`
	Status             SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	Frequency          Frequency          `json:"frequency" gorm:"type:text;not null"`
	StartAt            time.Time          `json:"start_at" gorm:"not null"`
	EndAt              *time.Time         `json:"end_at,omitempty"`
	GraceUntil         *time.Time         `json:"grace_until,omitempty"`
	NextPaymentDueAt   time.Time          `json:"next_payment_due_at" gorm:"not null"`
	ExternalCustomerID *string            `json:"external_customer_id,omitempty" gorm:"type:text"`
	CreatedAt          time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "subscriptions" }

// PaymentRecord is the append-only settlement ledger. Rows are never
// updated or deleted; replays are dropped by the (gateway, external_ref)
// unique index.
type PaymentRecord struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	SubscriptionID int64     `json:"subscription_id" gorm:"not null;index"`
	TenantID       int64     `json:"tenant_id" gorm:"not null;index"`
	Gateway        string    `json:"gateway" gorm:"type:text;not null;uniqueIndex:ux_payment_records_gateway_ref,priority:1"`
	ExternalRef    string    `json:"external_ref" gorm:"type:text;not null;uniqueIndex:ux_payment_records_gateway_ref,priority:2"`
	Amount         int64     `json:"amount" gorm:"not null"`
	Currency       string    `json:"currency" gorm:"type:text;not null"`
	Outcome        Outcome   `json:"outcome" gorm:"type:text;not null"`
	Description    string    `json:"description" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentRecord) TableName() string { return "payment_records" }
