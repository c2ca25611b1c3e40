package domain

import (
	"time"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"gorm.io/datatypes"
)

// Plan is a priced subscription tier. The payment engine reads plans but
// never writes them.
type Plan struct {
	ID           int64             `json:"id" gorm:"primaryKey"`
	Code         string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_plans_code"`
	Name         string            `json:"name" gorm:"type:text;not null"`
	PriceMonthly int64             `json:"price_monthly" gorm:"not null"`
	PriceAnnual  int64             `json:"price_annual" gorm:"not null"`
	Currency     string            `json:"currency" gorm:"type:text;not null"`
	Active       bool              `json:"active" gorm:"not null;default:true"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "plans" }

// PriceFor returns the minor-unit amount for the given billing cadence.
func (p Plan) PriceFor(freq billing.Frequency) int64 {
	if freq == billing.FrequencyAnnual {
		return p.PriceAnnual
	}
	return p.PriceMonthly
}
