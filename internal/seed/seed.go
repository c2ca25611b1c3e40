package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/campushq/paycore/internal/plan/domain"
	tenantdomain "github.com/campushq/paycore/internal/tenant/domain"
	"gorm.io/gorm"
)

const (
	demoTenantName = "Demo Academy"
	demoCurrency   = "PKR"
)

// EnsureDemoTenantAndPlans seeds one tenant and a pair of plans so a
// local install can run a checkout immediately. Safe to call repeatedly.
func EnsureDemoTenantAndPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDemoTenant(ctx, tx, node); err != nil {
			return err
		}
		return ensureDemoPlans(ctx, tx, node)
	})
}

func ensureDemoTenant(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var existing tenantdomain.Tenant
	err := tx.WithContext(ctx).Where("name = ?", demoTenantName).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	return tx.WithContext(ctx).Create(&tenantdomain.Tenant{
		ID:        node.Generate().Int64(),
		Name:      demoTenantName,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func ensureDemoPlans(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	plans := []plandomain.Plan{
		{
			Code:         "basic",
			Name:         "Basic",
			PriceMonthly: 250000,
			PriceAnnual:  2500000,
		},
		{
			Code:         "premium",
			Name:         "Premium",
			PriceMonthly: 500000,
			PriceAnnual:  5000000,
		},
	}

	now := time.Now().UTC()
	for _, plan := range plans {
		var existing plandomain.Plan
		err := tx.WithContext(ctx).Where("code = ?", plan.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		plan.ID = node.Generate().Int64()
		plan.Currency = demoCurrency
		plan.Active = true
		plan.CreatedAt = now
		plan.UpdatedAt = now
		if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
			return err
		}
	}
	return nil
}
