package migration

import (
	billingdomain "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/config"
	correlationdomain "github.com/campushq/paycore/internal/correlation/domain"
	plandomain "github.com/campushq/paycore/internal/plan/domain"
	"github.com/campushq/paycore/internal/seed"
	tenantdomain "github.com/campushq/paycore/internal/tenant/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite installs derive the schema from the models
			if err := conn.AutoMigrate(
				&tenantdomain.Tenant{},
				&plandomain.Plan{},
				&billingdomain.Subscription{},
				&billingdomain.PaymentRecord{},
				&correlationdomain.PendingOrder{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoTenantAndPlans(conn)
		}
		return nil
	}),
)
