package store

import (
	"context"
	"time"

	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/correlation/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Store struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.Logger
}

func New(db *gorm.DB, clk clock.Clock, log *zap.Logger) domain.Store {
	return &Store{
		db:    db,
		clock: clk,
		log:   log.Named("correlation.store"),
	}
}

func (s *Store) Put(ctx context.Context, order *domain.PendingOrder) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO pending_orders (reference, tenant_id, plan_id, frequency, amount, currency, gateway, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.Reference,
		order.TenantID,
		order.PlanID,
		order.Frequency,
		order.Amount,
		order.Currency,
		order.Gateway,
		order.CreatedAt,
		order.ExpiresAt,
	).Error
}

func (s *Store) Peek(ctx context.Context, reference string) (*domain.PendingOrder, error) {
	return s.find(ctx, s.db, reference)
}

// Take consumes the entry. The select and delete run in one transaction so
// two concurrent callbacks for the same reference cannot both resolve it.
func (s *Store) Take(ctx context.Context, reference string) (*domain.PendingOrder, error) {
	var order *domain.PendingOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.find(ctx, tx, reference)
		if err != nil {
			return err
		}

		res := tx.WithContext(ctx).Exec(`DELETE FROM pending_orders WHERE reference = ?`, reference)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		order = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		`DELETE FROM pending_orders WHERE expires_at <= ?`,
		s.clock.Now(),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("swept expired pending orders", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *Store) find(ctx context.Context, db *gorm.DB, reference string) (*domain.PendingOrder, error) {
	var order domain.PendingOrder
	err := db.WithContext(ctx).Raw(
		`SELECT reference, tenant_id, plan_id, frequency, amount, currency, gateway, created_at, expires_at
		 FROM pending_orders WHERE reference = ?`,
		reference,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.Reference == "" {
		return nil, domain.ErrNotFound
	}
	if !order.ExpiresAt.After(s.clock.Now()) {
		return nil, domain.ErrNotFound
	}
	return &order, nil
}

// expiry granularity for the sweep loop
const SweepInterval = 5 * time.Minute
