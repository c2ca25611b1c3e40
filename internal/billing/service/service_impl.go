package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/clock"
	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
	"github.com/campushq/paycore/pkg/db"
	"github.com/campushq/paycore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

// Service is the subscription ledger. Apply is the single write path for
// settlements; everything it does happens inside one transaction.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Apply records a settlement exactly once. A replayed settlement returns
// the original outcome without touching the subscription again.
func (s *Service) Apply(ctx context.Context, settlement *gwdomain.Settlement) (*domain.ApplyResult, error) {
	if settlement == nil {
		return nil, gwdomain.ErrInvalidPayload
	}
	if settlement.TenantID == 0 || settlement.PlanID == 0 ||
		strings.TrimSpace(settlement.ExternalRef) == "" ||
		strings.TrimSpace(settlement.Gateway) == "" {
		return nil, gwdomain.ErrInvalidPayload
	}
	if !settlement.Frequency.Valid() {
		return nil, gwdomain.ErrInvalidPayload
	}

	var result *domain.ApplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock serializes settlements for one tenant; different tenants
		// proceed in parallel.
		sub, err := s.repo.FindSubscriptionForUpdate(ctx, tx, settlement.TenantID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		occurredAt := settlement.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = now
		}

		record := &domain.PaymentRecord{
			ID:          s.genID.Generate().Int64(),
			TenantID:    settlement.TenantID,
			Gateway:     settlement.Gateway,
			ExternalRef: settlement.ExternalRef,
			Amount:      settlement.Amount,
			Currency:    settlement.Currency,
			Outcome:     settlement.Outcome,
			Description: describe(settlement),
			CreatedAt:   now,
		}
		if sub != nil {
			record.SubscriptionID = sub.ID
		}

		inserted, err := s.repo.InsertPaymentRecord(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindPaymentRecord(ctx, tx, settlement.Gateway, settlement.ExternalRef)
			if err != nil {
				return err
			}
			result = &domain.ApplyResult{Record: existing, Subscription: sub, Replayed: true}
			return nil
		}

		if settlement.Outcome != domain.OutcomeSuccess {
			s.log.Warn("non-success settlement recorded",
				zap.String("gateway", settlement.Gateway),
				zap.String("external_ref", settlement.ExternalRef),
				zap.String("outcome", string(settlement.Outcome)),
				zap.Int64("tenant_id", settlement.TenantID),
			)
			result = &domain.ApplyResult{Record: record, Subscription: sub}
			return nil
		}

		sub, err = s.activate(ctx, tx, sub, settlement, occurredAt, now)
		if err != nil {
			return err
		}
		record.SubscriptionID = sub.ID

		result = &domain.ApplyResult{Record: record, Subscription: sub}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		s.log.Info("settlement applied",
			zap.String("gateway", settlement.Gateway),
			zap.String("external_ref", settlement.ExternalRef),
			zap.String("outcome", string(settlement.Outcome)),
			zap.Int64("tenant_id", settlement.TenantID),
			zap.Int64("amount", settlement.Amount),
		)
	}
	return result, nil
}

// activate extends an existing subscription or creates the tenant's first
// one. Renewals paid early extend from the current due date; everything
// else restarts from the settlement time.
func (s *Service) activate(ctx context.Context, tx *gorm.DB, sub *domain.Subscription, settlement *gwdomain.Settlement, occurredAt, now time.Time) (*domain.Subscription, error) {
	base := occurredAt
	if sub != nil && sub.Status == domain.StatusActive && sub.NextPaymentDueAt.After(occurredAt) {
		base = sub.NextPaymentDueAt
	}
	nextDue := domain.AddBillingPeriod(base, settlement.Frequency)

	if sub == nil {
		created := &domain.Subscription{
			ID:               s.genID.Generate().Int64(),
			TenantID:         settlement.TenantID,
			PlanID:           settlement.PlanID,
			Status:           domain.StatusActive,
			Frequency:        settlement.Frequency,
			StartAt:          occurredAt,
			NextPaymentDueAt: nextDue,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if settlement.ExternalCustomerID != "" {
			customer := settlement.ExternalCustomerID
			created.ExternalCustomerID = &customer
		}
		// savepoint keeps the outer transaction usable when the insert
		// loses the race for the tenant's unique row
		err := tx.Transaction(func(tx *gorm.DB) error {
			return s.repo.CreateSubscription(ctx, tx, created)
		})
		if err == nil {
			return created, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// a concurrent settlement created the tenant's first subscription;
		// lock the winner's row and extend it like any renewal
		sub, err = s.repo.FindSubscriptionForUpdate(ctx, tx, settlement.TenantID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, gorm.ErrDuplicatedKey
		}
		if sub.Status == domain.StatusActive && sub.NextPaymentDueAt.After(occurredAt) {
			nextDue = domain.AddBillingPeriod(sub.NextPaymentDueAt, settlement.Frequency)
		}
	}

	sub.PlanID = settlement.PlanID
	sub.Status = domain.StatusActive
	sub.Frequency = settlement.Frequency
	sub.EndAt = nil
	sub.GraceUntil = nil
	sub.NextPaymentDueAt = nextDue
	sub.UpdatedAt = now
	if settlement.ExternalCustomerID != "" {
		customer := settlement.ExternalCustomerID
		sub.ExternalCustomerID = &customer
	}
	if err := s.repo.UpdateSubscription(ctx, tx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Status(ctx context.Context, tenantID int64) (*domain.Subscription, error) {
	return s.repo.FindSubscription(ctx, s.db, tenantID)
}

// Payments returns one page of the tenant's ledger, newest first. The
// caller resumes with the returned cursor token.
func (s *Service) Payments(ctx context.Context, tenantID int64, beforeAt time.Time, beforeID int64, limit int) ([]domain.PaymentRecord, *pagination.PageInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	// one extra row tells us whether another page exists
	records, err := s.repo.ListPaymentRecords(ctx, s.db, tenantID, beforeAt, beforeID, limit+1)
	if err != nil {
		return nil, nil, err
	}

	info := &pagination.PageInfo{}
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        strconv.FormatInt(last.ID, 10),
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, nil, err
		}
		info.HasMore = true
		info.NextPageToken = token
	}
	return records, info, nil
}

func describe(settlement *gwdomain.Settlement) string {
	checkoutCtx := gwdomain.CheckoutContext{
		TenantID:  settlement.TenantID,
		PlanID:    settlement.PlanID,
		Frequency: settlement.Frequency,
	}
	return fmt.Sprintf("%s %s %s", settlement.Gateway, settlement.ExternalRef, checkoutCtx.Encode())
}
