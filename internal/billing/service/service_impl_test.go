package service

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/billing/repository"
	"github.com/campushq/paycore/internal/clock"
	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
	"github.com/campushq/paycore/pkg/db/pagination"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.Subscription{}, &domain.PaymentRecord{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk, db
}

func settlement(ref string) *gwdomain.Settlement {
	return &gwdomain.Settlement{
		TenantID:    1,
		PlanID:      2,
		Frequency:   domain.FrequencyMonthly,
		Amount:      250000,
		Currency:    "PKR",
		ExternalRef: ref,
		Gateway:     "jazzcash",
		Outcome:     domain.OutcomeSuccess,
	}
}

func TestApplyActivatesFirstSubscription(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, domain.OutcomeSuccess, result.Record.Outcome)

	sub := result.Subscription
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, int64(2), sub.PlanID)
	assert.Equal(t, clk.Now(), sub.StartAt)
	assert.Equal(t, domain.AddBillingPeriod(clk.Now(), domain.FrequencyMonthly), sub.NextPaymentDueAt)
	assert.Equal(t, sub.ID, result.Record.SubscriptionID)
}

func TestApplyIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	dueAfterFirst := first.Subscription.NextPaymentDueAt

	replay, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.Record.ID, replay.Record.ID)
	assert.Equal(t, dueAfterFirst, replay.Subscription.NextPaymentDueAt)

	records, _, err := svc.Payments(ctx, 1, time.Time{}, 0, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

// staleReadRepo serves a configurable number of empty subscription reads
// before delegating, the view a transaction gets while a concurrent first
// settlement holds the uncommitted row.
type staleReadRepo struct {
	domain.Repository
	staleReads int
}

func (r *staleReadRepo) FindSubscriptionForUpdate(ctx context.Context, tx *gorm.DB, tenantID int64) (*domain.Subscription, error) {
	if r.staleReads > 0 {
		r.staleReads--
		return nil, nil
	}
	return r.Repository.FindSubscriptionForUpdate(ctx, tx, tenantID)
}

func TestApplyConcurrentFirstSettlementsShareOneSubscription(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.Subscription{}, &domain.PaymentRecord{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	repo := &staleReadRepo{Repository: repository.Provide()}
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repo})
	ctx := context.Background()

	first, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	firstDue := first.Subscription.NextPaymentDueAt

	// The second settlement reads before the first committed, so it sees no
	// subscription and races the unique tenant index on insert. It must
	// land on the winner's row instead of surfacing a driver error.
	repo.staleReads = 1
	second, err := svc.Apply(ctx, settlement("INV-2"))
	assert.NoError(t, err)
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
	assert.Equal(t, domain.AddBillingPeriod(firstDue, domain.FrequencyMonthly), second.Subscription.NextPaymentDueAt)

	var count int64
	db.Raw(`SELECT COUNT(1) FROM subscriptions WHERE tenant_id = ?`, 1).Scan(&count)
	assert.Equal(t, int64(1), count)
}

func TestApplyEarlyRenewalExtendsFromDueDate(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	firstDue := first.Subscription.NextPaymentDueAt

	// Renew a week early: the new period stacks on the old due date
	// instead of shortening the one already paid for.
	clk.Advance(23 * 24 * time.Hour)
	renewed, err := svc.Apply(ctx, settlement("INV-2"))
	assert.NoError(t, err)
	assert.Equal(t, domain.AddBillingPeriod(firstDue, domain.FrequencyMonthly), renewed.Subscription.NextPaymentDueAt)
}

func TestApplyLateRenewalRestartsFromSettlement(t *testing.T) {
	svc, clk, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)

	// Simulate an expired subscription.
	db.Exec(`UPDATE subscriptions SET status = ? WHERE id = ?`, domain.StatusExpired, first.Subscription.ID)

	clk.Advance(90 * 24 * time.Hour)
	renewed, err := svc.Apply(ctx, settlement("INV-2"))
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusActive, renewed.Subscription.Status)
	assert.Equal(t, domain.AddBillingPeriod(clk.Now(), domain.FrequencyMonthly), renewed.Subscription.NextPaymentDueAt)
}

func TestApplyFailedSettlementNeverActivates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	failed := settlement("INV-1")
	failed.Outcome = domain.OutcomeFailed

	result, err := svc.Apply(ctx, failed)
	assert.NoError(t, err)
	assert.Nil(t, result.Subscription)
	assert.Equal(t, domain.OutcomeFailed, result.Record.Outcome)

	sub, err := svc.Status(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, sub)
}

func TestApplyRefundIsRecordedWithoutTouchingSubscription(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	active, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	dueBefore := active.Subscription.NextPaymentDueAt

	refund := settlement("REF-1")
	refund.Outcome = domain.OutcomeRefunded
	result, err := svc.Apply(ctx, refund)
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeRefunded, result.Record.Outcome)

	sub, err := svc.Status(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, dueBefore, sub.NextPaymentDueAt)
}

func TestApplyStoresExternalCustomerID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	s := settlement("INV-1")
	s.ExternalCustomerID = "cus_42"

	result, err := svc.Apply(ctx, s)
	assert.NoError(t, err)
	if assert.NotNil(t, result.Subscription.ExternalCustomerID) {
		assert.Equal(t, "cus_42", *result.Subscription.ExternalCustomerID)
	}
}

func TestApplyRejectsIncompleteSettlements(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(*gwdomain.Settlement){
		"nil tenant":  func(s *gwdomain.Settlement) { s.TenantID = 0 },
		"nil plan":    func(s *gwdomain.Settlement) { s.PlanID = 0 },
		"no ref":      func(s *gwdomain.Settlement) { s.ExternalRef = " " },
		"no gateway":  func(s *gwdomain.Settlement) { s.Gateway = "" },
		"bad cadence": func(s *gwdomain.Settlement) { s.Frequency = "weekly" },
	} {
		s := settlement("INV-X")
		mutate(s)
		_, err := svc.Apply(ctx, s)
		assert.ErrorIs(t, err, gwdomain.ErrInvalidPayload, name)
	}

	_, err := svc.Apply(ctx, nil)
	assert.ErrorIs(t, err, gwdomain.ErrInvalidPayload)
}

func TestPaymentsReturnsNewestFirst(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, settlement("INV-1"))
	assert.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = svc.Apply(ctx, settlement("INV-2"))
	assert.NoError(t, err)

	records, _, err := svc.Payments(ctx, 1, time.Time{}, 0, 10)
	assert.NoError(t, err)
	if assert.Len(t, records, 2) {
		assert.Equal(t, "INV-2", records[0].ExternalRef)
		assert.Equal(t, "INV-1", records[1].ExternalRef)
	}
}

func TestPaymentsPagesWithCursor(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.Apply(ctx, settlement(fmt.Sprintf("INV-%d", i)))
		assert.NoError(t, err)
		clk.Advance(time.Hour)
	}

	page1, info, err := svc.Payments(ctx, 1, time.Time{}, 0, 2)
	assert.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.True(t, info.HasMore)
	assert.NotEmpty(t, info.NextPageToken)

	cursor, err := pagination.DecodeCursor(info.NextPageToken)
	assert.NoError(t, err)
	beforeAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	assert.NoError(t, err)
	beforeID, err := strconv.ParseInt(cursor.ID, 10, 64)
	assert.NoError(t, err)

	page2, info, err := svc.Payments(ctx, 1, beforeAt, beforeID, 2)
	assert.NoError(t, err)
	if assert.Len(t, page2, 1) {
		assert.Equal(t, "INV-1", page2[0].ExternalRef)
	}
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
