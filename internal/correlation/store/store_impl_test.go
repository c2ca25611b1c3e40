package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billing "github.com/campushq/paycore/internal/billing/domain"
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/correlation/domain"
)

func newTestStore(t *testing.T) (domain.Store, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.PendingOrder{}))

	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	return New(db, clk, zap.NewNop()), clk
}

func pendingOrder(clk *clock.FakeClock, reference string, ttl time.Duration) *domain.PendingOrder {
	return &domain.PendingOrder{
		Reference: reference,
		TenantID:  1,
		PlanID:    2,
		Frequency: billing.FrequencyMonthly,
		Amount:    250000,
		Currency:  "PKR",
		Gateway:   "kuickpay",
		CreatedAt: clk.Now(),
		ExpiresAt: clk.Now().Add(ttl),
	}
}

func TestTakeConsumesOnce(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.Put(ctx, pendingOrder(clk, "KP-1", time.Hour)))

	order, err := store.Take(ctx, "KP-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), order.TenantID)
	assert.Equal(t, billing.FrequencyMonthly, order.Frequency)

	_, err = store.Take(ctx, "KP-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPeekDoesNotConsume(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.Put(ctx, pendingOrder(clk, "KP-2", time.Hour)))

	_, err := store.Peek(ctx, "KP-2")
	assert.NoError(t, err)
	_, err = store.Peek(ctx, "KP-2")
	assert.NoError(t, err)

	_, err = store.Take(ctx, "KP-2")
	assert.NoError(t, err)
}

func TestExpiredOrderIsInvisible(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.Put(ctx, pendingOrder(clk, "KP-3", time.Hour)))

	clk.Advance(time.Hour)

	_, err := store.Peek(ctx, "KP-3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Take(ctx, "KP-3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.Put(ctx, pendingOrder(clk, "KP-OLD", 10*time.Minute)))
	assert.NoError(t, store.Put(ctx, pendingOrder(clk, "KP-NEW", 2*time.Hour)))

	clk.Advance(time.Hour)

	swept, err := store.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	_, err = store.Peek(ctx, "KP-NEW")
	assert.NoError(t, err)
}

func TestTakeUnknownReference(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Take(context.Background(), "never-created")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
