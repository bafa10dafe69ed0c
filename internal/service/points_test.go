package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayeon/shop-reservation/internal/model"
)

func newTestPoints(now time.Time) (*PointService, *fakePoints) {
	store := newFakePoints()
	svc := NewPointService(store, testLogger())
	svc.now = func() time.Time { return now }
	return svc, store
}

func TestPointBalance_FoldMatchesHistory(t *testing.T) {
	// GIVEN: a ledger with earns, a bonus and a use
	// THEN: the balance equals the fold of the history, never a counter

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestPoints(now)
	ctx := context.Background()

	_, err := svc.Earn(ctx, 1, 1000, nil, "first earn")
	require.NoError(t, err)
	_, err = svc.Bonus(ctx, 1, 500, "welcome bonus")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, 1, 300, nil)
	require.NoError(t, err)

	bal, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), bal)
}

func TestPointBalance_NeverNegative(t *testing.T) {
	// GIVEN: credits that have all expired but a use that has not
	// THEN: the derived balance clamps at zero

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestPoints(now)
	ctx := context.Background()

	expired := now.AddDate(0, -1, 0)
	require.NoError(t, store.Append(ctx, &model.PointEvent{
		UserID: 1, Amount: 1000, Type: model.PointEarn, ExpiresAt: &expired,
	}))
	require.NoError(t, store.Append(ctx, &model.PointEvent{
		UserID: 1, Amount: -400, Type: model.PointUse,
	}))

	bal, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestPointConsume_InsufficientBalance(t *testing.T) {
	// GIVEN: a user holding 100 points
	// WHEN: consuming 101
	// THEN: ErrInsufficientBalance and the ledger is untouched

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestPoints(now)
	ctx := context.Background()

	_, err := svc.Earn(ctx, 1, 100, nil, "earn")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, 1, 101, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Len(t, store.events, 1)
}

func TestPointRefund_NoUseEvent_NoopSuccess(t *testing.T) {
	// GIVEN: a reservation that never spent points
	// WHEN: refunding
	// THEN: success without appending anything; refunds never block

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestPoints(now)
	ctx := context.Background()

	require.NoError(t, svc.Refund(ctx, 1, 500, 42))
	assert.Empty(t, store.events)
}

func TestPointRefund_Idempotent(t *testing.T) {
	// GIVEN: a spent-and-refunded reservation
	// WHEN: refunding again
	// THEN: no double credit

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestPoints(now)
	ctx := context.Background()

	_, err := svc.Earn(ctx, 1, 1000, nil, "earn")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, 1, 400, ptr(uint64(7)))
	require.NoError(t, err)

	require.NoError(t, svc.Refund(ctx, 1, 400, 7))
	require.NoError(t, svc.Refund(ctx, 1, 400, 7))

	bal, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)
}

func TestPointRefund_AmountMismatch_UsesOriginal(t *testing.T) {
	// GIVEN: 400 points spent on a reservation
	// WHEN: a refund for 999 is requested
	// THEN: the originally-used 400 comes back

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestPoints(now)
	ctx := context.Background()

	_, err := svc.Earn(ctx, 1, 1000, nil, "earn")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, 1, 400, ptr(uint64(7)))
	require.NoError(t, err)

	require.NoError(t, svc.Refund(ctx, 1, 999, 7))

	bal, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)
}

func TestPointRefund_PerSpend_LaterSpendStillRefundable(t *testing.T) {
	// GIVEN: a spend on a reservation that was already refunded, then
	// a second spend on the same reservation
	// WHEN: refunding again
	// THEN: the second spend comes back too; each use event is
	// reversed exactly once

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestPoints(now)
	ctx := context.Background()

	_, err := svc.Earn(ctx, 1, 1000, nil, "earn")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, 1, 400, ptr(uint64(7)))
	require.NoError(t, err)
	require.NoError(t, svc.Refund(ctx, 1, 400, 7))

	_, err = svc.Consume(ctx, 1, 300, ptr(uint64(7)))
	require.NoError(t, err)
	require.NoError(t, svc.Refund(ctx, 1, 300, 7))

	bal, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)

	refunds := 0
	for _, e := range store.events {
		if e.Type == model.PointRefund {
			refunds++
			require.NotNil(t, e.SourceEventID)
		}
	}
	assert.Equal(t, 2, refunds)
}

func TestPointExpire_OffsetsOnceAndStopsCounting(t *testing.T) {
	// GIVEN: an earn past its expiry
	// WHEN: the expiry sweep runs twice
	// THEN: exactly one expire event exists and the balance excludes
	// the lapsed credit

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestPoints(now)
	ctx := context.Background()

	lapsed := now.AddDate(0, -1, 0)
	require.NoError(t, store.Append(ctx, &model.PointEvent{
		UserID: 1, Amount: 1000, Type: model.PointEarn, ExpiresAt: &lapsed,
	}))
	_, err := svc.Earn(ctx, 1, 200, nil, "fresh earn")
	require.NoError(t, err)

	n, err := svc.Expire(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Expire(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second sweep must not double-expire")

	expires := 0
	for _, e := range store.events {
		if e.Type == model.PointExpire {
			expires++
			require.NotNil(t, e.SourceEventID)
			assert.Equal(t, uint64(1), *e.SourceEventID)
		}
	}
	assert.Equal(t, 1, expires)

	bal, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)
}

func TestPointHistory_Paged(t *testing.T) {
	// GIVEN: 25 ledger entries
	// WHEN: reading page 1 with limit 20
	// THEN: 20 entries and has_more set

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestPoints(now)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := svc.Earn(ctx, 1, 10, nil, "earn")
		require.NoError(t, err)
	}
	page, hasMore, err := svc.History(ctx, 1, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page, 20)
	assert.True(t, hasMore)

	page, hasMore, err = svc.History(ctx, 1, 2, 20)
	require.NoError(t, err)
	assert.Len(t, page, 5)
	assert.False(t, hasMore)
}
