package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/repository"
)

func newTestCoupons(now time.Time) (*CouponService, *fakeCoupons) {
	store := newFakeCoupons()
	svc := NewCouponService(store)
	svc.now = func() time.Time { return now }
	return svc, store
}

func activeCoupon(id uint64, now time.Time) *model.Coupon {
	return &model.Coupon{
		ID:            id,
		ShopID:        1,
		Name:          "10% off",
		DiscountType:  model.DiscountPercent,
		DiscountValue: 10,
		ValidUntil:    now.AddDate(0, 1, 0),
		IsActive:      true,
	}
}

func TestCouponDownload_OncePerUser(t *testing.T) {
	// GIVEN: a downloaded coupon
	// WHEN: the same user downloads again
	// THEN: ErrAlreadyDownloaded and the quota stays at one

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestCoupons(now)
	store.addCoupon(activeCoupon(1, now))
	ctx := context.Background()

	_, err := svc.Download(ctx, 1, 1)
	require.NoError(t, err)

	_, err = svc.Download(ctx, 1, 1)
	assert.ErrorIs(t, err, repository.ErrAlreadyDownloaded)
	assert.Equal(t, int64(1), store.coupons[1].UsedCount)
}

func TestCouponDownload_SoldOut(t *testing.T) {
	// GIVEN: a coupon with usage_limit=5 and used_count=5
	// WHEN: a new user downloads
	// THEN: ErrSoldOut

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestCoupons(now)
	c := activeCoupon(1, now)
	c.UsageLimit = ptr(int64(5))
	c.UsedCount = 5
	store.addCoupon(c)

	_, err := svc.Download(context.Background(), 9, 1)
	assert.ErrorIs(t, err, repository.ErrSoldOut)
}

func TestCouponRoundTrip_DownloadApplyRestore(t *testing.T) {
	// GIVEN: a downloaded grant
	// THEN: it is applicable, applying removes it from the applicable
	// set, applying it to another reservation fails, and restoring
	// makes it applicable again

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestCoupons(now)
	store.addCoupon(activeCoupon(1, now))
	ctx := context.Background()

	grant, err := svc.Download(ctx, 1, 1)
	require.NoError(t, err)

	list, err := svc.Applicable(ctx, 1, 1, 50000)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Apply(ctx, 1, grant.ID, 100))

	list, err = svc.Applicable(ctx, 1, 1, 50000)
	require.NoError(t, err)
	assert.Empty(t, list, "an applied grant must not be offered again")

	err = svc.Apply(ctx, 1, grant.ID, 200)
	assert.ErrorIs(t, err, repository.ErrCouponUsed)

	require.NoError(t, svc.Restore(ctx, grant.ID))

	list, err = svc.Applicable(ctx, 1, 1, 50000)
	require.NoError(t, err)
	assert.Len(t, list, 1, "a restored grant is applicable again")
}

func TestCouponApply_WrongOwner(t *testing.T) {
	// GIVEN: user 1's grant
	// WHEN: user 2 applies it
	// THEN: forbidden

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestCoupons(now)
	store.addCoupon(activeCoupon(1, now))
	ctx := context.Background()

	grant, err := svc.Download(ctx, 1, 1)
	require.NoError(t, err)

	err = svc.Apply(ctx, 2, grant.ID, 100)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name   string
		coupon model.Coupon
		price  int64
		want   int64
	}{
		{
			name:   "below min price gives nothing",
			coupon: model.Coupon{DiscountType: model.DiscountPercent, DiscountValue: 10, MinPrice: 30000},
			price:  20000,
			want:   0,
		},
		{
			name:   "percent rounds down",
			coupon: model.Coupon{DiscountType: model.DiscountPercent, DiscountValue: 7},
			price:  10001,
			want:   700,
		},
		{
			name:   "percent clamps to max discount",
			coupon: model.Coupon{DiscountType: model.DiscountPercent, DiscountValue: 50, MaxDiscount: ptr(int64(5000))},
			price:  50000,
			want:   5000,
		},
		{
			name:   "fixed amount",
			coupon: model.Coupon{DiscountType: model.DiscountFixed, DiscountValue: 3000},
			price:  50000,
			want:   3000,
		},
		{
			name:   "fixed never exceeds the price",
			coupon: model.Coupon{DiscountType: model.DiscountFixed, DiscountValue: 3000},
			price:  2000,
			want:   2000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateDiscount(&tt.coupon, tt.price))
		})
	}
}
