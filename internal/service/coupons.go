package service

import (
	"context"
	"errors"
	"time"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/repository"
)

// CouponService implements the coupon wallet: downloading a coupon
// into the wallet, listing which grants apply to a purchase, and
// applying or restoring a grant around a reservation.
type CouponService struct {
	coupons CouponStore
	now     func() time.Time
}

// NewCouponService constructs a CouponService.
func NewCouponService(coupons CouponStore) *CouponService {
	return &CouponService{coupons: coupons, now: time.Now}
}

// Download puts a coupon into the user's wallet.  The quota is
// consumed with a conditional increment before the grant row is
// inserted; when the insert loses to the once-per-user constraint the
// quota consumption is backed out.
func (s *CouponService) Download(ctx context.Context, userID, couponID uint64) (*model.CouponGrant, error) {
	coupon, err := s.coupons.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if !coupon.IsActive {
		return nil, NewValidationError("coupon is no longer offered")
	}
	if coupon.ValidUntil.Before(s.now().UTC()) {
		return nil, NewValidationError("coupon has expired")
	}
	exists, err := s.coupons.GrantExists(ctx, userID, couponID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrAlreadyDownloaded
	}
	if err := s.coupons.ReserveQuota(ctx, couponID); err != nil {
		return nil, err
	}
	grant, err := s.coupons.InsertGrant(ctx, userID, couponID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyDownloaded) {
			// A concurrent download by the same user won the
			// unique constraint; give the quota slot back.
			_ = s.coupons.ReleaseQuota(ctx, couponID)
		}
		return nil, err
	}
	return grant, nil
}

// Applicable lists the user's unused grants that can discount a
// purchase of the given price at the given shop.
func (s *CouponService) Applicable(ctx context.Context, userID, shopID uint64, price int64) ([]model.CouponGrant, error) {
	if price < 0 {
		return nil, NewValidationError("price must not be negative, got %d", price)
	}
	return s.coupons.ApplicableGrants(ctx, userID, shopID, price, s.now().UTC())
}

// Apply marks a grant as used by a reservation.  Correctness rests on
// the conditional used_at-is-null update, not on any prior read: a
// grant already applied elsewhere fails with ErrCouponUsed no matter
// what the caller saw before.
func (s *CouponService) Apply(ctx context.Context, userID, grantID, reservationID uint64) error {
	grant, err := s.coupons.GetGrant(ctx, grantID)
	if err != nil {
		return err
	}
	if grant.UserID != userID {
		return repository.ErrForbidden
	}
	coupon, err := s.coupons.GetCoupon(ctx, grant.CouponID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if !coupon.IsActive || coupon.ValidUntil.Before(now) {
		return NewValidationError("coupon is no longer valid")
	}
	return s.coupons.ApplyGrant(ctx, grantID, reservationID, now)
}

// GetCoupon returns a coupon definition.
func (s *CouponService) GetCoupon(ctx context.Context, couponID uint64) (*model.Coupon, error) {
	return s.coupons.GetCoupon(ctx, couponID)
}

// GetGrant returns a single wallet grant.
func (s *CouponService) GetGrant(ctx context.Context, grantID uint64) (*model.CouponGrant, error) {
	return s.coupons.GetGrant(ctx, grantID)
}

// UsedGrant returns the grant currently applied to a reservation, or
// repository.ErrNotFound when the reservation used no coupon.
func (s *CouponService) UsedGrant(ctx context.Context, reservationID uint64) (*model.CouponGrant, error) {
	return s.coupons.UsedGrantForReservation(ctx, reservationID)
}

// Restore makes a grant applicable again after its reservation was
// cancelled.  Restoring an unused grant is a no-op success.
func (s *CouponService) Restore(ctx context.Context, grantID uint64) error {
	return s.coupons.RestoreGrant(ctx, grantID)
}

// CalculateDiscount computes the discount a coupon gives on a price.
// Below the coupon's minimum price the discount is zero; percent
// discounts round down and honor the cap; the result never exceeds
// the price itself.
func CalculateDiscount(coupon *model.Coupon, price int64) int64 {
	if price < coupon.MinPrice {
		return 0
	}
	var discount int64
	switch coupon.DiscountType {
	case model.DiscountPercent:
		discount = price * coupon.DiscountValue / 100
		if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
			discount = *coupon.MaxDiscount
		}
	case model.DiscountFixed:
		discount = coupon.DiscountValue
	default:
		return 0
	}
	if discount > price {
		discount = price
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
