package model

import "time"

// Coupon discount types.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Coupon is a shop-issued discount definition.  Users download a
// coupon once into their wallet; the wallet entry (CouponGrant)
// tracks usage.
//
// Fields:
//  ID            – primary key identifier.
//  ShopID        – issuing shop.
//  Name          – display name.
//  DiscountType  – percent or fixed.
//  DiscountValue – percentage (0-100) or fixed amount in won.
//  MinPrice      – minimum course price for the coupon to apply.
//  MaxDiscount   – cap for percent discounts (nil means uncapped).
//  UsageLimit    – total number of downloads allowed (nil = unlimited).
//  UsedCount     – downloads consumed so far; never exceeds UsageLimit.
//  ValidUntil    – last instant the coupon may be applied.
//  IsActive      – whether the coupon is currently offered.
type Coupon struct {
	ID            uint64    // coupons.id
	ShopID        uint64    // coupons.shop_id
	Name          string    // coupons.name
	DiscountType  string    // coupons.discount_type
	DiscountValue int64     // coupons.discount_value
	MinPrice      int64     // coupons.min_price
	MaxDiscount   *int64    // coupons.max_discount (nullable)
	UsageLimit    *int64    // coupons.usage_limit (nullable)
	UsedCount     int64     // coupons.used_count
	ValidUntil    time.Time // coupons.valid_until
	IsActive      bool      // coupons.is_active
	CreatedAt     time.Time // coupons.created_at
}

// CouponGrant is one downloaded coupon in a user's wallet.  A grant is
// applied to at most one reservation at a time; restoring it clears
// both UsedAt and ReservationID so it becomes applicable again.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – wallet owner.
//  CouponID      – coupon definition this grant was downloaded from.
//  UsedAt        – when the grant was applied (nil while unused).
//  ReservationID – reservation the grant is applied to, if any.
//  CreatedAt     – download timestamp.
type CouponGrant struct {
	ID            uint64     // user_coupons.id
	UserID        uint64     // user_coupons.user_id
	CouponID      uint64     // user_coupons.coupon_id
	UsedAt        *time.Time // user_coupons.used_at (nullable)
	ReservationID *uint64    // user_coupons.reservation_id (nullable)
	CreatedAt     time.Time  // user_coupons.created_at
}

// Used reports whether the grant is currently applied to a reservation.
func (g *CouponGrant) Used() bool { return g.UsedAt != nil }
