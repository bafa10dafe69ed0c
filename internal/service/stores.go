package service

import (
	"context"
	"time"

	"github.com/dayeon/shop-reservation/internal/model"
)

// The store interfaces below are satisfied by the concrete types in
// internal/repository.  Services depend on these rather than on
// *sql.DB so that business rules can be exercised against in-memory
// fakes.

// ReservationStore persists reservations and enforces slot
// exclusivity at the storage level.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	BookedTimes(ctx context.Context, shopID uint64, date string) ([]string, error)
	UpdateStatus(ctx context.Context, id uint64, from []string, to string) error
	Reschedule(ctx context.Context, id uint64, newDate, newTime string) error
	HasActiveAt(ctx context.Context, shopID uint64, date, t string, excludeID uint64) (bool, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
}

// PointStore persists a user's append-only point ledger.
type PointStore interface {
	Append(ctx context.Context, e *model.PointEvent) error
	ListByUser(ctx context.Context, userID uint64) ([]model.PointEvent, error)
	History(ctx context.Context, userID uint64, page, limit int) ([]model.PointEvent, bool, error)
	UsesByReservation(ctx context.Context, userID, reservationID uint64) ([]model.PointEvent, error)
	HasRefundForUse(ctx context.Context, useEventID uint64) (bool, error)
}

// CouponStore persists coupon definitions and wallet grants.
type CouponStore interface {
	GetCoupon(ctx context.Context, id uint64) (*model.Coupon, error)
	GrantExists(ctx context.Context, userID, couponID uint64) (bool, error)
	ReserveQuota(ctx context.Context, couponID uint64) error
	ReleaseQuota(ctx context.Context, couponID uint64) error
	InsertGrant(ctx context.Context, userID, couponID uint64) (*model.CouponGrant, error)
	GetGrant(ctx context.Context, grantID uint64) (*model.CouponGrant, error)
	ApplicableGrants(ctx context.Context, userID, shopID uint64, price int64, now time.Time) ([]model.CouponGrant, error)
	ApplyGrant(ctx context.Context, grantID, reservationID uint64, now time.Time) error
	RestoreGrant(ctx context.Context, grantID uint64) error
	UsedGrantForReservation(ctx context.Context, reservationID uint64) (*model.CouponGrant, error)
}

// CreditStore persists the append-only credit score ledger.
type CreditStore interface {
	Append(ctx context.Context, e *model.CreditEvent) error
	HasEvent(ctx context.Context, userID uint64, reason string, referenceID *uint64) (bool, error)
	TotalDelta(ctx context.Context, userID uint64) (int64, error)
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.CreditEvent, error)
}

// BlacklistStore persists blocked identities.
type BlacklistStore interface {
	Exists(ctx context.Context, identityKey string) (bool, error)
	Insert(ctx context.Context, e *model.BlacklistEntry) error
}

// CatalogStore reads shops and courses.
type CatalogStore interface {
	GetShop(ctx context.Context, id uint64) (*model.Shop, error)
	GetCourse(ctx context.Context, id uint64) (*model.Course, error)
}

// UserStore reads the user fields the booking flow needs.
type UserStore interface {
	Nickname(ctx context.Context, userID uint64) (string, error)
	IdentityKey(ctx context.Context, userID uint64) (string, error)
}
