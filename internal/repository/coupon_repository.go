package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dayeon/shop-reservation/internal/model"
)

// CouponRepo provides access to coupon definitions and the
// user_coupons wallet.  Grant correctness rests on two storage-level
// guards: the unique (user_id, coupon_id) key makes downloads
// once-per-user, and the conditional "used_at IS NULL" update makes
// apply safe against double use.  Reads like ApplicableGrants are
// advisory only.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponColumns = `id, shop_id, name, discount_type, discount_value, min_price, max_discount, usage_limit, used_count, valid_until, is_active, created_at`

func scanCoupon(row interface{ Scan(...any) error }) (*model.Coupon, error) {
	var c model.Coupon
	var maxDiscount, usageLimit sql.NullInt64
	err := row.Scan(&c.ID, &c.ShopID, &c.Name, &c.DiscountType, &c.DiscountValue, &c.MinPrice,
		&maxDiscount, &usageLimit, &c.UsedCount, &c.ValidUntil, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if maxDiscount.Valid {
		v := maxDiscount.Int64
		c.MaxDiscount = &v
	}
	if usageLimit.Valid {
		v := usageLimit.Int64
		c.UsageLimit = &v
	}
	return &c, nil
}

const grantColumns = `id, user_id, coupon_id, used_at, reservation_id, created_at`

func scanGrant(row interface{ Scan(...any) error }) (*model.CouponGrant, error) {
	var g model.CouponGrant
	var usedAt sql.NullTime
	var reservationID sql.NullInt64
	err := row.Scan(&g.ID, &g.UserID, &g.CouponID, &usedAt, &reservationID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		g.UsedAt = &t
	}
	if reservationID.Valid {
		rid := uint64(reservationID.Int64)
		g.ReservationID = &rid
	}
	return &g, nil
}

// GetCoupon returns a coupon definition by ID, or ErrNotFound.
func (r *CouponRepo) GetCoupon(ctx context.Context, id uint64) (*model.Coupon, error) {
	const q = `SELECT ` + couponColumns + ` FROM coupons WHERE id = ?`
	c, err := scanCoupon(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GrantExists reports whether the user already downloaded the coupon.
func (r *CouponRepo) GrantExists(ctx context.Context, userID, couponID uint64) (bool, error) {
	const q = `SELECT id FROM user_coupons WHERE user_id = ? AND coupon_id = ? LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, userID, couponID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReserveQuota consumes one unit of a coupon's download quota as an
// atomic conditional increment.  ErrSoldOut is returned when the
// usage limit is set and exhausted, which keeps used_count from ever
// exceeding usage_limit under concurrency.
func (r *CouponRepo) ReserveQuota(ctx context.Context, couponID uint64) error {
	const q = `UPDATE coupons SET used_count = used_count + 1
			   WHERE id = ? AND is_active = 1
				 AND (usage_limit IS NULL OR used_count < usage_limit)`
	result, err := r.db.ExecContext(ctx, q, couponID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSoldOut
	}
	return nil
}

// ReleaseQuota backs out one unit of download quota.  It is the
// compensating action when the grant insert after ReserveQuota fails.
func (r *CouponRepo) ReleaseQuota(ctx context.Context, couponID uint64) error {
	const q = `UPDATE coupons SET used_count = used_count - 1 WHERE id = ? AND used_count > 0`
	_, err := r.db.ExecContext(ctx, q, couponID)
	return err
}

// InsertGrant creates an unused wallet entry for (user, coupon).  The
// unique key over the pair returns ErrAlreadyDownloaded when the user
// raced a second download of the same coupon.
func (r *CouponRepo) InsertGrant(ctx context.Context, userID, couponID uint64) (*model.CouponGrant, error) {
	const q = `INSERT INTO user_coupons (user_id, coupon_id) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, q, userID, couponID)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrAlreadyDownloaded
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetGrant(ctx, uint64(id))
}

// GetGrant returns a wallet entry by ID, or ErrNotFound.
func (r *CouponRepo) GetGrant(ctx context.Context, grantID uint64) (*model.CouponGrant, error) {
	const q = `SELECT ` + grantColumns + ` FROM user_coupons WHERE id = ?`
	g, err := scanGrant(r.db.QueryRowContext(ctx, q, grantID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ApplicableGrants returns the user's unused grants for a shop whose
// coupon is active, not past valid_until, and whose minimum price is
// met.  This read backs coupon pickers in the UI; apply correctness
// does not depend on it.
func (r *CouponRepo) ApplicableGrants(ctx context.Context, userID, shopID uint64, price int64, now time.Time) ([]model.CouponGrant, error) {
	const q = `SELECT uc.id, uc.user_id, uc.coupon_id, uc.used_at, uc.reservation_id, uc.created_at
			   FROM user_coupons uc
			   JOIN coupons c ON c.id = uc.coupon_id
			   WHERE uc.user_id = ? AND uc.used_at IS NULL
				 AND c.shop_id = ? AND c.is_active = 1
				 AND c.min_price <= ? AND c.valid_until >= ?
			   ORDER BY uc.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, shopID, price, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CouponGrant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyGrant marks a grant as used by a reservation.  The update is
// conditional on used_at still being null; a grant that was applied
// concurrently (or is simply already used) yields ErrCouponUsed
// rather than a blind overwrite.
func (r *CouponRepo) ApplyGrant(ctx context.Context, grantID, reservationID uint64, now time.Time) error {
	const q = `UPDATE user_coupons SET used_at = ?, reservation_id = ?
			   WHERE id = ? AND used_at IS NULL`
	result, err := r.db.ExecContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), reservationID, grantID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCouponUsed
	}
	return nil
}

// RestoreGrant clears a grant's used_at and reservation back-reference
// so it becomes applicable again.  Restoring an unused grant is a
// no-op success; cancellation compensation relies on that.
func (r *CouponRepo) RestoreGrant(ctx context.Context, grantID uint64) error {
	const q = `UPDATE user_coupons SET used_at = NULL, reservation_id = NULL WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, grantID)
	return err
}

// UsedGrantForReservation returns the grant applied to a reservation,
// or ErrNotFound when the reservation used no coupon.
func (r *CouponRepo) UsedGrantForReservation(ctx context.Context, reservationID uint64) (*model.CouponGrant, error) {
	const q = `SELECT ` + grantColumns + ` FROM user_coupons WHERE reservation_id = ? LIMIT 1`
	g, err := scanGrant(r.db.QueryRowContext(ctx, q, reservationID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
