package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dayeon/shop-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  A
// reservation occupies exactly one (shop, date, time) slot while it is
// in an active status.  Slot exclusivity is enforced by the unique
// index over (shop_id, date, time, slot_guard): slot_guard is 1 while
// the reservation is non-cancelled and NULL once cancelled, and NULL
// values never collide in a MySQL unique index.  All timestamp fields
// are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, shop_id, course_id, date, time, status, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	var userID sql.NullInt64
	err := row.Scan(&r.ID, &userID, &r.ShopID, &r.CourseID, &r.Date, &r.Time, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		r.UserID = &uid
	}
	return &r, nil
}

// Create inserts a new pending reservation.  The unique slot index is
// the authoritative exclusivity guard: when a concurrent create wins
// the same slot, the insert fails with a duplicate-entry error and
// ErrSlotTaken is returned.  On success the generated ID and
// timestamps are populated on the passed record.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, shop_id, course_id, date, time, status, slot_guard)
			   VALUES (?, ?, ?, ?, ?, ?, 1)`
	var userID any
	if res.UserID != nil {
		userID = *res.UserID
	}
	result, err := r.db.ExecContext(ctx, q, userID, res.ShopID, res.CourseID, res.Date, res.Time, model.StatusPending)
	if err != nil {
		if isDuplicate(err) {
			return ErrSlotTaken
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.Status = model.StatusPending
	// Query back the row to populate the DB-assigned timestamps.
	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	got, err := scanReservation(r.db.QueryRowContext(ctx, sel, res.ID))
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

// GetByID returns a single reservation.  When no reservation with the
// specified ID exists, ErrNotFound is returned.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BookedTimes returns the time values of all active reservations for a
// shop on a date.  An empty slice is returned when the shop has no
// bookings that day; absence of data is not an error.
func (r *ReservationRepo) BookedTimes(ctx context.Context, shopID uint64, date string) ([]string, error) {
	const q = `SELECT time FROM reservations
			   WHERE shop_id = ? AND date = ? AND status IN ('pending', 'confirmed')`
	rows, err := r.db.QueryContext(ctx, q, shopID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	times := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return times, nil
}

// UpdateStatus transitions a reservation from one of the allowed
// current statuses to a new status as a single conditional write.
// Cancellation also clears slot_guard so the slot frees up under the
// unique index.  ErrConflict is returned when the row was not in an
// allowed status, which makes retried transitions observable rather
// than silently double-applied.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, from []string, to string) error {
	if len(from) == 0 {
		return ErrConflict
	}
	placeholders := strings.Repeat(",?", len(from))[1:]
	q := `UPDATE reservations SET status = ?, slot_guard = ? WHERE id = ? AND status IN (` + placeholders + `)`
	var guard any
	if to != model.StatusCancelled {
		guard = 1
	}
	args := make([]any, 0, len(from)+3)
	args = append(args, to, guard, id)
	for _, s := range from {
		args = append(args, s)
	}
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Reschedule moves a reservation to a new slot in place and resets its
// status to pending, leaving ledger back-references untouched.  The
// update is conditional on the reservation still being active; the
// unique slot index rejects a colliding target slot with ErrSlotTaken.
func (r *ReservationRepo) Reschedule(ctx context.Context, id uint64, newDate, newTime string) error {
	const q = `UPDATE reservations SET date = ?, time = ?, status = ?
			   WHERE id = ? AND status IN ('pending', 'confirmed')`
	result, err := r.db.ExecContext(ctx, q, newDate, newTime, model.StatusPending, id)
	if err != nil {
		if isDuplicate(err) {
			return ErrSlotTaken
		}
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// HasActiveAt reports whether any active reservation other than
// excludeID occupies the given slot.  This backs the advisory
// collision check before a reschedule; the unique index remains the
// authoritative guard.
func (r *ReservationRepo) HasActiveAt(ctx context.Context, shopID uint64, date, t string, excludeID uint64) (bool, error) {
	const q = `SELECT id FROM reservations
			   WHERE shop_id = ? AND date = ? AND time = ?
				 AND status IN ('pending', 'confirmed') AND id <> ?
			   LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, shopID, date, t, excludeID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByUser returns all reservations for the given user ordered by
// slot descending (newest first).  When no reservations exist, an
// empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
			   WHERE user_id = ? ORDER BY date DESC, time DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
