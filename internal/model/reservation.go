package model

import "time"

// Reservation statuses.  A reservation is created pending, becomes
// confirmed once payment is verified (or the payable amount is zero),
// and ends in one of the two terminal states.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// ActiveStatuses are the statuses that occupy a time slot.  The
// uniqueness constraint on (shop_id, date, time) only applies to
// reservations in one of these states.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

// Reservation records a booking of a time slot at a shop for a
// specific course.  Guests are allowed, so UserID is nullable.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user who made the reservation (nil for guests).
//  ShopID    – shop where the slot is booked.
//  CourseID  – course (service menu item) being booked.
//  Date      – calendar date of the slot, formatted YYYY-MM-DD.
//  Time      – time of the slot, formatted HH:MM.
//  Status    – one of pending, confirmed, cancelled, completed.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64    // reservations.id
	UserID    *uint64   // reservations.user_id (nullable)
	ShopID    uint64    // reservations.shop_id
	CourseID  uint64    // reservations.course_id
	Date      string    // reservations.date
	Time      string    // reservations.time
	Status    string    // reservations.status
	CreatedAt time.Time // reservations.created_at
	UpdatedAt time.Time // reservations.updated_at
}

// IsActive reports whether the reservation currently occupies its slot.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// IsTerminal reports whether the reservation can no longer change state.
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusCancelled || r.Status == StatusCompleted
}

// ScheduledAt combines Date and Time into a UTC timestamp.  It returns
// the zero time when either field is malformed.
func (r *Reservation) ScheduledAt() time.Time {
	t, err := time.Parse("2006-01-02 15:04", r.Date+" "+r.Time)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
