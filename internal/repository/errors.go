// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrSlotTaken indicates that another active reservation
// already occupies the requested (shop, date, time) slot, while
// ErrCouponUsed signals that a grant was already applied to a
// reservation and the conditional update matched no row.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as cancelling a reservation that has
// already reached a terminal status. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSlotTaken is returned when the unique index over active
// reservations rejects an insert or reschedule. It is the
// authoritative slot-exclusivity signal; the availability read in
// the slot engine is advisory only.
var ErrSlotTaken = errors.New("slot already taken")

// ErrSoldOut is returned when a coupon's usage limit is exhausted and
// the conditional used_count increment matches no row.
var ErrSoldOut = errors.New("coupon sold out")

// ErrAlreadyDownloaded is returned when a user already holds a grant
// for the coupon; a coupon may be downloaded once per user.
var ErrAlreadyDownloaded = errors.New("coupon already downloaded")

// ErrCouponUsed is returned when applying a grant whose used_at is no
// longer null. The guard is the conditional update itself, never a
// prior read.
var ErrCouponUsed = errors.New("coupon already used")

// isDuplicate reports whether err is a MySQL duplicate-entry error
// (error number 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
