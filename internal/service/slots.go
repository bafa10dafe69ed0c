package service

import (
	"context"
	"fmt"
	"time"
)

// Booking hours.  Shops take hourly slots from the opening hour up to
// and including the closing hour.
const (
	slotOpenHour  = 10
	slotCloseHour = 22
)

// SlotService computes free time slots for a shop and date.  The read
// is advisory only; the unique index on active reservations is what
// actually prevents a double booking.
type SlotService struct {
	reservations ReservationStore
}

// NewSlotService constructs a SlotService.
func NewSlotService(reservations ReservationStore) *SlotService {
	return &SlotService{reservations: reservations}
}

// allSlots returns every bookable time of day in ascending order.
func allSlots() []string {
	slots := make([]string, 0, slotCloseHour-slotOpenHour+1)
	for h := slotOpenHour; h <= slotCloseHour; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}

// validSlot reports whether t is one of the bookable times of day.
func validSlot(t string) bool {
	for _, s := range allSlots() {
		if s == t {
			return true
		}
	}
	return false
}

// validDate reports whether d is a well-formed YYYY-MM-DD date.
func validDate(d string) bool {
	_, err := time.Parse("2006-01-02", d)
	return err == nil
}

// Available returns the ordered list of time slots on the given date
// that are not held by a pending or confirmed reservation.  A shop
// with no reservations gets the full list, never an error.
func (s *SlotService) Available(ctx context.Context, shopID uint64, date string) ([]string, error) {
	if !validDate(date) {
		return nil, NewValidationError("invalid date %q, want YYYY-MM-DD", date)
	}
	booked, err := s.reservations.BookedTimes(ctx, shopID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}
	free := make([]string, 0, slotCloseHour-slotOpenHour+1)
	for _, t := range allSlots() {
		if _, ok := taken[t]; !ok {
			free = append(free, t)
		}
	}
	return free, nil
}
