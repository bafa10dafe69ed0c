package model

import "time"

// Point event types.  Earn, bonus and refund events carry positive
// amounts and an expiry; use and expire events carry negative amounts.
const (
	PointEarn   = "earn"
	PointUse    = "use"
	PointBonus  = "bonus"
	PointRefund = "refund"
	PointExpire = "expire"
)

// PointExpiryMonths is how long earned points remain spendable.
const PointExpiryMonths = 12

// PointEarnRate is the share of the charged amount returned as points
// on a completed payment.
const PointEarnRate = 0.05

// PointEvent is a single immutable entry in a user's point ledger.
// Events are only ever inserted; the available balance is always a
// fold over the full history, never a stored counter.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owner of the ledger entry.
//  Amount        – signed point delta (negative for use/expire).
//  Type          – one of earn, use, bonus, refund, expire.
//  Description   – human-readable reason for the entry.
//  ReservationID – reservation this entry relates to, if any.
//  SourceEventID – for expire events, the earn/bonus event offset.
//  ExpiresAt     – when an earn/bonus/refund credit stops counting.
//  CreatedAt     – insertion timestamp.
type PointEvent struct {
	ID            uint64     // point_events.id
	UserID        uint64     // point_events.user_id
	Amount        int64      // point_events.amount (signed)
	Type          string     // point_events.type
	Description   string     // point_events.description
	ReservationID *uint64    // point_events.reservation_id (nullable)
	SourceEventID *uint64    // point_events.source_event_id (nullable)
	ExpiresAt     *time.Time // point_events.expires_at (nullable)
	CreatedAt     time.Time  // point_events.created_at
}

// IsCredit reports whether the event adds to the spendable balance.
func (e *PointEvent) IsCredit() bool {
	return e.Type == PointEarn || e.Type == PointBonus || e.Type == PointRefund
}

// ExpiredAt reports whether the event's credit has lapsed at the given
// instant.  Events without an expiry never lapse.
func (e *PointEvent) ExpiredAt(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
