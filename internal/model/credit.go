package model

import "time"

// Credit score bounds.  Every user starts at the default; the running
// total never leaves [CreditScoreMin, CreditScoreMax].
const (
	CreditScoreDefault = 100
	CreditScoreMin     = 0
	CreditScoreMax     = 100
)

// Credit score deltas per cause.
const (
	CreditDeltaVisit            = 2   // completed visit
	CreditDeltaLateCancellation = -10 // cancelled within 1 hour of the slot
	CreditDeltaNoShow           = -30 // no-show
	CreditDeltaReport           = -50 // upheld report against the user
)

// Credit event reasons.  The (user, reason, reference) triple is the
// idempotency key for penalty application.
const (
	CreditReasonVisit            = "visit_completed"
	CreditReasonLateCancellation = "late_cancellation"
	CreditReasonNoShow           = "no_show"
	CreditReasonReport           = "report_upheld"
)

// CreditEvent is an append-only record of a credit score change.  The
// current score is derived by folding a user's events onto the default
// score, clamped to the allowed range.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – user whose score changed.
//  Delta       – signed score change.
//  Reason      – machine-readable cause.
//  ReferenceID – reservation or report the change refers to.
//  CreatedAt   – insertion timestamp.
type CreditEvent struct {
	ID          uint64    // credit_events.id
	UserID      uint64    // credit_events.user_id
	Delta       int64     // credit_events.delta
	Reason      string    // credit_events.reason
	ReferenceID *uint64   // credit_events.reference_id (nullable)
	CreatedAt   time.Time // credit_events.created_at
}

// BlacklistEntry blocks an identity from making new reservations.
// Entries are keyed by a stable identity value rather than the user
// row so that re-registration does not evade the block.
//
// Fields:
//  ID          – primary key identifier.
//  IdentityKey – stable identity value (verified-identity DI).
//  Reason      – why the identity was blocked.
//  BlockedAt   – when the block took effect.
//  BlockedBy   – admin who blocked, nil when triggered automatically.
type BlacklistEntry struct {
	ID          uint64    // blacklist.id
	IdentityKey string    // blacklist.identity_key
	Reason      string    // blacklist.reason
	BlockedAt   time.Time // blacklist.blocked_at
	BlockedBy   *uint64   // blacklist.blocked_by (nullable)
}
