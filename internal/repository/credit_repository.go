package repository

import (
	"context"
	"database/sql"

	"github.com/dayeon/shop-reservation/internal/model"
)

// CreditRepo provides access to the append-only credit_events table.
// The current score is derived by summing a user's deltas onto the
// default score.  The unique key over (user_id, reason, reference_id)
// makes penalty application idempotent per cause at the storage level.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// Append inserts a credit event.  ErrConflict is returned when an
// event with the same (user, reason, reference) already exists, which
// is how a retried cancellation avoids double-applying its penalty.
func (r *CreditRepo) Append(ctx context.Context, e *model.CreditEvent) error {
	const q = `INSERT INTO credit_events (user_id, delta, reason, reference_id) VALUES (?, ?, ?, ?)`
	var referenceID any
	if e.ReferenceID != nil {
		referenceID = *e.ReferenceID
	}
	result, err := r.db.ExecContext(ctx, q, e.UserID, e.Delta, e.Reason, referenceID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// HasEvent reports whether a credit event already exists for the
// (user, reason, reference) cause.
func (r *CreditRepo) HasEvent(ctx context.Context, userID uint64, reason string, referenceID *uint64) (bool, error) {
	const q = `SELECT id FROM credit_events
			   WHERE user_id = ? AND reason = ? AND reference_id <=> ?
			   LIMIT 1`
	var referenceArg any
	if referenceID != nil {
		referenceArg = *referenceID
	}
	var id uint64
	err := r.db.QueryRowContext(ctx, q, userID, reason, referenceArg).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TotalDelta returns the sum of all deltas recorded for a user.  A
// user without events sums to zero.
func (r *CreditRepo) TotalDelta(ctx context.Context, userID uint64) (int64, error) {
	const q = `SELECT COALESCE(SUM(delta), 0) FROM credit_events WHERE user_id = ?`
	var total int64
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListByUser returns a user's credit events, newest first, capped at
// limit entries.
func (r *CreditRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.CreditEvent, error) {
	if limit < 1 {
		limit = 20
	}
	const q = `SELECT id, user_id, delta, reason, reference_id, created_at
			   FROM credit_events WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CreditEvent, 0)
	for rows.Next() {
		var e model.CreditEvent
		var referenceID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &referenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if referenceID.Valid {
			rid := uint64(referenceID.Int64)
			e.ReferenceID = &rid
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
