package repository

import (
	"context"
	"database/sql"

	"github.com/dayeon/shop-reservation/internal/model"
)

// PointRepo provides access to the append-only point_events table.
// Rows are only ever inserted; balances are derived by folding a
// user's full history, so concurrent inserts never race on a shared
// counter.  All timestamps are stored in UTC.
type PointRepo struct {
	db *sql.DB
}

// NewPointRepo returns a new PointRepo bound to the given database.
func NewPointRepo(db *sql.DB) *PointRepo { return &PointRepo{db: db} }

const pointColumns = `id, user_id, amount, type, description, reservation_id, source_event_id, expires_at, created_at`

func scanPointEvent(row interface{ Scan(...any) error }) (*model.PointEvent, error) {
	var e model.PointEvent
	var reservationID, sourceID sql.NullInt64
	var expiresAt sql.NullTime
	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &e.Description, &reservationID, &sourceID, &expiresAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if reservationID.Valid {
		rid := uint64(reservationID.Int64)
		e.ReservationID = &rid
	}
	if sourceID.Valid {
		sid := uint64(sourceID.Int64)
		e.SourceEventID = &sid
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	return &e, nil
}

// Append inserts a single ledger event and populates its generated ID
// and created_at.  This is the only write operation on point_events.
func (r *PointRepo) Append(ctx context.Context, e *model.PointEvent) error {
	const q = `INSERT INTO point_events (user_id, amount, type, description, reservation_id, source_event_id, expires_at)
			   VALUES (?, ?, ?, ?, ?, ?, ?)`
	var reservationID, sourceID, expiresAt any
	if e.ReservationID != nil {
		reservationID = *e.ReservationID
	}
	if e.SourceEventID != nil {
		sourceID = *e.SourceEventID
	}
	if e.ExpiresAt != nil {
		expiresAt = e.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	result, err := r.db.ExecContext(ctx, q, e.UserID, e.Amount, e.Type, e.Description, reservationID, sourceID, expiresAt)
	if err != nil {
		// The unique index on source_event_id admits one offsetting
		// event (refund or expire) per source.
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
	const sel = `SELECT created_at FROM point_events WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, e.ID).Scan(&e.CreatedAt)
}

// ListByUser returns a user's full ledger ordered chronologically.
// The balance fold and the expiry sweep both replay this history.
func (r *PointRepo) ListByUser(ctx context.Context, userID uint64) ([]model.PointEvent, error) {
	const q = `SELECT ` + pointColumns + ` FROM point_events WHERE user_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PointEvent, 0)
	for rows.Next() {
		e, err := scanPointEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns a page of a user's ledger, newest first, along with
// whether more pages remain.
func (r *PointRepo) History(ctx context.Context, userID uint64, page, limit int) ([]model.PointEvent, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	const q = `SELECT ` + pointColumns + ` FROM point_events
			   WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit+1, offset)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	out := make([]model.PointEvent, 0, limit)
	for rows.Next() {
		e, err := scanPointEvent(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}

// UsesByReservation returns every use event recorded against a
// reservation for a user, oldest first.  A retried settlement can
// leave more than one; refunds reverse each use individually, keyed by
// its event ID.
func (r *PointRepo) UsesByReservation(ctx context.Context, userID, reservationID uint64) ([]model.PointEvent, error) {
	const q = `SELECT ` + pointColumns + ` FROM point_events
			   WHERE user_id = ? AND reservation_id = ? AND type = 'use'
			   ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, userID, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PointEvent, 0)
	for rows.Next() {
		e, err := scanPointEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasRefundForUse reports whether a refund event already reverses the
// given use event.  This is the idempotency guard that keeps a retried
// refund from crediting twice; the unique index on source_event_id
// backs it under concurrency.
func (r *PointRepo) HasRefundForUse(ctx context.Context, useEventID uint64) (bool, error) {
	const q = `SELECT id FROM point_events
			   WHERE source_event_id = ? AND type = 'refund'
			   LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, useEventID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
