package repository

import (
	"context"
	"database/sql"

	"github.com/dayeon/shop-reservation/internal/model"
)

// BlacklistRepo provides access to the blacklist table, keyed by a
// stable identity value.  Callers that only check membership must
// fail open on storage errors; that policy lives in the service
// layer, not here.
type BlacklistRepo struct {
	db *sql.DB
}

// NewBlacklistRepo returns a new BlacklistRepo bound to the given database.
func NewBlacklistRepo(db *sql.DB) *BlacklistRepo { return &BlacklistRepo{db: db} }

// Exists reports whether the identity key is blacklisted.
func (r *BlacklistRepo) Exists(ctx context.Context, identityKey string) (bool, error) {
	const q = `SELECT id FROM blacklist WHERE identity_key = ? LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, identityKey).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert adds an entry to the blacklist.  Inserting an identity that
// is already blocked is treated as success: the desired end state
// holds either way, and the automatic trigger may fire more than once
// for the same user.
func (r *BlacklistRepo) Insert(ctx context.Context, e *model.BlacklistEntry) error {
	const q = `INSERT INTO blacklist (identity_key, reason, blocked_at, blocked_by) VALUES (?, ?, UTC_TIMESTAMP(), ?)`
	var blockedBy any
	if e.BlockedBy != nil {
		blockedBy = *e.BlockedBy
	}
	result, err := r.db.ExecContext(ctx, q, e.IdentityKey, e.Reason, blockedBy)
	if err != nil {
		if isDuplicate(err) {
			return nil
		}
		return err
	}
	if id, err := result.LastInsertId(); err == nil {
		e.ID = uint64(id)
	}
	return nil
}
