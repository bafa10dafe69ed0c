package repository

import (
	"context"
	"database/sql"
)

// UserRepo reads the user fields the booking flow needs: the display
// name for notifications and the verified-identity key the blacklist
// is keyed on.  Account management itself lives elsewhere.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Nickname returns the user's display name, or ErrNotFound.
func (r *UserRepo) Nickname(ctx context.Context, userID uint64) (string, error) {
	const q = `SELECT nickname FROM users WHERE id = ?`
	var name string
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// IdentityKey returns the stable verified-identity value for a user.
// Blacklist entries are keyed by this value so that re-registration
// does not evade a block.  ErrNotFound means the user has no verified
// identity on file.
func (r *UserRepo) IdentityKey(ctx context.Context, userID uint64) (string, error) {
	const q = `SELECT identity_key FROM users WHERE id = ?`
	var key sql.NullString
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&key)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !key.Valid || key.String == "" {
		return "", ErrNotFound
	}
	return key.String, nil
}
