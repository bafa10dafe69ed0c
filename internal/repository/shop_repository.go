package repository

import (
	"context"
	"database/sql"

	"github.com/dayeon/shop-reservation/internal/model"
)

// ShopRepo provides read access to shops and courses.  The booking
// flow only ever reads these tables; content management is owned by
// another system.
type ShopRepo struct {
	db *sql.DB
}

// NewShopRepo returns a new ShopRepo bound to the given database.
func NewShopRepo(db *sql.DB) *ShopRepo { return &ShopRepo{db: db} }

// GetShop returns a shop by ID, or ErrNotFound.
func (r *ShopRepo) GetShop(ctx context.Context, id uint64) (*model.Shop, error) {
	const q = `SELECT id, owner_id, name, created_at FROM shops WHERE id = ?`
	var s model.Shop
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.OwnerID, &s.Name, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetCourse returns a course by ID, or ErrNotFound.
func (r *ShopRepo) GetCourse(ctx context.Context, id uint64) (*model.Course, error) {
	const q = `SELECT id, shop_id, name, price, duration_minutes, created_at FROM courses WHERE id = ?`
	var c model.Course
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.ShopID, &c.Name, &c.Price, &c.Duration, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
