package model

import "time"

// Shop is a partner business that offers bookable courses.  Only the
// fields needed by the reservation flow are modelled here; shop
// content management lives elsewhere.
type Shop struct {
	ID        uint64    // shops.id
	OwnerID   uint64    // shops.owner_id
	Name      string    // shops.name
	CreatedAt time.Time // shops.created_at
}

// Course is a bookable service menu item at a shop, priced in won.
type Course struct {
	ID        uint64    // courses.id
	ShopID    uint64    // courses.shop_id
	Name      string    // courses.name
	Price     int64     // courses.price
	Duration  int       // courses.duration_minutes
	CreatedAt time.Time // courses.created_at
}
