package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/repository"
)

// Compensator performs best-effort corrective actions when a
// reservation falls apart.  Each action is isolated: one failure
// never blocks the others or the reservation's own status change, it
// is only logged.
type Compensator struct {
	points  *PointService
	coupons *CouponService
	log     *logrus.Logger
}

// NewCompensator constructs a Compensator.
func NewCompensator(points *PointService, coupons *CouponService, log *logrus.Logger) *Compensator {
	return &Compensator{points: points, coupons: coupons, log: log}
}

// OnCancellation returns whatever a reservation consumed: spent
// points are refunded and an applied coupon grant is restored.  Both
// actions run regardless of each other's outcome.
func (c *Compensator) OnCancellation(ctx context.Context, res *model.Reservation) {
	if res.UserID != nil {
		if err := c.points.RefundForReservation(ctx, *res.UserID, res.ID); err != nil {
			c.log.WithFields(logrus.Fields{
				"reservation_id": res.ID,
				"user_id":        *res.UserID,
				"error":          err,
			}).Error("compensation: point refund failed")
		}
	}

	grant, err := c.coupons.UsedGrant(ctx, res.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"error":          err,
		}).Error("compensation: used-grant lookup failed")
		return
	}
	if err := c.coupons.Restore(ctx, grant.ID); err != nil {
		c.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"grant_id":       grant.ID,
			"error":          err,
		}).Error("compensation: coupon restore failed")
	}
}
