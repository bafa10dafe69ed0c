package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/payment"
	"github.com/dayeon/shop-reservation/internal/queue"
	"github.com/dayeon/shop-reservation/internal/repository"
)

// Notifier publishes the fire-and-forget partner notification for a
// new reservation.
type Notifier interface {
	PublishReservationCreated(ctx context.Context, ev queue.ReservationCreatedEvent) error
}

// BookingService drives the reservation lifecycle: creation against
// the slot guard, settlement through the payment gateway or the
// zero-amount shortcut, cancellation with compensation, reschedule
// and completion.
type BookingService struct {
	reservations ReservationStore
	catalog      CatalogStore
	users        UserStore
	points       *PointService
	coupons      *CouponService
	credit       *CreditService
	comp         *Compensator
	gateway      payment.Gateway
	notifier     Notifier
	log          *logrus.Logger
	now          func() time.Time
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	reservations ReservationStore,
	catalog CatalogStore,
	users UserStore,
	points *PointService,
	coupons *CouponService,
	credit *CreditService,
	comp *Compensator,
	gateway payment.Gateway,
	notifier Notifier,
	log *logrus.Logger,
) *BookingService {
	return &BookingService{
		reservations: reservations,
		catalog:      catalog,
		users:        users,
		points:       points,
		coupons:      coupons,
		credit:       credit,
		comp:         comp,
		gateway:      gateway,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

// Create books a pending reservation for the slot.  The availability
// read is only an early exit; the unique index over active
// reservations is what actually decides a race, surfacing as
// repository.ErrSlotTaken for the loser.  Guests may book, so userID
// is optional.
func (s *BookingService) Create(ctx context.Context, userID *uint64, shopID, courseID uint64, date, timeOfDay string) (*model.Reservation, error) {
	if !validDate(date) {
		return nil, NewValidationError("invalid date %q, want YYYY-MM-DD", date)
	}
	if !validSlot(timeOfDay) {
		return nil, NewValidationError("invalid time slot %q", timeOfDay)
	}
	scheduled, _ := time.Parse("2006-01-02 15:04", date+" "+timeOfDay)
	if scheduled.Before(s.now().UTC()) {
		return nil, ErrPastDate
	}
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.ShopID != shopID {
		return nil, NewValidationError("course %d does not belong to shop %d", courseID, shopID)
	}
	shop, err := s.catalog.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if userID != nil && s.credit.IsBlacklisted(ctx, *userID) {
		return nil, ErrBlacklisted
	}

	taken, err := s.reservations.HasActiveAt(ctx, shopID, date, timeOfDay, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repository.ErrSlotTaken
	}

	res := &model.Reservation{
		UserID:   userID,
		ShopID:   shopID,
		CourseID: courseID,
		Date:     date,
		Time:     timeOfDay,
		Status:   model.StatusPending,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, err
	}

	s.notifyCreated(ctx, res, shop, course)
	return res, nil
}

// notifyCreated publishes the partner notification.  Delivery is
// fire-and-forget; a broker failure is logged and swallowed.
func (s *BookingService) notifyCreated(ctx context.Context, res *model.Reservation, shop *model.Shop, course *model.Course) {
	name := "guest"
	if res.UserID != nil {
		if n, err := s.users.Nickname(ctx, *res.UserID); err == nil {
			name = n
		}
	}
	ev := queue.ReservationCreatedEvent{
		PartnerID:     shop.OwnerID,
		ReservationID: res.ID,
		CustomerName:  name,
		CourseName:    course.Name,
		Date:          res.Date,
		Time:          res.Time,
		CreatedAt:     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.notifier.PublishReservationCreated(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"error":          err,
		}).Warn("reservation-created notification dropped")
	}
}

// Settle collects the payable amount for a pending reservation and
// confirms it.  The payable amount is the course price minus the
// coupon discount minus the points spent; when that lands on exactly
// zero the payment gateway is skipped and the ledgers are settled
// before confirming.  On the paid path the ledgers are settled after
// the verified charge, and a ledger failure there is logged but never
// unwinds the payment: the reservation stays confirmed.
func (s *BookingService) Settle(ctx context.Context, callerID *uint64, reservationID uint64, usePoints int64, grantID *uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(res, callerID); err != nil {
		return nil, err
	}
	if res.Status != model.StatusPending {
		return nil, ErrInvalidStatus
	}
	course, err := s.catalog.GetCourse(ctx, res.CourseID)
	if err != nil {
		return nil, err
	}

	if usePoints < 0 {
		return nil, NewValidationError("use_points must not be negative, got %d", usePoints)
	}
	if (usePoints > 0 || grantID != nil) && res.UserID == nil {
		return nil, NewValidationError("guest reservations cannot use points or coupons")
	}

	price := course.Price
	var discount int64
	var grant *model.CouponGrant
	if grantID != nil {
		grant, err = s.coupons.GetGrant(ctx, *grantID)
		if err != nil {
			return nil, err
		}
		if grant.UserID != *res.UserID {
			return nil, repository.ErrForbidden
		}
		if grant.Used() {
			return nil, repository.ErrCouponUsed
		}
		coupon, err := s.coupons.GetCoupon(ctx, grant.CouponID)
		if err != nil {
			return nil, err
		}
		if !coupon.IsActive || coupon.ValidUntil.Before(s.now().UTC()) {
			return nil, NewValidationError("coupon is no longer valid")
		}
		if coupon.ShopID != res.ShopID {
			return nil, NewValidationError("coupon belongs to a different shop")
		}
		discount = CalculateDiscount(coupon, price)
	}
	if usePoints > price-discount {
		return nil, NewValidationError("use_points %d exceeds the payable amount %d", usePoints, price-discount)
	}
	payable := price - discount - usePoints

	if payable == 0 {
		return s.settleZero(ctx, res, usePoints, grant)
	}
	return s.settlePaid(ctx, res, course, payable, usePoints, grant)
}

// settleZero is the gateway-skipping path: everything was covered by
// points and coupon, so the ledgers settle first and the reservation
// confirms directly.
func (s *BookingService) settleZero(ctx context.Context, res *model.Reservation, usePoints int64, grant *model.CouponGrant) (*model.Reservation, error) {
	var use *model.PointEvent
	if usePoints > 0 {
		var err error
		use, err = s.points.Consume(ctx, *res.UserID, usePoints, &res.ID)
		if err != nil {
			return nil, err
		}
	}
	if grant != nil {
		if err := s.coupons.Apply(ctx, *res.UserID, grant.ID, res.ID); err != nil {
			// Nothing was charged; reverse exactly the use event this
			// attempt appended and leave the reservation pending for a
			// retry.  Refunding by event keeps a later retry or
			// cancellation able to refund its own spend.
			if use != nil {
				if rerr := s.points.refundUse(ctx, use); rerr != nil {
					s.log.WithFields(logrus.Fields{
						"reservation_id": res.ID,
						"error":          rerr,
					}).Error("settlement: point backout failed")
				}
			}
			return nil, err
		}
	}
	if err := s.reservations.UpdateStatus(ctx, res.ID, []string{model.StatusPending}, model.StatusConfirmed); err != nil {
		return nil, err
	}
	res.Status = model.StatusConfirmed
	return res, nil
}

// settlePaid is the gateway path.  Any failure before the charge is
// verified forces the reservation to cancelled; after verification
// the reservation is confirmed no matter what the ledgers do.
func (s *BookingService) settlePaid(ctx context.Context, res *model.Reservation, course *model.Course, payable, usePoints int64, grant *model.CouponGrant) (*model.Reservation, error) {
	name := "guest"
	if res.UserID != nil {
		if n, err := s.users.Nickname(ctx, *res.UserID); err == nil {
			name = n
		}
	}
	orderID := fmt.Sprintf("rsv-%d", res.ID)
	meta := payment.OrderMeta{
		OrderID:      orderID,
		CustomerName: name,
		ProductName:  course.Name,
	}

	result, err := s.gateway.Request(ctx, payable, meta)
	if err != nil {
		s.forceCancel(ctx, res, "payment request failed")
		return nil, &ExternalServiceError{Service: "payment", Err: err}
	}
	if result.Cancelled {
		s.forceCancel(ctx, res, "payment cancelled by user")
		return nil, ErrPaymentCancelled
	}
	if err := s.gateway.Verify(ctx, result.PaymentID, orderID, payable); err != nil {
		s.forceCancel(ctx, res, "payment verification failed")
		return nil, &ExternalServiceError{Service: "payment", Err: err}
	}

	if err := s.reservations.UpdateStatus(ctx, res.ID, []string{model.StatusPending}, model.StatusConfirmed); err != nil {
		return nil, err
	}
	res.Status = model.StatusConfirmed

	// The charge is real from here on; ledger deductions no longer
	// unwind the reservation.
	if usePoints > 0 {
		if _, err := s.points.Consume(ctx, *res.UserID, usePoints, &res.ID); err != nil {
			s.log.WithFields(logrus.Fields{
				"reservation_id": res.ID,
				"use_points":     usePoints,
				"error":          err,
			}).Error("settlement: point consume failed after payment, staying confirmed")
		}
	}
	if grant != nil {
		if err := s.coupons.Apply(ctx, *res.UserID, grant.ID, res.ID); err != nil {
			s.log.WithFields(logrus.Fields{
				"reservation_id": res.ID,
				"grant_id":       grant.ID,
				"error":          err,
			}).Error("settlement: coupon apply failed after payment, staying confirmed")
		}
	}
	return res, nil
}

// forceCancel pushes a pending reservation to cancelled after a
// payment failure.  Nothing else needs compensating: ledger ops only
// run after a verified charge.
func (s *BookingService) forceCancel(ctx context.Context, res *model.Reservation, cause string) {
	if err := s.reservations.UpdateStatus(ctx, res.ID, []string{model.StatusPending}, model.StatusCancelled); err != nil {
		s.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"cause":          cause,
			"error":          err,
		}).Error("failed to force-cancel reservation")
		return
	}
	res.Status = model.StatusCancelled
}

// Cancel moves an active reservation to cancelled.  Refunding spent
// points and restoring an applied coupon happen first and
// independently; their failures are logged, never propagated, and
// never block the status change.  Cancelling within one hour of the
// slot costs the user a credit penalty.
func (s *BookingService) Cancel(ctx context.Context, callerID *uint64, reservationID uint64) error {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if err := checkOwnership(res, callerID); err != nil {
		return err
	}
	if !res.IsActive() {
		return ErrInvalidStatus
	}

	s.comp.OnCancellation(ctx, res)

	if err := s.reservations.UpdateStatus(ctx, res.ID, model.ActiveStatuses, model.StatusCancelled); err != nil {
		return err
	}
	res.Status = model.StatusCancelled

	if res.UserID != nil {
		until := res.ScheduledAt().Sub(s.now().UTC())
		if until > 0 && until < time.Hour {
			if _, err := s.credit.PenalizeLateCancellation(ctx, *res.UserID, res.ID); err != nil {
				s.log.WithFields(logrus.Fields{
					"reservation_id": res.ID,
					"user_id":        *res.UserID,
					"error":          err,
				}).Error("late-cancellation penalty failed")
			}
		}
	}
	return nil
}

// Reschedule moves an active reservation to a new slot in place, so
// ledger back-references keep pointing at the same reservation.  The
// status resets to pending; the unique slot index decides a race for
// the target slot.
func (s *BookingService) Reschedule(ctx context.Context, callerID *uint64, reservationID uint64, newDate, newTime string) (*model.Reservation, error) {
	if !validDate(newDate) {
		return nil, NewValidationError("invalid date %q, want YYYY-MM-DD", newDate)
	}
	if !validSlot(newTime) {
		return nil, NewValidationError("invalid time slot %q", newTime)
	}
	scheduled, _ := time.Parse("2006-01-02 15:04", newDate+" "+newTime)
	if scheduled.Before(s.now().UTC()) {
		return nil, ErrPastDate
	}
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(res, callerID); err != nil {
		return nil, err
	}
	if !res.IsActive() {
		return nil, ErrInvalidStatus
	}
	taken, err := s.reservations.HasActiveAt(ctx, res.ShopID, newDate, newTime, res.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repository.ErrSlotTaken
	}
	if err := s.reservations.Reschedule(ctx, res.ID, newDate, newTime); err != nil {
		return nil, err
	}
	res.Date = newDate
	res.Time = newTime
	res.Status = model.StatusPending
	return res, nil
}

// Complete marks a confirmed reservation as completed, one-way.  The
// visit pays the customer back: points on the amount actually charged
// and a small credit reward.  Both rewards are best-effort; the
// completion itself never fails because of them.
func (s *BookingService) Complete(ctx context.Context, reservationID uint64) error {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if err := s.reservations.UpdateStatus(ctx, res.ID, []string{model.StatusConfirmed}, model.StatusCompleted); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidStatus
		}
		return err
	}
	res.Status = model.StatusCompleted

	if res.UserID == nil {
		return nil
	}
	charged, err := s.chargedAmount(ctx, res)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"error":          err,
		}).Error("completion: charged-amount derivation failed, skipping point earn")
	} else if earn := int64(math.Floor(float64(charged) * model.PointEarnRate)); earn > 0 {
		if _, err := s.points.Earn(ctx, *res.UserID, earn, &res.ID, "points earned for completed visit"); err != nil {
			s.log.WithFields(logrus.Fields{
				"reservation_id": res.ID,
				"user_id":        *res.UserID,
				"amount":         earn,
				"error":          err,
			}).Error("completion: point earn failed")
		}
	}
	if _, err := s.credit.CreditVisit(ctx, *res.UserID, res.ID); err != nil {
		s.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"user_id":        *res.UserID,
			"error":          err,
		}).Error("completion: visit credit failed")
	}
	return nil
}

// chargedAmount re-derives what the customer actually paid for a
// reservation from the ledgers: course price minus spent points minus
// the applied coupon's discount.
func (s *BookingService) chargedAmount(ctx context.Context, res *model.Reservation) (int64, error) {
	course, err := s.catalog.GetCourse(ctx, res.CourseID)
	if err != nil {
		return 0, err
	}
	charged := course.Price

	if res.UserID != nil {
		spent, err := s.points.SpentOnReservation(ctx, *res.UserID, res.ID)
		if err != nil {
			return 0, err
		}
		charged -= spent
	}

	grant, err := s.coupons.UsedGrant(ctx, res.ID)
	if err == nil {
		coupon, cerr := s.coupons.GetCoupon(ctx, grant.CouponID)
		if cerr != nil {
			return 0, cerr
		}
		charged -= CalculateDiscount(coupon, course.Price)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}

	if charged < 0 {
		charged = 0
	}
	return charged, nil
}

// ListByUser returns the user's reservations, newest first.
func (s *BookingService) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// Get returns a reservation the caller is allowed to see.
func (s *BookingService) Get(ctx context.Context, callerID *uint64, reservationID uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(res, callerID); err != nil {
		return nil, err
	}
	return res, nil
}

// checkOwnership rejects callers acting on someone else's
// reservation.  Guest reservations carry no owner and pass.
func checkOwnership(res *model.Reservation, callerID *uint64) error {
	if res.UserID == nil {
		return nil
	}
	if callerID == nil || *callerID != *res.UserID {
		return repository.ErrForbidden
	}
	return nil
}
