package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/repository"
)

// PointService implements the loyalty point ledger.  Every operation
// appends events; the available balance is always a fold over the
// user's history so concurrent writers never race on a shared total.
type PointService struct {
	points PointStore
	log    *logrus.Logger
	now    func() time.Time
}

// NewPointService constructs a PointService.
func NewPointService(points PointStore, log *logrus.Logger) *PointService {
	return &PointService{points: points, log: log, now: time.Now}
}

// Earn appends an earn event.  Earned points expire twelve months
// after the grant.
func (s *PointService) Earn(ctx context.Context, userID uint64, amount int64, reservationID *uint64, desc string) (*model.PointEvent, error) {
	if amount <= 0 {
		return nil, NewValidationError("earn amount must be positive, got %d", amount)
	}
	exp := s.now().UTC().AddDate(0, model.PointExpiryMonths, 0)
	e := &model.PointEvent{
		UserID:        userID,
		Amount:        amount,
		Type:          model.PointEarn,
		Description:   desc,
		ReservationID: reservationID,
		ExpiresAt:     &exp,
	}
	if err := s.points.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Bonus appends a bonus grant.  Promotions and the reward generator
// call this; it behaves like Earn, including the twelve-month expiry.
func (s *PointService) Bonus(ctx context.Context, userID uint64, amount int64, desc string) (*model.PointEvent, error) {
	if amount <= 0 {
		return nil, NewValidationError("bonus amount must be positive, got %d", amount)
	}
	exp := s.now().UTC().AddDate(0, model.PointExpiryMonths, 0)
	e := &model.PointEvent{
		UserID:      userID,
		Amount:      amount,
		Type:        model.PointBonus,
		Description: desc,
		ExpiresAt:   &exp,
	}
	if err := s.points.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Consume spends points against a reservation and returns the use
// event it appended, so callers can reverse exactly that deduction.
// The balance check and the append are two separate steps, not one
// atomic unit; the check is advisory and a concurrent spender can
// still win the race.
func (s *PointService) Consume(ctx context.Context, userID uint64, amount int64, reservationID *uint64) (*model.PointEvent, error) {
	if amount <= 0 {
		return nil, NewValidationError("consume amount must be positive, got %d", amount)
	}
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bal < amount {
		return nil, ErrInsufficientBalance
	}
	e := &model.PointEvent{
		UserID:        userID,
		Amount:        -amount,
		Type:          model.PointUse,
		Description:   "points used for reservation",
		ReservationID: reservationID,
	}
	if err := s.points.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// refundUse reverses a single use event at most once.  The refund
// carries the use event's ID as its source; together with the unique
// index on source_event_id, a retried or concurrent refund of the same
// deduction collapses into one row.
func (s *PointService) refundUse(ctx context.Context, use *model.PointEvent) error {
	done, err := s.points.HasRefundForUse(ctx, use.ID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	src := use.ID
	e := &model.PointEvent{
		UserID:        use.UserID,
		Amount:        -use.Amount,
		Type:          model.PointRefund,
		Description:   "points refunded",
		ReservationID: use.ReservationID,
		SourceEventID: &src,
	}
	err = s.points.Append(ctx, e)
	if errors.Is(err, repository.ErrConflict) {
		// A concurrent refund of the same use event won.
		return nil
	}
	return err
}

// Refund returns the points still spent on a reservation.  A refund
// must never block a cancellation: with no outstanding use events it
// is a no-op success, and when the requested amount disagrees with
// what is actually outstanding the ledger wins and the mismatch is
// logged.
func (s *PointService) Refund(ctx context.Context, userID uint64, amount int64, reservationID uint64) error {
	uses, err := s.points.UsesByReservation(ctx, userID, reservationID)
	if err != nil {
		return err
	}
	var pending []*model.PointEvent
	var outstanding int64
	for i := range uses {
		done, err := s.points.HasRefundForUse(ctx, uses[i].ID)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		pending = append(pending, &uses[i])
		outstanding += -uses[i].Amount
	}
	if len(pending) == 0 {
		return nil
	}
	if amount != outstanding {
		s.log.WithFields(logrus.Fields{
			"user_id":        userID,
			"reservation_id": reservationID,
			"requested":      amount,
			"outstanding":    outstanding,
		}).Warn("point refund amount mismatch, refunding the outstanding amount")
	}
	for _, use := range pending {
		if err := s.refundUse(ctx, use); err != nil {
			return err
		}
	}
	return nil
}

// SpentOnReservation returns how many points are currently spent on a
// reservation: use events minus the refunds that already reversed
// them.
func (s *PointService) SpentOnReservation(ctx context.Context, userID, reservationID uint64) (int64, error) {
	uses, err := s.points.UsesByReservation(ctx, userID, reservationID)
	if err != nil {
		return 0, err
	}
	var spent int64
	for i := range uses {
		done, err := s.points.HasRefundForUse(ctx, uses[i].ID)
		if err != nil {
			return 0, err
		}
		if done {
			continue
		}
		spent += -uses[i].Amount
	}
	return spent, nil
}

// RefundForReservation refunds exactly what is still spent on the
// reservation, whatever that is.  Cancellation flows call this when
// they do not know the original amount.
func (s *PointService) RefundForReservation(ctx context.Context, userID, reservationID uint64) error {
	uses, err := s.points.UsesByReservation(ctx, userID, reservationID)
	if err != nil {
		return err
	}
	for i := range uses {
		if err := s.refundUse(ctx, &uses[i]); err != nil {
			return err
		}
	}
	return nil
}

// Expire appends expire events for every earn and bonus grant that
// has passed its expiry and has not been offset yet.  Each expire
// event carries the grant's ID as its source, which is what makes a
// retried run a no-op.  Returns the number of grants expired.
func (s *PointService) Expire(ctx context.Context, userID uint64) (int, error) {
	events, err := s.points.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	offset := make(map[uint64]struct{})
	for i := range events {
		if events[i].Type == model.PointExpire && events[i].SourceEventID != nil {
			offset[*events[i].SourceEventID] = struct{}{}
		}
	}
	now := s.now().UTC()
	expired := 0
	for i := range events {
		e := &events[i]
		if e.Type != model.PointEarn && e.Type != model.PointBonus {
			continue
		}
		if !e.ExpiredAt(now) {
			continue
		}
		if _, done := offset[e.ID]; done {
			continue
		}
		src := e.ID
		exp := &model.PointEvent{
			UserID:        userID,
			Amount:        -e.Amount,
			Type:          model.PointExpire,
			Description:   "points expired",
			SourceEventID: &src,
		}
		if err := s.points.Append(ctx, exp); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// A concurrent sweep offset this grant first.
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// Balance folds the user's ledger into the available balance: credits
// count while unexpired, uses subtract, and the result never goes
// below zero.  Expire events are audit records; the credit they offset
// already stopped counting at its expiry timestamp.
func (s *PointService) Balance(ctx context.Context, userID uint64) (int64, error) {
	events, err := s.points.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	var bal int64
	for i := range events {
		e := &events[i]
		switch {
		case e.IsCredit():
			if !e.ExpiredAt(now) {
				bal += e.Amount
			}
		case e.Type == model.PointUse:
			bal += e.Amount
		}
	}
	if bal < 0 {
		bal = 0
	}
	return bal, nil
}

// History returns one page of the user's ledger, newest first, plus a
// flag telling whether more pages follow.
func (s *PointService) History(ctx context.Context, userID uint64, page, limit int) ([]model.PointEvent, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.points.History(ctx, userID, page, limit)
}
