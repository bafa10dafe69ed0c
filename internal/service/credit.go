package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/repository"
)

// CreditService maintains the trust score ledger and the blacklist it
// feeds.  Scores start at the default and are derived by folding the
// user's credit events, clamped to the allowed range.
type CreditService struct {
	credits   CreditStore
	blacklist BlacklistStore
	users     UserStore
	log       *logrus.Logger
}

// NewCreditService constructs a CreditService.
func NewCreditService(credits CreditStore, blacklist BlacklistStore, users UserStore, log *logrus.Logger) *CreditService {
	return &CreditService{credits: credits, blacklist: blacklist, users: users, log: log}
}

// DeltaResult reports what a delta application did.
type DeltaResult struct {
	Applied     bool  // false when the same cause was already recorded
	Score       int64 // score after the fold, clamped
	Blacklisted bool  // true when this delta pushed the user onto the blacklist
}

// ApplyDelta records a score change for a cause, at most once per
// (user, reason, reference) triple.  After any applied delta, a score
// at or below the minimum puts the user's identity on the blacklist.
func (s *CreditService) ApplyDelta(ctx context.Context, userID uint64, delta int64, reason string, referenceID *uint64) (*DeltaResult, error) {
	seen, err := s.credits.HasEvent(ctx, userID, reason, referenceID)
	if err != nil {
		return nil, err
	}
	if !seen {
		e := &model.CreditEvent{
			UserID:      userID,
			Delta:       delta,
			Reason:      reason,
			ReferenceID: referenceID,
		}
		err = s.credits.Append(ctx, e)
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent retry appended the same cause first.
			seen = true
		} else if err != nil {
			return nil, err
		}
	}
	score, err := s.Score(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := &DeltaResult{Applied: !seen, Score: score}
	if res.Applied && score <= model.CreditScoreMin {
		res.Blacklisted = s.addToBlacklist(ctx, userID, reason)
	}
	return res, nil
}

// addToBlacklist records the user's identity on the blacklist.  The
// insert is idempotent; a user without a verified identity cannot be
// blocked, which is logged and skipped.
func (s *CreditService) addToBlacklist(ctx context.Context, userID uint64, reason string) bool {
	key, err := s.users.IdentityKey(ctx, userID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Warn("credit score hit zero but no identity key to blacklist")
		return false
	}
	entry := &model.BlacklistEntry{
		IdentityKey: key,
		Reason:      "credit score depleted: " + reason,
		BlockedAt:   time.Now().UTC(),
	}
	if err := s.blacklist.Insert(ctx, entry); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Error("failed to insert blacklist entry")
		return false
	}
	return true
}

// Score folds the user's credit events onto the default score and
// clamps the result.
func (s *CreditService) Score(ctx context.Context, userID uint64) (int64, error) {
	total, err := s.credits.TotalDelta(ctx, userID)
	if err != nil {
		return 0, err
	}
	score := int64(model.CreditScoreDefault) + total
	if score < model.CreditScoreMin {
		score = model.CreditScoreMin
	}
	if score > model.CreditScoreMax {
		score = model.CreditScoreMax
	}
	return score, nil
}

// Recent returns the user's latest credit events, newest first.
func (s *CreditService) Recent(ctx context.Context, userID uint64, limit int) ([]model.CreditEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.credits.ListByUser(ctx, userID, limit)
}

// PenalizeLateCancellation applies the late-cancellation penalty for a
// reservation.  Retrying the cancellation does not double-apply.
func (s *CreditService) PenalizeLateCancellation(ctx context.Context, userID, reservationID uint64) (*DeltaResult, error) {
	return s.ApplyDelta(ctx, userID, model.CreditDeltaLateCancellation, model.CreditReasonLateCancellation, &reservationID)
}

// PenalizeNoShow applies the no-show penalty for a reservation.
func (s *CreditService) PenalizeNoShow(ctx context.Context, userID, reservationID uint64) (*DeltaResult, error) {
	return s.ApplyDelta(ctx, userID, model.CreditDeltaNoShow, model.CreditReasonNoShow, &reservationID)
}

// PenalizeReport applies the penalty for an upheld report against the
// user.
func (s *CreditService) PenalizeReport(ctx context.Context, userID, reportID uint64) (*DeltaResult, error) {
	return s.ApplyDelta(ctx, userID, model.CreditDeltaReport, model.CreditReasonReport, &reportID)
}

// CreditVisit rewards a completed visit.
func (s *CreditService) CreditVisit(ctx context.Context, userID, reservationID uint64) (*DeltaResult, error) {
	return s.ApplyDelta(ctx, userID, model.CreditDeltaVisit, model.CreditReasonVisit, &reservationID)
}

// IsBlacklisted reports whether the user's identity is blocked.  The
// check fails open: any storage or lookup error is logged and treated
// as not blacklisted, favoring availability over strict enforcement.
func (s *CreditService) IsBlacklisted(ctx context.Context, userID uint64) bool {
	key, err := s.users.IdentityKey(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Warn("blacklist check failed open: identity lookup")
		return false
	}
	blocked, err := s.blacklist.Exists(ctx, key)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Warn("blacklist check failed open: lookup error")
		return false
	}
	return blocked
}
