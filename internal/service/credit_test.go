package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayeon/shop-reservation/internal/model"
)

func newTestCredit() (*CreditService, *fakeCredits, *fakeBlacklist, *fakeUsers) {
	credits := newFakeCredits()
	blacklist := newFakeBlacklist()
	users := newFakeUsers()
	users.identity[1] = "di-user-1"
	svc := NewCreditService(credits, blacklist, users, testLogger())
	return svc, credits, blacklist, users
}

func TestCredit_LateCancellationIdempotent(t *testing.T) {
	// GIVEN: a late-cancellation penalty already applied for a reservation
	// WHEN: the cancellation is retried
	// THEN: the penalty is not applied twice

	svc, credits, _, _ := newTestCredit()
	ctx := context.Background()

	res, err := svc.PenalizeLateCancellation(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(90), res.Score)

	res, err = svc.PenalizeLateCancellation(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(90), res.Score)
	assert.Len(t, credits.events, 1)
}

func TestCredit_ScoreClampedToRange(t *testing.T) {
	// GIVEN: visits beyond the maximum and penalties beyond the minimum
	// THEN: the derived score never leaves [0, 100]

	svc, _, _, _ := newTestCredit()
	ctx := context.Background()

	res, err := svc.CreditVisit(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(model.CreditScoreMax), res.Score, "score starts at the cap")

	for i := uint64(0); i < 3; i++ {
		_, err := svc.PenalizeReport(ctx, 1, i+100)
		require.NoError(t, err)
	}
	score, err := svc.Score(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(model.CreditScoreMin), score)
}

func TestCredit_BlacklistTriggeredAtZero(t *testing.T) {
	// GIVEN: a user one upheld report away from zero
	// WHEN: the second report lands
	// THEN: the identity goes on the blacklist and the result says so

	svc, _, blacklist, _ := newTestCredit()
	ctx := context.Background()

	res, err := svc.PenalizeReport(ctx, 1, 100)
	require.NoError(t, err)
	assert.False(t, res.Blacklisted)

	res, err = svc.PenalizeReport(ctx, 1, 101)
	require.NoError(t, err)
	assert.True(t, res.Blacklisted)

	blocked, err := blacklist.Exists(ctx, "di-user-1")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.True(t, svc.IsBlacklisted(ctx, 1))
}

func TestCredit_BlacklistInsertIdempotent(t *testing.T) {
	// GIVEN: an already-blacklisted identity
	// WHEN: another depleting delta arrives for a different cause
	// THEN: the duplicate insert is still a success

	svc, _, blacklist, _ := newTestCredit()
	ctx := context.Background()

	_, err := svc.PenalizeReport(ctx, 1, 100)
	require.NoError(t, err)
	_, err = svc.PenalizeReport(ctx, 1, 101)
	require.NoError(t, err)

	res, err := svc.PenalizeNoShow(ctx, 1, 55)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Len(t, blacklist.entries, 1)
}

func TestCredit_CheckFailsOpen(t *testing.T) {
	// GIVEN: the blacklist store erroring out
	// WHEN: checking a user
	// THEN: treated as not blacklisted; availability wins

	svc, _, blacklist, _ := newTestCredit()
	blacklist.existsErr = errors.New("store down")

	assert.False(t, svc.IsBlacklisted(context.Background(), 1))
}

func TestCredit_NoIdentity_NotBlacklisted(t *testing.T) {
	// GIVEN: a user without a verified identity on file
	// THEN: no blacklist entry can exist for them and checks pass

	svc, _, _, _ := newTestCredit()
	ctx := context.Background()

	assert.False(t, svc.IsBlacklisted(ctx, 99))

	// Depleting the score logs and skips the blacklist insert.
	_, err := svc.PenalizeReport(ctx, 99, 1)
	require.NoError(t, err)
	res, err := svc.PenalizeReport(ctx, 99, 2)
	require.NoError(t, err)
	assert.False(t, res.Blacklisted)
}
