package service

// In-memory fakes of the store interfaces.  They mirror the semantics
// of the MySQL repositories closely enough for business-rule tests:
// conditional updates, unique constraints, and sentinel errors behave
// the same way.

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/payment"
	"github.com/dayeon/shop-reservation/internal/queue"
	"github.com/dayeon/shop-reservation/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ---------------------------------------------------------------------------
// reservations

type fakeReservations struct {
	mu    sync.Mutex
	seq   uint64
	items map[uint64]*model.Reservation

	createErr error
	updateErr error
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{items: map[uint64]*model.Reservation{}}
}

func (f *fakeReservations) activeAt(shopID uint64, date, t string, excludeID uint64) bool {
	for _, r := range f.items {
		if r.ID != excludeID && r.ShopID == shopID && r.Date == date && r.Time == t && r.IsActive() {
			return true
		}
	}
	return false
}

func (f *fakeReservations) Create(_ context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.activeAt(res.ShopID, res.Date, res.Time, 0) {
		return repository.ErrSlotTaken
	}
	f.seq++
	res.ID = f.seq
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	f.items[res.ID] = &cp
	return nil
}

func (f *fakeReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservations) BookedTimes(_ context.Context, shopID uint64, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.items {
		if r.ShopID == shopID && r.Date == date && r.IsActive() {
			out = append(out, r.Time)
		}
	}
	return out, nil
}

func (f *fakeReservations) UpdateStatus(_ context.Context, id uint64, from []string, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	r, ok := f.items[id]
	if !ok {
		return repository.ErrConflict
	}
	for _, s := range from {
		if r.Status == s {
			r.Status = to
			r.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return repository.ErrConflict
}

func (f *fakeReservations) Reschedule(_ context.Context, id uint64, newDate, newTime string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || !r.IsActive() {
		return repository.ErrConflict
	}
	if f.activeAt(r.ShopID, newDate, newTime, id) {
		return repository.ErrSlotTaken
	}
	r.Date, r.Time, r.Status = newDate, newTime, model.StatusPending
	return nil
}

func (f *fakeReservations) HasActiveAt(_ context.Context, shopID uint64, date, t string, excludeID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeAt(shopID, date, t, excludeID), nil
}

func (f *fakeReservations) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.items {
		if r.UserID != nil && *r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// points

type fakePoints struct {
	mu     sync.Mutex
	seq    uint64
	events []model.PointEvent

	appendErr error
}

func newFakePoints() *fakePoints { return &fakePoints{} }

func (f *fakePoints) Append(_ context.Context, e *model.PointEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	if e.SourceEventID != nil {
		for _, have := range f.events {
			if have.SourceEventID != nil && *have.SourceEventID == *e.SourceEventID {
				return repository.ErrConflict
			}
		}
	}
	f.seq++
	e.ID = f.seq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakePoints) ListByUser(_ context.Context, userID uint64) ([]model.PointEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PointEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakePoints) History(ctx context.Context, userID uint64, page, limit int) ([]model.PointEvent, bool, error) {
	all, err := f.ListByUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, false, nil
	}
	end := start + limit
	hasMore := end < len(all)
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], hasMore, nil
}

func (f *fakePoints) UsesByReservation(_ context.Context, userID, reservationID uint64) ([]model.PointEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PointEvent
	for _, e := range f.events {
		if e.UserID == userID && e.Type == model.PointUse && e.ReservationID != nil && *e.ReservationID == reservationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakePoints) HasRefundForUse(_ context.Context, useEventID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.Type == model.PointRefund && e.SourceEventID != nil && *e.SourceEventID == useEventID {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// coupons

type fakeCoupons struct {
	mu      sync.Mutex
	seq     uint64
	coupons map[uint64]*model.Coupon
	grants  map[uint64]*model.CouponGrant

	applyErr error
}

func newFakeCoupons() *fakeCoupons {
	return &fakeCoupons{coupons: map[uint64]*model.Coupon{}, grants: map[uint64]*model.CouponGrant{}}
}

func (f *fakeCoupons) addCoupon(c *model.Coupon) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coupons[c.ID] = c
}

func (f *fakeCoupons) GetCoupon(_ context.Context, id uint64) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) GrantExists(_ context.Context, userID, couponID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.UserID == userID && g.CouponID == couponID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCoupons) ReserveQuota(_ context.Context, couponID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[couponID]
	if !ok || !c.IsActive {
		return repository.ErrSoldOut
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return repository.ErrSoldOut
	}
	c.UsedCount++
	return nil
}

func (f *fakeCoupons) ReleaseQuota(_ context.Context, couponID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.coupons[couponID]; ok && c.UsedCount > 0 {
		c.UsedCount--
	}
	return nil
}

func (f *fakeCoupons) InsertGrant(_ context.Context, userID, couponID uint64) (*model.CouponGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.UserID == userID && g.CouponID == couponID {
			return nil, repository.ErrAlreadyDownloaded
		}
	}
	f.seq++
	g := &model.CouponGrant{ID: f.seq, UserID: userID, CouponID: couponID, CreatedAt: time.Now().UTC()}
	f.grants[g.ID] = g
	cp := *g
	return &cp, nil
}

func (f *fakeCoupons) GetGrant(_ context.Context, grantID uint64) (*model.CouponGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[grantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeCoupons) ApplicableGrants(_ context.Context, userID, shopID uint64, price int64, now time.Time) ([]model.CouponGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CouponGrant
	for _, g := range f.grants {
		if g.UserID != userID || g.Used() {
			continue
		}
		c, ok := f.coupons[g.CouponID]
		if !ok || c.ShopID != shopID || !c.IsActive || c.MinPrice > price || c.ValidUntil.Before(now) {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (f *fakeCoupons) ApplyGrant(_ context.Context, grantID, reservationID uint64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	g, ok := f.grants[grantID]
	if !ok {
		return repository.ErrNotFound
	}
	if g.UsedAt != nil {
		return repository.ErrCouponUsed
	}
	g.UsedAt = ptr(now)
	g.ReservationID = ptr(reservationID)
	return nil
}

func (f *fakeCoupons) RestoreGrant(_ context.Context, grantID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.grants[grantID]; ok {
		g.UsedAt = nil
		g.ReservationID = nil
	}
	return nil
}

func (f *fakeCoupons) UsedGrantForReservation(_ context.Context, reservationID uint64) (*model.CouponGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.ReservationID != nil && *g.ReservationID == reservationID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ---------------------------------------------------------------------------
// credit

type fakeCredits struct {
	mu     sync.Mutex
	seq    uint64
	events []model.CreditEvent
}

func newFakeCredits() *fakeCredits { return &fakeCredits{} }

func sameRef(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeCredits) Append(_ context.Context, e *model.CreditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, have := range f.events {
		if have.UserID == e.UserID && have.Reason == e.Reason && sameRef(have.ReferenceID, e.ReferenceID) {
			return repository.ErrConflict
		}
	}
	f.seq++
	e.ID = f.seq
	e.CreatedAt = time.Now().UTC()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeCredits) HasEvent(_ context.Context, userID uint64, reason string, referenceID *uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.UserID == userID && e.Reason == reason && sameRef(e.ReferenceID, referenceID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCredits) TotalDelta(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, e := range f.events {
		if e.UserID == userID {
			total += e.Delta
		}
	}
	return total, nil
}

func (f *fakeCredits) ListByUser(_ context.Context, userID uint64, limit int) ([]model.CreditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CreditEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// blacklist, catalog, users

type fakeBlacklist struct {
	mu      sync.Mutex
	entries map[string]model.BlacklistEntry

	existsErr error
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: map[string]model.BlacklistEntry{}}
}

func (f *fakeBlacklist) Exists(_ context.Context, identityKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.entries[identityKey]
	return ok, nil
}

func (f *fakeBlacklist) Insert(_ context.Context, e *model.BlacklistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[e.IdentityKey]; ok {
		return nil // duplicate is success, the desired end state holds
	}
	f.entries[e.IdentityKey] = *e
	return nil
}

type fakeCatalog struct {
	shops   map[uint64]*model.Shop
	courses map[uint64]*model.Course
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{shops: map[uint64]*model.Shop{}, courses: map[uint64]*model.Course{}}
}

func (f *fakeCatalog) GetShop(_ context.Context, id uint64) (*model.Shop, error) {
	s, ok := f.shops[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeCatalog) GetCourse(_ context.Context, id uint64) (*model.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

type fakeUsers struct {
	nicknames map[uint64]string
	identity  map[uint64]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nicknames: map[uint64]string{}, identity: map[uint64]string{}}
}

func (f *fakeUsers) Nickname(_ context.Context, userID uint64) (string, error) {
	if n, ok := f.nicknames[userID]; ok {
		return n, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeUsers) IdentityKey(_ context.Context, userID uint64) (string, error) {
	if k, ok := f.identity[userID]; ok {
		return k, nil
	}
	return "", repository.ErrNotFound
}

// ---------------------------------------------------------------------------
// gateway, notifier

type fakeGateway struct {
	requestCalls int
	verifyCalls  int

	requestErr error
	cancelled  bool
	verifyErr  error
}

func (g *fakeGateway) Request(_ context.Context, amount int64, meta payment.OrderMeta) (*payment.RequestResult, error) {
	g.requestCalls++
	if g.requestErr != nil {
		return nil, g.requestErr
	}
	if g.cancelled {
		return &payment.RequestResult{PaymentID: "pay-1", Cancelled: true, Code: "USER_CANCEL"}, nil
	}
	return &payment.RequestResult{PaymentID: "pay-1", Code: "OK"}, nil
}

func (g *fakeGateway) Verify(_ context.Context, paymentID, orderID string, expectedAmount int64) error {
	g.verifyCalls++
	return g.verifyErr
}

type fakeNotifier struct {
	events []queue.ReservationCreatedEvent
	err    error
}

func (n *fakeNotifier) PublishReservationCreated(_ context.Context, ev queue.ReservationCreatedEvent) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}
