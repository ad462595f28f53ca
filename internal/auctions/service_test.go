package auctions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/auction-engine/internal/notifications"
	"github.com/angelmondragon/auction-engine/internal/settlement"
	"github.com/angelmondragon/auction-engine/pkg/db/dbtest"
	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
	"github.com/angelmondragon/auction-engine/pkg/metrics"
	"github.com/angelmondragon/auction-engine/pkg/outbox"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(event notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() notifications.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	svc      Service
	conn     *gorm.DB
	clock    *testClock
	events   *recordingPublisher
	registry *prometheus.Registry
}

func newFixture(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	clock := &testClock{now: t0}
	events := &recordingPublisher{}
	registry := prometheus.NewRegistry()
	auctionMetrics := metrics.NewAuctionMetrics(registry)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)

	settler, err := settlement.NewService(settlement.ServiceParams{
		Repo:    settlement.NewRepository(conn),
		DB:      client,
		Outbox:  outboxSvc,
		Metrics: auctionMetrics,
		Now:     clock.Now,
	})
	require.NoError(t, err)

	var repo Repository = NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		DB:      client,
		Settler: settler,
		Outbox:  outboxSvc,
		Events:  events,
		Metrics: auctionMetrics,
		Now:     clock.Now,
	})
	require.NoError(t, err)

	return &fixture{svc: svc, conn: conn, clock: clock, events: events, registry: registry}
}

func (f *fixture) seed(t *testing.T, mutate func(*models.Auction)) *models.Auction {
	t.Helper()
	auction := &models.Auction{
		ID:              uuid.New(),
		ProductID:       uuid.New(),
		VendorID:        uuid.New(),
		Status:          enums.AuctionStatusActive,
		StartTime:       t0.Add(-time.Hour),
		EndTime:         t0.Add(time.Hour),
		StartingBid:     decimal.NewFromInt(10),
		MinBidIncrement: decimal.NewFromInt(1),
	}
	if mutate != nil {
		mutate(auction)
	}
	require.NoError(t, f.conn.Create(auction).Error)
	return auction
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Auction {
	t.Helper()
	var auction models.Auction
	require.NoError(t, f.conn.First(&auction, "id = ?", id).Error)
	return &auction
}

func (f *fixture) settlementFor(t *testing.T, id uuid.UUID) *models.AuctionSettlement {
	t.Helper()
	var rows []models.AuctionSettlement
	require.NoError(t, f.conn.Where("auction_id = ?", id).Find(&rows).Error)
	require.LessOrEqual(t, len(rows), 1)
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

func (f *fixture) outboxCount(t *testing.T, id uuid.UUID, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", id, eventType).
		Count(&count).Error)
	return count
}

func (f *fixture) bid(auctionID, bidderID uuid.UUID, amount string) (*BidResult, error) {
	return f.svc.SubmitBid(context.Background(), SubmitBidInput{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.RequireFromString(amount),
	})
}

func admin() CommandInput {
	return CommandInput{ActorID: uuid.New(), ActorRole: enums.UserRoleAdmin}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
	return typed
}

func TestSubmitBidFirstBidFloor(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)

	_, err := f.bid(auction.ID, uuid.New(), "9")
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	details, ok := typed.Details().(BidFloorDetails)
	require.True(t, ok)
	assert.True(t, details.MinimumBid.Equal(decimal.NewFromInt(10)))

	bidder := uuid.New()
	result, err := f.bid(auction.ID, bidder, "10")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.CurrentBid.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, result.TotalBids)
	assert.Equal(t, bidder, result.HighestBidderID)
	assert.True(t, result.MinimumNextBid.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, int64(1), result.Version)
}

func TestSubmitBidLedgerIsMonotonic(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)

	for _, tc := range []struct {
		amount string
		ok     bool
	}{
		{"10", true},
		{"10.50", false},
		{"11", true},
		{"11.99", false},
		{"12", true},
		{"25.25", true},
		{"26", false},
	} {
		_, err := f.bid(auction.ID, uuid.New(), tc.amount)
		if tc.ok {
			require.NoError(t, err, tc.amount)
		} else {
			requireCode(t, err, pkgerrors.CodeValidation)
		}
	}

	page, err := f.svc.ListBids(context.Background(), auction.ID, 0, 50)
	require.NoError(t, err)
	require.Len(t, page.Bids, 4)
	for i := 1; i < len(page.Bids); i++ {
		prev, cur := page.Bids[i-1], page.Bids[i]
		assert.Equal(t, prev.SequenceNumber+1, cur.SequenceNumber)
		assert.True(t, cur.Amount.GreaterThanOrEqual(prev.Amount.Add(auction.MinBidIncrement)))
	}

	stored := f.reload(t, auction.ID)
	last := page.Bids[len(page.Bids)-1]
	assert.True(t, stored.CurrentBid.Decimal.Equal(last.Amount))
	assert.Equal(t, last.BidderID, *stored.HighestBidderID)
	assert.Equal(t, 4, stored.TotalBids)
	assert.Equal(t, int64(4), stored.Version)
}

// admissionBarrier holds the first n non-transactional reads until all of
// them arrived, so concurrent bids share the same admission snapshot.
type admissionBarrier struct {
	Repository
	mu        sync.Mutex
	remaining int
	release   chan struct{}
}

func newAdmissionBarrier(n int) func(Repository) Repository {
	return func(inner Repository) Repository {
		return &admissionBarrier{Repository: inner, remaining: n, release: make(chan struct{})}
	}
}

func (b *admissionBarrier) WithTx(tx *gorm.DB) Repository {
	return b.Repository.WithTx(tx)
}

func (b *admissionBarrier) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := b.Repository.FindByID(ctx, id)
	b.mu.Lock()
	if b.remaining == 0 {
		b.mu.Unlock()
		return auction, err
	}
	b.remaining--
	if b.remaining == 0 {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
	return auction, err
}

func TestSubmitBidConcurrentEqualBidsExactlyOneWins(t *testing.T) {
	f := newFixture(t, newAdmissionBarrier(2))
	auction := f.seed(t, nil)

	type outcome struct {
		result *BidResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.bid(auction.ID, uuid.New(), "15")
			outcomes <- outcome{result: result, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	accepted, conflicts := 0, 0
	for o := range outcomes {
		if o.err == nil {
			accepted++
			assert.True(t, o.result.CurrentBid.Equal(decimal.NewFromInt(15)))
			continue
		}
		typed := requireCode(t, o.err, pkgerrors.CodeConflict)
		details, ok := typed.Details().(ConflictDetails)
		require.True(t, ok)
		require.NotNil(t, details.CurrentBid)
		assert.True(t, details.CurrentBid.Equal(decimal.NewFromInt(15)))
		assert.Equal(t, 1, details.TotalBids)
		assert.True(t, details.MinimumBid.Equal(decimal.NewFromInt(16)))
		conflicts++
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, f.reload(t, auction.ID).TotalBids)
}

func TestSubmitBidStaleButUncontendedIsValidation(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)

	_, err := f.bid(auction.ID, uuid.New(), "10")
	require.NoError(t, err)

	_, err = f.bid(auction.ID, uuid.New(), "10")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSubmitBidVersionConflictReturnsFreshCurrentBid(t *testing.T) {
	f := newFixture(t, func(inner Repository) Repository {
		return &staleWriter{Repository: inner}
	})
	auction := f.seed(t, func(a *models.Auction) {
		bidder := uuid.New()
		a.CurrentBid = decimal.NewNullDecimal(decimal.NewFromInt(30))
		a.HighestBidderID = &bidder
		a.TotalBids = 3
		a.Version = 3
	})

	_, err := f.bid(auction.ID, uuid.New(), "40")
	typed := requireCode(t, err, pkgerrors.CodeConflict)
	details := typed.Details().(ConflictDetails)
	assert.True(t, details.CurrentBid.Equal(decimal.NewFromInt(30)))

	stored := f.reload(t, auction.ID)
	assert.Equal(t, 3, stored.TotalBids)
	assert.Equal(t, int64(3), stored.Version)
	page, err := f.svc.ListBids(context.Background(), auction.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Bids, "rolled back bid must not reach the ledger")
	assert.Empty(t, f.events.types())
}

// staleWriter behaves like an instance that lost the race to another writer.
type staleWriter struct {
	Repository
}

func (s *staleWriter) WithTx(tx *gorm.DB) Repository {
	return &staleWriter{Repository: s.Repository.WithTx(tx)}
}

func (s *staleWriter) CompareAndSwap(ctx context.Context, auction *models.Auction, expectedVersion int64) error {
	return s.Repository.CompareAndSwap(ctx, auction, expectedVersion-1)
}

// cancelledByPeer loses every compare-and-set to an instance that cancelled
// the auction; reads after the loss see the cancellation.
type cancelledByPeer struct {
	Repository
	lost *bool
}

func (c *cancelledByPeer) WithTx(tx *gorm.DB) Repository {
	return &cancelledByPeer{Repository: c.Repository.WithTx(tx), lost: c.lost}
}

func (c *cancelledByPeer) CompareAndSwap(context.Context, *models.Auction, int64) error {
	*c.lost = true
	return ErrVersionConflict
}

func (c *cancelledByPeer) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := c.Repository.FindByID(ctx, id)
	if err != nil || !*c.lost {
		return auction, err
	}
	cancelledAt := t0
	auction.Status = enums.AuctionStatusCancelled
	auction.CancelledAt = &cancelledAt
	auction.Version++
	return auction, nil
}

func TestSubmitBidLostToCancellationIsStateError(t *testing.T) {
	f := newFixture(t, func(inner Repository) Repository {
		return &cancelledByPeer{Repository: inner, lost: new(bool)}
	})
	auction := f.seed(t, nil)

	_, err := f.bid(auction.ID, uuid.New(), "40")
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, enums.AuctionStatusCancelled, typed.Details().(StateDetails).Status)
	assert.Empty(t, f.events.types())
}

func TestSubmitBidLostToClockCloseIsStateError(t *testing.T) {
	var f *fixture
	f = newFixture(t, func(inner Repository) Repository {
		return &closingWriter{Repository: inner, close: func() { f.clock.Set(t0.Add(2 * time.Hour)) }}
	})
	auction := f.seed(t, nil)

	_, err := f.bid(auction.ID, uuid.New(), "40")
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

// closingWriter loses the compare-and-set while the clock moves past the
// auction's end, as when another instance closed it on schedule.
type closingWriter struct {
	Repository
	close func()
}

func (c *closingWriter) WithTx(tx *gorm.DB) Repository {
	return &closingWriter{Repository: c.Repository.WithTx(tx), close: c.close}
}

func (c *closingWriter) CompareAndSwap(context.Context, *models.Auction, int64) error {
	c.close()
	return ErrVersionConflict
}

// flakyWriter loses *misses compare-and-sets, then writes through.
type flakyWriter struct {
	Repository
	misses *int
}

func (f *flakyWriter) WithTx(tx *gorm.DB) Repository {
	return &flakyWriter{Repository: f.Repository.WithTx(tx), misses: f.misses}
}

func (f *flakyWriter) CompareAndSwap(ctx context.Context, auction *models.Auction, expectedVersion int64) error {
	if *f.misses > 0 {
		*f.misses--
		return ErrVersionConflict
	}
	return f.Repository.CompareAndSwap(ctx, auction, expectedVersion)
}

func TestCommandRetriesAfterLostRace(t *testing.T) {
	misses := 1
	f := newFixture(t, func(inner Repository) Repository {
		return &flakyWriter{Repository: inner, misses: &misses}
	})
	auction := f.seed(t, nil)

	cmd := admin()
	cmd.AuctionID = auction.ID
	snapshot, err := f.svc.End(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusEnded, snapshot.Status)
	assert.Zero(t, misses)

	stored := f.reload(t, auction.ID)
	assert.Equal(t, enums.AuctionStatusEnded, stored.Status)
	require.NotNil(t, f.settlementFor(t, auction.ID))
}

func TestCommandGivesUpAfterRepeatedLostRaces(t *testing.T) {
	f := newFixture(t, func(inner Repository) Repository {
		return &staleWriter{Repository: inner}
	})
	auction := f.seed(t, nil)

	cmd := admin()
	cmd.AuctionID = auction.ID
	_, err := f.svc.Cancel(context.Background(), cmd)
	typed := requireCode(t, err, pkgerrors.CodeConflict)
	assert.NotContains(t, typed.Message(), "bid")
	assert.Nil(t, typed.Details())

	assert.Equal(t, enums.AuctionStatusActive, f.reload(t, auction.ID).Status)
}

func TestSubmitBidBuyNowEndsAuctionInSameStep(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, func(a *models.Auction) {
		a.BuyNowPrice = decimal.NewNullDecimal(decimal.NewFromInt(200))
	})

	buyer := uuid.New()
	result, err := f.bid(auction.ID, buyer, "200")
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusEnded, result.Status)

	_, err = f.bid(auction.ID, uuid.New(), "300")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	stored := f.reload(t, auction.ID)
	require.NotNil(t, stored.EndReason)
	assert.Equal(t, enums.AuctionEndReasonBuyNow, *stored.EndReason)
	assert.Equal(t, 1, stored.TotalBids)

	settled := f.settlementFor(t, auction.ID)
	require.NotNil(t, settled)
	assert.Equal(t, enums.SettlementOutcomeSold, settled.Outcome)
	assert.Equal(t, buyer, *settled.WinnerID)
	assert.Equal(t, int64(1), f.outboxCount(t, auction.ID, enums.EventAuctionSettlementRequested))

	assert.Equal(t, []notifications.EventType{
		notifications.EventBidAccepted,
		notifications.EventStatusChanged,
		notifications.EventEnded,
	}, f.events.types())
	ended := f.events.last()
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, buyer, *ended.WinnerID)
	assert.True(t, ended.WinningBid.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, stored.Version, ended.Version)
}

func TestSubmitBidRejectedAtEndTimeAndClosesAuction(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)
	_, err := f.bid(auction.ID, uuid.New(), "12")
	require.NoError(t, err)

	f.clock.Set(auction.EndTime)
	_, err = f.bid(auction.ID, uuid.New(), "20")
	typed := requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, enums.AuctionStatusEnded, typed.Details().(StateDetails).Status)

	stored := f.reload(t, auction.ID)
	assert.Equal(t, enums.AuctionStatusEnded, stored.Status)
	assert.Equal(t, enums.AuctionEndReasonTimeElapsed, *stored.EndReason)
	assert.True(t, stored.EndedAt.Equal(auction.EndTime))
	assert.Equal(t, 1, stored.TotalBids)
	require.NotNil(t, f.settlementFor(t, auction.ID))
}

func TestSubmitBidIgnoresCallerClock(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)
	f.clock.Set(auction.EndTime.Add(time.Second))

	_, err := f.svc.SubmitBid(context.Background(), SubmitBidInput{
		AuctionID:   auction.ID,
		BidderID:    uuid.New(),
		Amount:      decimal.NewFromInt(50),
		SubmittedAt: auction.EndTime.Add(-time.Minute),
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSubmitBidBeforeStartIsStateError(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(time.Minute)
	})

	_, err := f.bid(auction.ID, uuid.New(), "10")
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, enums.AuctionStatusScheduled, f.reload(t, auction.ID).Status)
}

func TestSubmitBidRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)

	_, err := f.bid(auction.ID, auction.VendorID, "50")
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.bid(uuid.New(), uuid.New(), "50")
	requireCode(t, err, pkgerrors.CodeNotFound)

	for _, amount := range []string{"0", "-5", "10.001"} {
		_, err = f.bid(auction.ID, uuid.New(), amount)
		requireCode(t, err, pkgerrors.CodeValidation)
	}

	_, err = f.bid(auction.ID, uuid.Nil, "50")
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Zero(t, f.reload(t, auction.ID).TotalBids)
}

func TestSubmitBidRejectsAmountBeyondColumnPrecision(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)

	for _, amount := range []string{"1e20", "10000000000000000"} {
		_, err := f.bid(auction.ID, uuid.New(), amount)
		typed := requireCode(t, err, pkgerrors.CodeValidation)
		assert.Equal(t, map[string]string{"amount": "must be less than 10000000000000000"}, typed.Details())
	}
	assert.Zero(t, f.reload(t, auction.ID).TotalBids)

	result, err := f.bid(auction.ID, uuid.New(), "9999999999999999.99")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalBids)
}

func TestManualEndClosesAtCurrentBid(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)
	leader := uuid.New()
	_, err := f.bid(auction.ID, uuid.New(), "10")
	require.NoError(t, err)
	_, err = f.bid(auction.ID, leader, "15")
	require.NoError(t, err)

	cmd := admin()
	cmd.AuctionID = auction.ID
	snapshot, err := f.svc.End(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusEnded, snapshot.Status)
	assert.Equal(t, enums.AuctionEndReasonManual, *snapshot.EndReason)

	f.clock.Set(t0.Add(time.Millisecond))
	_, err = f.bid(auction.ID, uuid.New(), "100")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	settled := f.settlementFor(t, auction.ID)
	require.NotNil(t, settled)
	assert.Equal(t, leader, *settled.WinnerID)
	assert.True(t, settled.WinningBid.Decimal.Equal(decimal.NewFromInt(15)))

	again, err := f.svc.End(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Version, again.Version)
	assert.Equal(t, int64(1), f.outboxCount(t, auction.ID, enums.EventAuctionSettlementRequested))
}

func TestStartIsIdempotentAndMayOpenEarly(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(30 * time.Minute)
	})

	cmd := admin()
	cmd.AuctionID = auction.ID
	snapshot, err := f.svc.Start(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusActive, snapshot.Status)
	assert.True(t, snapshot.StartTime.Equal(t0))

	again, err := f.svc.Start(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Version, again.Version)

	_, err = f.bid(auction.ID, uuid.New(), "10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.outboxCount(t, auction.ID, enums.EventAuctionStatusChanged))
}

func TestCancelBlocksBidsAndSkipsSettlement(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)
	_, err := f.bid(auction.ID, uuid.New(), "10")
	require.NoError(t, err)

	cmd := admin()
	cmd.AuctionID = auction.ID
	snapshot, err := f.svc.Cancel(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusCancelled, snapshot.Status)
	require.NotNil(t, snapshot.CancelledAt)

	_, err = f.bid(auction.ID, uuid.New(), "20")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.Cancel(context.Background(), cmd)
	require.NoError(t, err)
	_, err = f.svc.End(context.Background(), cmd)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = f.svc.Start(context.Background(), cmd)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	f.clock.Set(auction.EndTime.Add(time.Hour))
	moved, err := f.svc.ReconcileDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Nil(t, f.settlementFor(t, auction.ID))
}

func TestIllegalCommandEdges(t *testing.T) {
	f := newFixture(t, nil)
	scheduled := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(time.Minute)
	})
	ended := f.seed(t, func(a *models.Auction) {
		reason := enums.AuctionEndReasonManual
		endedAt := t0.Add(-time.Minute)
		a.Status = enums.AuctionStatusEnded
		a.EndReason = &reason
		a.EndedAt = &endedAt
	})

	cmd := admin()
	cmd.AuctionID = scheduled.ID
	_, err := f.svc.End(context.Background(), cmd)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	cmd.AuctionID = ended.ID
	_, err = f.svc.Cancel(context.Background(), cmd)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	notAdmin := CommandInput{AuctionID: scheduled.ID, ActorID: uuid.New(), ActorRole: enums.UserRoleVendor}
	_, err = f.svc.Cancel(context.Background(), notAdmin)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestReconcileDueAppliesClockTransitions(t *testing.T) {
	f := newFixture(t, nil)
	toStart := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(-time.Minute)
	})
	toEnd := f.seed(t, func(a *models.Auction) {
		a.EndTime = t0
	})
	skipped := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(-2 * time.Hour)
		a.EndTime = t0.Add(-time.Hour)
	})
	notDue := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(time.Minute)
	})

	moved, err := f.svc.ReconcileDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	assert.Equal(t, enums.AuctionStatusActive, f.reload(t, toStart.ID).Status)
	assert.Equal(t, enums.AuctionStatusEnded, f.reload(t, toEnd.ID).Status)
	assert.Equal(t, enums.AuctionStatusEnded, f.reload(t, skipped.ID).Status)
	assert.Equal(t, enums.AuctionStatusScheduled, f.reload(t, notDue.ID).Status)

	assert.Equal(t, int64(2), f.outboxCount(t, skipped.ID, enums.EventAuctionStatusChanged))
	assert.Equal(t, int64(1), f.outboxCount(t, skipped.ID, enums.EventAuctionEndedUnsold))
	assert.Nil(t, f.settlementFor(t, toStart.ID))

	moved, err = f.svc.ReconcileDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestReserveNotMetEndsWithoutWinner(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, func(a *models.Auction) {
		a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(50))
	})
	_, err := f.bid(auction.ID, uuid.New(), "40")
	require.NoError(t, err)

	snapshot, err := f.svc.Get(context.Background(), auction.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.HasReserve)
	require.NotNil(t, snapshot.ReserveMet)
	assert.False(t, *snapshot.ReserveMet)

	f.clock.Set(auction.EndTime)
	_, err = f.svc.ReconcileDue(context.Background(), 10)
	require.NoError(t, err)

	settled := f.settlementFor(t, auction.ID)
	require.NotNil(t, settled)
	assert.Equal(t, enums.SettlementOutcomeUnsold, settled.Outcome)
	assert.Equal(t, enums.UnsoldReasonReserveNotMet, *settled.UnsoldReason)
	assert.Nil(t, settled.WinnerID)
	assert.Zero(t, f.outboxCount(t, auction.ID, enums.EventAuctionSettlementRequested))

	ended := f.events.last()
	assert.Equal(t, notifications.EventEnded, ended.Type)
	assert.Nil(t, ended.WinnerID)
}

func TestGetPersistsDueTransitionAndHidesReserve(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, func(a *models.Auction) {
		a.Status = enums.AuctionStatusScheduled
		a.StartTime = t0.Add(time.Minute)
		a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(99))
	})

	snapshot, err := f.svc.Get(context.Background(), auction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusScheduled, snapshot.Status)
	assert.True(t, snapshot.HasReserve)
	assert.Nil(t, snapshot.ReserveMet)
	assert.Nil(t, snapshot.CurrentBid)

	f.clock.Set(auction.StartTime)
	snapshot, err = f.svc.Get(context.Background(), auction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusActive, snapshot.Status)
	assert.Equal(t, enums.AuctionStatusActive, f.reload(t, auction.ID).Status)

	_, err = f.svc.Get(context.Background(), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListBidsPaginatesBySequence(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)
	for _, amount := range []string{"10", "11", "12"} {
		_, err := f.bid(auction.ID, uuid.New(), amount)
		require.NoError(t, err)
	}

	page, err := f.svc.ListBids(context.Background(), auction.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Bids, 2)
	require.NotNil(t, page.NextAfter)
	assert.Equal(t, 2, *page.NextAfter)

	page, err = f.svc.ListBids(context.Background(), auction.ID, *page.NextAfter, 2)
	require.NoError(t, err)
	require.Len(t, page.Bids, 1)
	assert.Nil(t, page.NextAfter)
	assert.True(t, page.Bids[0].Amount.Equal(decimal.NewFromInt(12)))

	_, err = f.svc.ListBids(context.Background(), auction.ID, -1, 2)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateSchedulesAuction(t *testing.T) {
	f := newFixture(t, nil)
	reserve := decimal.NewFromInt(40)
	buyNow := decimal.NewFromInt(150)
	input := CreateAuctionInput{
		ProductID:       uuid.New(),
		VendorID:        uuid.New(),
		StartTime:       t0.Add(time.Hour),
		EndTime:         t0.Add(2 * time.Hour),
		StartingBid:     decimal.NewFromInt(10),
		MinBidIncrement: decimal.RequireFromString("0.50"),
		ReservePrice:    &reserve,
		BuyNowPrice:     &buyNow,
		ActorID:         uuid.New(),
		ActorRole:       enums.UserRoleAdmin,
	}

	snapshot, err := f.svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, enums.AuctionStatusScheduled, snapshot.Status)
	assert.True(t, snapshot.HasReserve)
	assert.True(t, snapshot.BuyNowPrice.Equal(buyNow))
	assert.Equal(t, int64(1), f.outboxCount(t, snapshot.ID, enums.EventAuctionCreated))

	stored := f.reload(t, snapshot.ID)
	assert.True(t, stored.ReservePrice.Decimal.Equal(reserve))
	assert.Zero(t, stored.Version)
}

func TestCreateRejectsInvalidParameters(t *testing.T) {
	f := newFixture(t, nil)
	valid := func() CreateAuctionInput {
		return CreateAuctionInput{
			ProductID:       uuid.New(),
			VendorID:        uuid.New(),
			StartTime:       t0,
			EndTime:         t0.Add(time.Hour),
			StartingBid:     decimal.NewFromInt(10),
			MinBidIncrement: decimal.NewFromInt(1),
		}
	}
	low := decimal.NewFromInt(5)
	for name, mutate := range map[string]func(*CreateAuctionInput){
		"end before start":  func(in *CreateAuctionInput) { in.EndTime = in.StartTime },
		"end in past":       func(in *CreateAuctionInput) { in.StartTime = t0.Add(-2 * time.Hour); in.EndTime = t0.Add(-time.Hour) },
		"zero increment":    func(in *CreateAuctionInput) { in.MinBidIncrement = decimal.Zero },
		"fractional cents":  func(in *CreateAuctionInput) { in.StartingBid = decimal.RequireFromString("1.005") },
		"buy now too low":   func(in *CreateAuctionInput) { in.BuyNowPrice = &low },
		"reserve too low":   func(in *CreateAuctionInput) { in.ReservePrice = &low },
		"missing vendor id": func(in *CreateAuctionInput) { in.VendorID = uuid.Nil },
		"oversized buy now": func(in *CreateAuctionInput) { huge := decimal.New(1, 16); in.BuyNowPrice = &huge },
	} {
		t.Run(name, func(t *testing.T) {
			input := valid()
			mutate(&input)
			_, err := f.svc.Create(context.Background(), input)
			requireCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestBidMetricsRecordOutcome(t *testing.T) {
	f := newFixture(t, nil)
	auction := f.seed(t, nil)
	_, err := f.bid(auction.ID, uuid.New(), "10")
	require.NoError(t, err)
	_, err = f.bid(auction.ID, uuid.New(), "10")
	require.Error(t, err)

	families, err := f.registry.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "auction_bids_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			counts[labels["result"]+"/"+labels["reason"]] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), counts["accepted/none"])
	assert.Equal(t, float64(1), counts["rejected/validation"])
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
