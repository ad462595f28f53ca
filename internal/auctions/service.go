package auctions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/auction-engine/internal/notifications"
	dbpkg "github.com/angelmondragon/auction-engine/pkg/db"
	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
	"github.com/angelmondragon/auction-engine/pkg/logger"
	"github.com/angelmondragon/auction-engine/pkg/metrics"
	"github.com/angelmondragon/auction-engine/pkg/outbox"
	"github.com/angelmondragon/auction-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/auction-engine/pkg/pagination"
)

const (
	bidSequenceConstraint = "ux_auction_bids_sequence"
	defaultReconcileLimit = 200
	maxSerializedAttempts = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settler interface {
	SettleTx(ctx context.Context, tx *gorm.DB, auction *models.Auction) (*models.AuctionSettlement, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventPublisher interface {
	Publish(event notifications.Event)
}

// Service owns the auction lifecycle and the bid ledger. Every mutation of
// one auction passes through the same per-auction serialization point.
type Service interface {
	Create(ctx context.Context, input CreateAuctionInput) (*Snapshot, error)
	Get(ctx context.Context, auctionID uuid.UUID) (*Snapshot, error)
	ListBids(ctx context.Context, auctionID uuid.UUID, afterSequence, limit int) (*BidPage, error)
	SubmitBid(ctx context.Context, input SubmitBidInput) (*BidResult, error)
	Start(ctx context.Context, input CommandInput) (*Snapshot, error)
	End(ctx context.Context, input CommandInput) (*Snapshot, error)
	Cancel(ctx context.Context, input CommandInput) (*Snapshot, error)
	// ReconcileDue applies clock-driven transitions to every due auction and
	// reports how many moved.
	ReconcileDue(ctx context.Context, limit int) (int, error)
}

type ServiceParams struct {
	Repo    Repository
	DB      txRunner
	Settler settler
	Outbox  outboxEmitter
	Events  eventPublisher
	Metrics *metrics.AuctionMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	db      txRunner
	settler settler
	outbox  outboxEmitter
	events  eventPublisher
	metrics *metrics.AuctionMetrics
	logg    *logger.Logger
	now     func() time.Time
	locks   *keyedLocker
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("auctions repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		settler: params.Settler,
		outbox:  params.Outbox,
		events:  params.Events,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
		locks:   newKeyedLocker(),
	}, nil
}

// mutation collects what one serialized step changed so it is persisted by a
// single compare-and-set and announced only after commit.
type mutation struct {
	auction     *models.Auction
	expected    int64
	actor       *outbox.ActorRef
	dirty       bool
	transitions []transition
	bid         *models.AuctionBid
	settlement  *models.AuctionSettlement
	events      []notifications.Event
	outbox      []outbox.DomainEvent
	// rejection is returned to the caller after the transaction commits, so
	// clock transitions found on the way still persist.
	rejection error
}

type stepFunc func(ctx context.Context, repo Repository, m *mutation, now time.Time) error

func (m *mutation) record(t transition) {
	a := m.auction
	m.transitions = append(m.transitions, t)
	m.dirty = true
	m.events = append(m.events, notifications.StatusChanged(a.ID, 0, t.To, t.At))

	actor := t.Trigger
	if m.actor != nil && t.Trigger != TriggerClock {
		actor = m.actor.UserID.String()
	}
	data := payloads.AuctionStatusChangedEvent{
		AuctionID: a.ID,
		From:      t.From,
		To:        t.To,
		EndReason: t.Reason,
		ChangedAt: t.At,
		Actor:     actor,
		TotalBids: a.TotalBids,
	}
	if a.CurrentBid.Valid {
		current := a.CurrentBid.Decimal
		data.CurrentBid = &current
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventAuctionStatusChanged,
		AggregateType: enums.AggregateAuction,
		AggregateID:   a.ID,
		Data:          data,
		OccurredAt:    t.At,
	}
	if t.Trigger != TriggerClock {
		event.Actor = m.actor
	}
	m.outbox = append(m.outbox, event)
}

func (m *mutation) transition(to enums.AuctionStatus, reason *enums.AuctionEndReason, trigger string, at time.Time) error {
	t, err := applyTransition(m.auction, to, reason, trigger, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "illegal auction transition")
	}
	m.record(t)
	return nil
}

func (m *mutation) acceptBid(bid *models.AuctionBid) {
	a := m.auction
	bidder := bid.BidderID
	a.CurrentBid = decimal.NewNullDecimal(bid.Amount)
	a.HighestBidderID = &bidder
	a.TotalBids = bid.SequenceNumber
	m.bid = bid
	m.dirty = true
	m.events = append(m.events, notifications.BidAccepted(a.ID, 0, bid.Amount, a.TotalBids, bidder, bid.AcceptedAt))
	m.outbox = append(m.outbox, outbox.DomainEvent{
		EventType:     enums.EventAuctionBidAccepted,
		AggregateType: enums.AggregateAuction,
		AggregateID:   a.ID,
		Actor:         m.actor,
		OccurredAt:    bid.AcceptedAt,
		Data: payloads.AuctionBidAcceptedEvent{
			AuctionID:      a.ID,
			BidID:          bid.ID,
			BidderID:       bidder,
			Amount:         bid.Amount,
			SequenceNumber: bid.SequenceNumber,
			SubmittedAt:    bid.SubmittedAt,
			AcceptedAt:     bid.AcceptedAt,
		},
	})
}

func (m *mutation) ended() bool {
	for _, t := range m.transitions {
		if t.To == enums.AuctionStatusEnded {
			return true
		}
	}
	return false
}

// serialized runs step for one auction under the in-process lock and a
// database transaction whose only auction write is a version compare-and-set.
func (s *service) serialized(ctx context.Context, auctionID uuid.UUID, actor *outbox.ActorRef, step stepFunc) (*mutation, error) {
	release, err := s.locks.Lock(ctx, auctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "timed out waiting for auction")
	}
	defer release()

	var m *mutation
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		auction, err := repo.FindByID(ctx, auctionID)
		if err != nil {
			return mapFindError(err)
		}

		now := s.now().UTC()
		m = &mutation{auction: auction, expected: auction.Version, actor: actor}
		for _, t := range reconcile(auction, now) {
			m.record(t)
		}
		if step != nil {
			if err := step(ctx, repo, m, now); err != nil {
				return err
			}
		}
		if !m.dirty {
			return nil
		}
		return s.commit(ctx, tx, repo, m)
	})
	if err != nil {
		if lostRace(err) {
			return nil, err
		}
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist auction")
		}
		return nil, err
	}

	s.announce(ctx, m)
	return m, nil
}

func (s *service) commit(ctx context.Context, tx *gorm.DB, repo Repository, m *mutation) error {
	if err := repo.CompareAndSwap(ctx, m.auction, m.expected); err != nil {
		return err
	}
	for _, event := range m.outbox {
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit auction event")
		}
	}

	if m.ended() {
		settlement, err := s.settler.SettleTx(ctx, tx, m.auction)
		if err != nil {
			return err
		}
		m.settlement = settlement
		m.events = append(m.events, endedEvent(m.auction, settlement))
	}

	for i := range m.events {
		m.events[i].Version = m.auction.Version
	}
	return nil
}

func endedEvent(auction *models.Auction, settlement *models.AuctionSettlement) notifications.Event {
	reason := enums.AuctionEndReasonTimeElapsed
	if auction.EndReason != nil {
		reason = *auction.EndReason
	}
	at := auction.EndTime
	if auction.EndedAt != nil {
		at = *auction.EndedAt
	}
	var winnerID *uuid.UUID
	var winningBid *decimal.Decimal
	if settlement != nil && settlement.Outcome == enums.SettlementOutcomeSold {
		winnerID = settlement.WinnerID
		if settlement.WinningBid.Valid {
			amount := settlement.WinningBid.Decimal
			winningBid = &amount
		}
	}
	return notifications.Ended(auction.ID, auction.Version, reason, winnerID, winningBid, at)
}

func (s *service) announce(ctx context.Context, m *mutation) {
	for _, t := range m.transitions {
		s.metrics.IncTransition(string(t.To), t.Trigger)
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithAuctionID(ctx, m.auction.ID.String()), map[string]any{
				"from":    t.From,
				"to":      t.To,
				"trigger": t.Trigger,
				"version": m.auction.Version,
			})
			s.logg.Info(logCtx, "auction status changed")
		}
	}
	if s.events == nil {
		return
	}
	for _, event := range m.events {
		s.events.Publish(event)
	}
}

// lostRace reports a compare-and-set miss or a ledger sequence collision:
// another instance committed first and this step was rolled back.
func lostRace(err error) bool {
	return errors.Is(err, ErrVersionConflict) || dbpkg.IsUniqueViolation(err, bidSequenceConstraint)
}

// serializedRetry reruns a step that carries no caller-supplied amount when
// it loses the race, so admin commands and clock reconciliation apply on top
// of whatever the other instance committed.
func (s *service) serializedRetry(ctx context.Context, auctionID uuid.UUID, actor *outbox.ActorRef, step stepFunc) (*mutation, error) {
	var err error
	for attempt := 0; attempt < maxSerializedAttempts; attempt++ {
		var m *mutation
		m, err = s.serialized(ctx, auctionID, actor, step)
		if err == nil || !lostRace(err) {
			return m, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctxErr, "persist auction")
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "auction is being modified concurrently, retry the request")
}

// lostBid classifies a bid rolled back by a concurrent writer against the
// state that writer left behind.
func (s *service) lostBid(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return mapFindError(err)
	}
	if !acceptingBids(auction, s.now().UTC()) {
		return stateError(auction, "auction is not accepting bids")
	}
	return conflictError(auction)
}

func mapFindError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError()
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
}

func (s *service) SubmitBid(ctx context.Context, input SubmitBidInput) (*BidResult, error) {
	started := time.Now()
	result, err := s.submitBid(ctx, input)
	s.observeBid(ctx, input, result, err, time.Since(started))
	return result, err
}

func (s *service) submitBid(ctx context.Context, input SubmitBidInput) (*BidResult, error) {
	if input.AuctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if input.BidderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "bidder identity missing")
	}
	if err := validateAmount("amount", input.Amount); err != nil {
		return nil, err
	}

	// Admission snapshot: the ledger length the bidder could have seen. A
	// floor miss against a ledger that grew since then is a lost race.
	admitted, err := s.repo.FindByID(ctx, input.AuctionID)
	if err != nil {
		return nil, mapFindError(err)
	}
	if admitted.VendorID == input.BidderID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendors cannot bid on their own auction")
	}
	admittedBids := admitted.TotalBids

	actor := &outbox.ActorRef{UserID: input.BidderID, Role: string(enums.UserRoleBidder)}
	m, err := s.serialized(ctx, input.AuctionID, actor, func(ctx context.Context, repo Repository, m *mutation, now time.Time) error {
		auction := m.auction
		if !acceptingBids(auction, now) {
			m.rejection = stateError(auction, "auction is not accepting bids")
			return nil
		}
		if input.Amount.LessThan(auction.MinimumNextBid()) {
			if auction.TotalBids != admittedBids {
				m.rejection = conflictError(auction)
			} else {
				m.rejection = bidTooLowError(auction)
			}
			return nil
		}

		submittedAt := input.SubmittedAt
		if submittedAt.IsZero() {
			submittedAt = now
		}
		bid := &models.AuctionBid{
			ID:             uuid.New(),
			AuctionID:      auction.ID,
			BidderID:       input.BidderID,
			Amount:         input.Amount,
			SequenceNumber: auction.TotalBids + 1,
			SubmittedAt:    submittedAt.UTC(),
			AcceptedAt:     now,
		}
		if err := repo.InsertBid(ctx, bid); err != nil {
			return err
		}
		m.acceptBid(bid)

		if auction.BuyNowPrice.Valid && input.Amount.GreaterThanOrEqual(auction.BuyNowPrice.Decimal) {
			reason := enums.AuctionEndReasonBuyNow
			return m.transition(enums.AuctionStatusEnded, &reason, TriggerBuyNow, now)
		}
		return nil
	})
	if err != nil {
		if lostRace(err) {
			return nil, s.lostBid(ctx, input.AuctionID)
		}
		return nil, err
	}
	if m.rejection != nil {
		return nil, m.rejection
	}

	a := m.auction
	return &BidResult{
		Accepted:        true,
		BidID:           m.bid.ID,
		SequenceNumber:  m.bid.SequenceNumber,
		CurrentBid:      a.CurrentBid.Decimal,
		TotalBids:       a.TotalBids,
		HighestBidderID: *a.HighestBidderID,
		MinimumNextBid:  a.MinimumNextBid(),
		Status:          a.Status,
		Version:         a.Version,
	}, nil
}

func (s *service) observeBid(ctx context.Context, input SubmitBidInput, result *BidResult, err error, elapsed time.Duration) {
	if err == nil {
		s.metrics.ObserveBid(metrics.BidResultAccepted, "", elapsed)
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithAuctionID(ctx, input.AuctionID.String()), map[string]any{
				"bidder_id":  input.BidderID.String(),
				"amount":     input.Amount.String(),
				"total_bids": result.TotalBids,
				"status":     result.Status,
			})
			s.logg.Info(logCtx, "bid accepted")
		}
		return
	}

	reason := rejectionReason(err)
	s.metrics.ObserveBid(metrics.BidResultRejected, reason, elapsed)
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithAuctionID(ctx, input.AuctionID.String()), map[string]any{
		"bidder_id": input.BidderID.String(),
		"amount":    input.Amount.String(),
		"reason":    reason,
	})
	if reason == "error" {
		s.logg.Error(logCtx, "bid failed", err)
		return
	}
	s.logg.Info(logCtx, "bid rejected")
}

func rejectionReason(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeConflict:
		return "conflict"
	case pkgerrors.CodeStateConflict:
		return "state"
	case pkgerrors.CodeForbidden, pkgerrors.CodeUnauthorized:
		return "unauthorized"
	case pkgerrors.CodeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func (s *service) Start(ctx context.Context, input CommandInput) (*Snapshot, error) {
	return s.command(ctx, input, func(_ context.Context, _ Repository, m *mutation, now time.Time) error {
		auction := m.auction
		switch auction.Status {
		case enums.AuctionStatusActive:
			return nil
		case enums.AuctionStatusScheduled:
			if now.Before(auction.StartTime) {
				auction.StartTime = now
			}
			return m.transition(enums.AuctionStatusActive, nil, TriggerAdmin, now)
		default:
			m.rejection = stateError(auction, "auction can no longer be started")
			return nil
		}
	})
}

func (s *service) End(ctx context.Context, input CommandInput) (*Snapshot, error) {
	return s.command(ctx, input, func(_ context.Context, _ Repository, m *mutation, now time.Time) error {
		auction := m.auction
		switch auction.Status {
		case enums.AuctionStatusEnded:
			return nil
		case enums.AuctionStatusActive:
			reason := enums.AuctionEndReasonManual
			return m.transition(enums.AuctionStatusEnded, &reason, TriggerAdmin, now)
		default:
			m.rejection = stateError(auction, "only active auctions can be ended")
			return nil
		}
	})
}

func (s *service) Cancel(ctx context.Context, input CommandInput) (*Snapshot, error) {
	return s.command(ctx, input, func(_ context.Context, _ Repository, m *mutation, now time.Time) error {
		auction := m.auction
		switch auction.Status {
		case enums.AuctionStatusCancelled:
			return nil
		case enums.AuctionStatusScheduled, enums.AuctionStatusActive:
			return m.transition(enums.AuctionStatusCancelled, nil, TriggerAdmin, now)
		default:
			m.rejection = stateError(auction, "ended auctions cannot be cancelled")
			return nil
		}
	})
}

// command runs an idempotent admin transition: repeating a command whose
// target status is already reached returns the snapshot unchanged.
func (s *service) command(ctx context.Context, input CommandInput, step stepFunc) (*Snapshot, error) {
	if input.AuctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	actor := &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)}
	m, err := s.serializedRetry(ctx, input.AuctionID, actor, step)
	if err != nil {
		return nil, err
	}
	if m.rejection != nil {
		return nil, m.rejection
	}
	return toSnapshot(m.auction), nil
}

func (s *service) ReconcileDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	ids, err := s.repo.ListDueIDs(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due auctions")
	}

	moved := 0
	var errs error
	for _, id := range ids {
		m, err := s.serializedRetry(ctx, id, nil, nil)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("auction %s: %w", id, err))
			continue
		}
		if len(m.transitions) > 0 {
			moved++
		}
	}
	return moved, errs
}

func (s *service) Get(ctx context.Context, auctionID uuid.UUID) (*Snapshot, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return nil, mapFindError(err)
	}

	// A tick may lag; persist any due transition before answering so the
	// snapshot never reports a closed window as open.
	view := *auction
	if len(reconcile(&view, s.now().UTC())) > 0 {
		m, err := s.serializedRetry(ctx, auctionID, nil, nil)
		if err != nil {
			return nil, err
		}
		auction = m.auction
	}
	return toSnapshot(auction), nil
}

func (s *service) ListBids(ctx context.Context, auctionID uuid.UUID, afterSequence, limit int) (*BidPage, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if afterSequence < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "after must not be negative")
	}
	if _, err := s.repo.FindByID(ctx, auctionID); err != nil {
		return nil, mapFindError(err)
	}

	pageSize := pagination.NormalizeLimit(limit)
	rows, err := s.repo.ListBids(ctx, auctionID, afterSequence, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}

	page := &BidPage{Bids: make([]Bid, 0, len(rows))}
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		next := rows[len(rows)-1].SequenceNumber
		page.NextAfter = &next
	}
	for _, row := range rows {
		page.Bids = append(page.Bids, toBid(row))
	}
	return page, nil
}

func (s *service) Create(ctx context.Context, input CreateAuctionInput) (*Snapshot, error) {
	now := s.now().UTC()
	if err := validateCreate(input, now); err != nil {
		return nil, err
	}

	auction := &models.Auction{
		ID:              uuid.New(),
		ProductID:       input.ProductID,
		VendorID:        input.VendorID,
		Status:          enums.AuctionStatusScheduled,
		StartTime:       input.StartTime.UTC(),
		EndTime:         input.EndTime.UTC(),
		StartingBid:     input.StartingBid,
		MinBidIncrement: input.MinBidIncrement,
	}
	if input.ReservePrice != nil {
		auction.ReservePrice = decimal.NewNullDecimal(*input.ReservePrice)
	}
	if input.BuyNowPrice != nil {
		auction.BuyNowPrice = decimal.NewNullDecimal(*input.BuyNowPrice)
	}

	var actor *outbox.ActorRef
	if input.ActorID != uuid.Nil {
		actor = &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)}
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, auction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionCreated,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.AuctionCreatedEvent{
				AuctionID:       auction.ID,
				ProductID:       auction.ProductID,
				VendorID:        auction.VendorID,
				StartTime:       auction.StartTime,
				EndTime:         auction.EndTime,
				StartingBid:     auction.StartingBid,
				MinBidIncrement: auction.MinBidIncrement,
				BuyNowPrice:     input.BuyNowPrice,
				HasReserve:      input.ReservePrice != nil,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction")
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithAuctionID(ctx, auction.ID.String()), map[string]any{
			"product_id": auction.ProductID.String(),
			"vendor_id":  auction.VendorID.String(),
			"start_time": auction.StartTime,
			"end_time":   auction.EndTime,
		})
		s.logg.Info(logCtx, "auction scheduled")
	}
	return toSnapshot(auction), nil
}
