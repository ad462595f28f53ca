package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/auction-engine/pkg/db"
	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
	"github.com/angelmondragon/auction-engine/pkg/logger"
	"github.com/angelmondragon/auction-engine/pkg/metrics"
	"github.com/angelmondragon/auction-engine/pkg/outbox"
	"github.com/angelmondragon/auction-engine/pkg/outbox/payloads"
)

const defaultPaymentWindow = 48 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service determines the single outcome of an ended auction and hands it to
// the order pipeline through the outbox.
type Service interface {
	// SettleTx settles inside the caller's transaction. A second call for the
	// same auction returns the stored outcome without emitting again.
	SettleTx(ctx context.Context, tx *gorm.DB, auction *models.Auction) (*models.AuctionSettlement, error)
	OnEnded(ctx context.Context, auctionID uuid.UUID) (*models.AuctionSettlement, error)
	SweepUnsettled(ctx context.Context, limit int) (int, error)
}

type ServiceParams struct {
	Repo          Repository
	DB            txRunner
	Outbox        outboxEmitter
	Metrics       *metrics.AuctionMetrics
	Logger        *logger.Logger
	PaymentWindow time.Duration
	Now           func() time.Time
}

type service struct {
	repo          Repository
	db            txRunner
	outbox        outboxEmitter
	metrics       *metrics.AuctionMetrics
	logg          *logger.Logger
	paymentWindow time.Duration
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	window := params.PaymentWindow
	if window <= 0 {
		window = defaultPaymentWindow
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:          params.Repo,
		db:            params.DB,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          params.Logger,
		paymentWindow: window,
		now:           now,
	}, nil
}

func (s *service) SettleTx(ctx context.Context, tx *gorm.DB, auction *models.Auction) (*models.AuctionSettlement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if auction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction required")
	}
	if auction.Status != enums.AuctionStatusEnded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only ended auctions are settled").
			WithDetails(map[string]any{"status": auction.Status})
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByAuctionID(ctx, auction.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}
	if existing != nil {
		return existing, nil
	}

	row, event := s.decide(auction)
	if err := repo.Create(ctx, row); err != nil {
		return nil, err
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement event")
	}

	s.metrics.IncSettlement(string(row.Outcome))
	s.logOutcome(ctx, row)
	return row, nil
}

// decide applies the winner rule: a ledger with at least one bid and either no
// reserve or a final bid at or above it.
func (s *service) decide(auction *models.Auction) (*models.AuctionSettlement, outbox.DomainEvent) {
	endedAt := s.now().UTC()
	if auction.EndedAt != nil {
		endedAt = auction.EndedAt.UTC()
	}

	row := &models.AuctionSettlement{
		ID:        uuid.New(),
		AuctionID: auction.ID,
		EndedAt:   endedAt,
	}

	if auction.ReserveMet() && auction.HighestBidderID != nil {
		winner := *auction.HighestBidderID
		dueAt := endedAt.Add(s.paymentWindow)
		row.Outcome = enums.SettlementOutcomeSold
		row.WinnerID = &winner
		row.WinningBid = auction.CurrentBid
		row.PaymentDueAt = &dueAt
		return row, outbox.DomainEvent{
			EventType:     enums.EventAuctionSettlementRequested,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			OccurredAt:    endedAt,
			Data: payloads.AuctionSettlementRequestedEvent{
				AuctionID:    auction.ID,
				ProductID:    auction.ProductID,
				VendorID:     auction.VendorID,
				WinnerID:     winner,
				WinningBid:   auction.CurrentBid.Decimal,
				EndedAt:      endedAt,
				PaymentDueAt: dueAt,
			},
		}
	}

	reason := enums.UnsoldReasonNoBids
	if auction.HasBids() {
		reason = enums.UnsoldReasonReserveNotMet
	}
	row.Outcome = enums.SettlementOutcomeUnsold
	row.UnsoldReason = &reason
	return row, outbox.DomainEvent{
		EventType:     enums.EventAuctionEndedUnsold,
		AggregateType: enums.AggregateAuction,
		AggregateID:   auction.ID,
		OccurredAt:    endedAt,
		Data: payloads.AuctionEndedUnsoldEvent{
			AuctionID: auction.ID,
			ProductID: auction.ProductID,
			VendorID:  auction.VendorID,
			Reason:    reason,
			EndedAt:   endedAt,
		},
	}
}

func (s *service) OnEnded(ctx context.Context, auctionID uuid.UUID) (*models.AuctionSettlement, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}

	var result *models.AuctionSettlement
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		auction, err := s.repo.WithTx(tx).FindAuction(ctx, auctionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
		}
		result, err = s.SettleTx(ctx, tx, auction)
		return err
	})
	if err == nil {
		return result, nil
	}
	if dbpkg.IsUniqueViolation(err, "ux_auction_settlements_auction") {
		// settled concurrently; hand back the stored outcome
		existing, findErr := s.repo.FindByAuctionID(ctx, auctionID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load settlement")
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, err
}

func (s *service) SweepUnsettled(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListEndedUnsettledIDs(ctx, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unsettled auctions")
	}

	settled := 0
	var errs error
	for _, id := range ids {
		if _, err := s.OnEnded(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("auction %s: %w", id, err))
			continue
		}
		settled++
	}
	return settled, errs
}

func (s *service) logOutcome(ctx context.Context, row *models.AuctionSettlement) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"outcome": row.Outcome,
	}
	if row.WinnerID != nil {
		fields["winner_id"] = row.WinnerID.String()
		fields["winning_bid"] = row.WinningBid.Decimal.String()
	}
	if row.UnsoldReason != nil {
		fields["reason"] = *row.UnsoldReason
	}
	logCtx := s.logg.WithFields(s.logg.WithAuctionID(ctx, row.AuctionID.String()), fields)
	s.logg.Info(logCtx, "auction settled")
}
