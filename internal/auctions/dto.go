package auctions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// CreateAuctionInput carries an approved auction from the catalog workflow.
type CreateAuctionInput struct {
	ProductID       uuid.UUID
	VendorID        uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	StartingBid     decimal.Decimal
	MinBidIncrement decimal.Decimal
	ReservePrice    *decimal.Decimal
	BuyNowPrice     *decimal.Decimal
	ActorID         uuid.UUID
	ActorRole       enums.UserRole
}

// SubmitBidInput is one bid attempt. SubmittedAt is recorded for audit only;
// the bidding window is judged against the server clock.
type SubmitBidInput struct {
	AuctionID   uuid.UUID
	BidderID    uuid.UUID
	Amount      decimal.Decimal
	SubmittedAt time.Time
}

// CommandInput identifies an admin lifecycle command.
type CommandInput struct {
	AuctionID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// BidResult is returned for an accepted bid.
type BidResult struct {
	Accepted        bool                `json:"accepted"`
	BidID           uuid.UUID           `json:"bidId"`
	SequenceNumber  int                 `json:"sequenceNumber"`
	CurrentBid      decimal.Decimal     `json:"currentBid"`
	TotalBids       int                 `json:"totalBids"`
	HighestBidderID uuid.UUID           `json:"highestBidderId"`
	MinimumNextBid  decimal.Decimal     `json:"minimumNextBid"`
	Status          enums.AuctionStatus `json:"status"`
	Version         int64               `json:"version"`
}

// Snapshot is the bidder-facing view of an auction. The reserve amount never
// leaves the engine; only whether it exists and, once bids exist, whether it is met.
type Snapshot struct {
	ID              uuid.UUID               `json:"id"`
	ProductID       uuid.UUID               `json:"productId"`
	VendorID        uuid.UUID               `json:"vendorId"`
	Status          enums.AuctionStatus     `json:"status"`
	StartTime       time.Time               `json:"startTime"`
	EndTime         time.Time               `json:"endTime"`
	StartingBid     decimal.Decimal         `json:"startingBid"`
	MinBidIncrement decimal.Decimal         `json:"minBidIncrement"`
	BuyNowPrice     *decimal.Decimal        `json:"buyNowPrice,omitempty"`
	HasReserve      bool                    `json:"hasReserve"`
	ReserveMet      *bool                   `json:"reserveMet,omitempty"`
	CurrentBid      *decimal.Decimal        `json:"currentBid,omitempty"`
	HighestBidderID *uuid.UUID              `json:"highestBidderId,omitempty"`
	TotalBids       int                     `json:"totalBids"`
	MinimumNextBid  decimal.Decimal         `json:"minimumNextBid"`
	EndReason       *enums.AuctionEndReason `json:"endReason,omitempty"`
	EndedAt         *time.Time              `json:"endedAt,omitempty"`
	CancelledAt     *time.Time              `json:"cancelledAt,omitempty"`
	Version         int64                   `json:"version"`
}

// Bid is one ledger entry as exposed to clients.
type Bid struct {
	ID             uuid.UUID       `json:"id"`
	BidderID       uuid.UUID       `json:"bidderId"`
	Amount         decimal.Decimal `json:"amount"`
	SequenceNumber int             `json:"sequenceNumber"`
	AcceptedAt     time.Time       `json:"acceptedAt"`
}

// BidPage is a slice of the ledger ordered by sequence number. NextAfter is
// set when more entries follow.
type BidPage struct {
	Bids      []Bid `json:"bids"`
	NextAfter *int  `json:"nextAfter,omitempty"`
}

func toSnapshot(auction *models.Auction) *Snapshot {
	snapshot := &Snapshot{
		ID:              auction.ID,
		ProductID:       auction.ProductID,
		VendorID:        auction.VendorID,
		Status:          auction.Status,
		StartTime:       auction.StartTime.UTC(),
		EndTime:         auction.EndTime.UTC(),
		StartingBid:     auction.StartingBid,
		MinBidIncrement: auction.MinBidIncrement,
		HasReserve:      auction.ReservePrice.Valid,
		HighestBidderID: auction.HighestBidderID,
		TotalBids:       auction.TotalBids,
		MinimumNextBid:  auction.MinimumNextBid(),
		EndReason:       auction.EndReason,
		EndedAt:         auction.EndedAt,
		CancelledAt:     auction.CancelledAt,
		Version:         auction.Version,
	}
	if auction.BuyNowPrice.Valid {
		price := auction.BuyNowPrice.Decimal
		snapshot.BuyNowPrice = &price
	}
	if auction.CurrentBid.Valid {
		current := auction.CurrentBid.Decimal
		snapshot.CurrentBid = &current
	}
	if auction.ReservePrice.Valid && auction.HasBids() {
		met := auction.ReserveMet()
		snapshot.ReserveMet = &met
	}
	return snapshot
}

func toBid(bid models.AuctionBid) Bid {
	return Bid{
		ID:             bid.ID,
		BidderID:       bid.BidderID,
		Amount:         bid.Amount,
		SequenceNumber: bid.SequenceNumber,
		AcceptedAt:     bid.AcceptedAt.UTC(),
	}
}
