package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// AuctionCreatedEvent records catalog intake of an approved auction.
type AuctionCreatedEvent struct {
	AuctionID       uuid.UUID        `json:"auction_id"`
	ProductID       uuid.UUID        `json:"product_id"`
	VendorID        uuid.UUID        `json:"vendor_id"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	StartingBid     decimal.Decimal  `json:"starting_bid"`
	MinBidIncrement decimal.Decimal  `json:"min_bid_increment"`
	BuyNowPrice     *decimal.Decimal `json:"buy_now_price,omitempty"`
	HasReserve      bool             `json:"has_reserve"`
}

// AuctionBidAcceptedEvent mirrors one ledger append.
type AuctionBidAcceptedEvent struct {
	AuctionID      uuid.UUID       `json:"auction_id"`
	BidID          uuid.UUID       `json:"bid_id"`
	BidderID       uuid.UUID       `json:"bidder_id"`
	Amount         decimal.Decimal `json:"amount"`
	SequenceNumber int             `json:"sequence_number"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	AcceptedAt     time.Time       `json:"accepted_at"`
}

// AuctionStatusChangedEvent is emitted for every lifecycle edge.
type AuctionStatusChangedEvent struct {
	AuctionID  uuid.UUID               `json:"auction_id"`
	From       enums.AuctionStatus     `json:"from"`
	To         enums.AuctionStatus     `json:"to"`
	EndReason  *enums.AuctionEndReason `json:"end_reason,omitempty"`
	ChangedAt  time.Time               `json:"changed_at"`
	Actor      string                  `json:"actor"`
	TotalBids  int                     `json:"total_bids"`
	CurrentBid *decimal.Decimal        `json:"current_bid,omitempty"`
}

// AuctionSettlementRequestedEvent hands a won auction to the order pipeline,
// which creates the pending-payment order due by PaymentDueAt.
type AuctionSettlementRequestedEvent struct {
	AuctionID    uuid.UUID       `json:"auction_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	WinnerID     uuid.UUID       `json:"winner_id"`
	WinningBid   decimal.Decimal `json:"winning_bid"`
	EndedAt      time.Time       `json:"ended_at"`
	PaymentDueAt time.Time       `json:"payment_due_at"`
}

// AuctionEndedUnsoldEvent lets the catalog return the product to regular inventory.
type AuctionEndedUnsoldEvent struct {
	AuctionID uuid.UUID          `json:"auction_id"`
	ProductID uuid.UUID          `json:"product_id"`
	VendorID  uuid.UUID          `json:"vendor_id"`
	Reason    enums.UnsoldReason `json:"reason"`
	EndedAt   time.Time          `json:"ended_at"`
}
