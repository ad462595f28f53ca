package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// Auction is the durable record of one auctioned product. CurrentBid,
// HighestBidderID and TotalBids cache the tail of the bid ledger and are only
// written together with a ledger append under a version compare-and-set.
type Auction struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	VendorID        uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null"`
	Status          enums.AuctionStatus     `gorm:"column:status;type:auction_status;not null"`
	StartTime       time.Time               `gorm:"column:start_time;not null"`
	EndTime         time.Time               `gorm:"column:end_time;not null"`
	StartingBid     decimal.Decimal         `gorm:"column:starting_bid;type:numeric(18,2);not null"`
	MinBidIncrement decimal.Decimal         `gorm:"column:min_bid_increment;type:numeric(18,2);not null"`
	ReservePrice    decimal.NullDecimal     `gorm:"column:reserve_price;type:numeric(18,2)"`
	BuyNowPrice     decimal.NullDecimal     `gorm:"column:buy_now_price;type:numeric(18,2)"`
	CurrentBid      decimal.NullDecimal     `gorm:"column:current_bid;type:numeric(18,2)"`
	HighestBidderID *uuid.UUID              `gorm:"column:highest_bidder_id;type:uuid"`
	TotalBids       int                     `gorm:"column:total_bids;not null;default:0"`
	Version         int64                   `gorm:"column:version;not null;default:0"`
	EndReason       *enums.AuctionEndReason `gorm:"column:end_reason;type:auction_end_reason"`
	EndedAt         *time.Time              `gorm:"column:ended_at"`
	CancelledAt     *time.Time              `gorm:"column:cancelled_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBids reports whether the ledger holds at least one accepted bid.
func (a Auction) HasBids() bool {
	return a.TotalBids > 0 && a.CurrentBid.Valid
}

// ReserveMet reports whether the current bid satisfies the hidden reserve.
// An auction without a reserve is met as soon as it has a bid.
func (a Auction) ReserveMet() bool {
	if !a.HasBids() {
		return false
	}
	if !a.ReservePrice.Valid {
		return true
	}
	return a.CurrentBid.Decimal.GreaterThanOrEqual(a.ReservePrice.Decimal)
}

// MinimumNextBid is the smallest amount the next bid may carry.
func (a Auction) MinimumNextBid() decimal.Decimal {
	if !a.HasBids() {
		return a.StartingBid
	}
	return a.CurrentBid.Decimal.Add(a.MinBidIncrement)
}
