package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// AuctionSettlement records the single outcome of an ended auction.
type AuctionSettlement struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID    uuid.UUID               `gorm:"column:auction_id;type:uuid;not null;uniqueIndex:ux_auction_settlements_auction"`
	Outcome      enums.SettlementOutcome `gorm:"column:outcome;type:settlement_outcome;not null"`
	WinnerID     *uuid.UUID              `gorm:"column:winner_id;type:uuid"`
	WinningBid   decimal.NullDecimal     `gorm:"column:winning_bid;type:numeric(18,2)"`
	UnsoldReason *enums.UnsoldReason     `gorm:"column:unsold_reason;type:unsold_reason"`
	EndedAt      time.Time               `gorm:"column:ended_at;not null"`
	PaymentDueAt *time.Time              `gorm:"column:payment_due_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}
