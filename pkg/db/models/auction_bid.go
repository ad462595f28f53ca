package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionBid is one append-only entry in an auction's bid ledger.
type AuctionBid struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID      uuid.UUID       `gorm:"column:auction_id;type:uuid;not null"`
	BidderID       uuid.UUID       `gorm:"column:bidder_id;type:uuid;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	SequenceNumber int             `gorm:"column:sequence_number;not null"`
	SubmittedAt    time.Time       `gorm:"column:submitted_at;not null"`
	AcceptedAt     time.Time       `gorm:"column:accepted_at;not null"`
}
