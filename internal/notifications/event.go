package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// EventType names the auction events pushed to stream subscribers.
type EventType string

const (
	EventBidAccepted   EventType = "bid_accepted"
	EventStatusChanged EventType = "status_changed"
	EventEnded         EventType = "ended"
)

// Event is one best-effort notification about an auction. Version is the
// auction record version after the change so clients can discard stale or
// duplicate deliveries.
type Event struct {
	Type            EventType               `json:"type"`
	AuctionID       uuid.UUID               `json:"auctionId"`
	Version         int64                   `json:"version"`
	OccurredAt      time.Time               `json:"occurredAt"`
	CurrentBid      *decimal.Decimal        `json:"currentBid,omitempty"`
	TotalBids       *int                    `json:"totalBids,omitempty"`
	HighestBidderID *uuid.UUID              `json:"highestBidderId,omitempty"`
	Status          *enums.AuctionStatus    `json:"status,omitempty"`
	WinnerID        *uuid.UUID              `json:"winnerId,omitempty"`
	WinningBid      *decimal.Decimal        `json:"winningBid,omitempty"`
	Reason          *enums.AuctionEndReason `json:"reason,omitempty"`
}

// BidAccepted builds the event for a ledger append.
func BidAccepted(auctionID uuid.UUID, version int64, currentBid decimal.Decimal, totalBids int, bidderID uuid.UUID, at time.Time) Event {
	return Event{
		Type:            EventBidAccepted,
		AuctionID:       auctionID,
		Version:         version,
		OccurredAt:      at,
		CurrentBid:      &currentBid,
		TotalBids:       &totalBids,
		HighestBidderID: &bidderID,
	}
}

// StatusChanged builds the event for a lifecycle edge.
func StatusChanged(auctionID uuid.UUID, version int64, status enums.AuctionStatus, at time.Time) Event {
	return Event{
		Type:       EventStatusChanged,
		AuctionID:  auctionID,
		Version:    version,
		OccurredAt: at,
		Status:     &status,
	}
}

// Ended builds the closing event. winnerID and winningBid are nil when the
// auction ended unsold.
func Ended(auctionID uuid.UUID, version int64, reason enums.AuctionEndReason, winnerID *uuid.UUID, winningBid *decimal.Decimal, at time.Time) Event {
	return Event{
		Type:       EventEnded,
		AuctionID:  auctionID,
		Version:    version,
		OccurredAt: at,
		WinnerID:   winnerID,
		WinningBid: winningBid,
		Reason:     &reason,
	}
}

func encodeEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func decodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.AuctionID == uuid.Nil {
		return Event{}, fmt.Errorf("decode event: missing auctionId")
	}
	return event, nil
}
