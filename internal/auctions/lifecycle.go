package auctions

import (
	"fmt"
	"time"

	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
)

// Transition triggers.
const (
	TriggerClock  = "clock"
	TriggerAdmin  = "admin"
	TriggerBuyNow = "buy_now"
)

type transition struct {
	From    enums.AuctionStatus
	To      enums.AuctionStatus
	Reason  *enums.AuctionEndReason
	Trigger string
	At      time.Time
}

// reconcile moves the auction along the time-derived edges its persisted
// timestamps call for at now. A scheduled auction whose whole window already
// elapsed passes through active on its way to ended.
func reconcile(auction *models.Auction, now time.Time) []transition {
	var applied []transition
	if auction.Status == enums.AuctionStatusScheduled && !now.Before(auction.StartTime) {
		t, err := applyTransition(auction, enums.AuctionStatusActive, nil, TriggerClock, auction.StartTime)
		if err == nil {
			applied = append(applied, t)
		}
	}
	if auction.Status == enums.AuctionStatusActive && !now.Before(auction.EndTime) {
		reason := enums.AuctionEndReasonTimeElapsed
		t, err := applyTransition(auction, enums.AuctionStatusEnded, &reason, TriggerClock, auction.EndTime)
		if err == nil {
			applied = append(applied, t)
		}
	}
	return applied
}

// applyTransition mutates the record in memory; persistence happens through
// the caller's compare-and-set.
func applyTransition(auction *models.Auction, to enums.AuctionStatus, reason *enums.AuctionEndReason, trigger string, at time.Time) (transition, error) {
	from := auction.Status
	if !from.CanTransitionTo(to) {
		return transition{}, fmt.Errorf("illegal auction transition %s -> %s", from, to)
	}

	at = at.UTC()
	auction.Status = to
	switch to {
	case enums.AuctionStatusEnded:
		auction.EndReason = reason
		auction.EndedAt = &at
	case enums.AuctionStatusCancelled:
		auction.CancelledAt = &at
	}

	return transition{From: from, To: to, Reason: reason, Trigger: trigger, At: at}, nil
}

// acceptingBids reports whether a bid may be appended at now.
func acceptingBids(auction *models.Auction, now time.Time) bool {
	return auction.Status == enums.AuctionStatusActive &&
		!now.Before(auction.StartTime) &&
		now.Before(auction.EndTime)
}
