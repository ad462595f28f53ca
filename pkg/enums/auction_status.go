package enums

import "fmt"

// AuctionStatus tracks the lifecycle of an auction. Transitions are forward-only.
type AuctionStatus string

const (
	AuctionStatusScheduled AuctionStatus = "scheduled"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

var validAuctionStatuses = []AuctionStatus{
	AuctionStatusScheduled,
	AuctionStatusActive,
	AuctionStatusEnded,
	AuctionStatusCancelled,
}

var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionStatusScheduled: {AuctionStatusActive, AuctionStatusCancelled},
	AuctionStatusActive:    {AuctionStatusEnded, AuctionStatusCancelled},
}

// String implements fmt.Stringer.
func (s AuctionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AuctionStatus.
func (s AuctionStatus) IsValid() bool {
	for _, candidate := range validAuctionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionStatusEnded || s == AuctionStatusCancelled
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	for _, candidate := range auctionTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseAuctionStatus converts raw input into an AuctionStatus.
func ParseAuctionStatus(value string) (AuctionStatus, error) {
	for _, candidate := range validAuctionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auction status %q", value)
}
