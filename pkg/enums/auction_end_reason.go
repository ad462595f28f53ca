package enums

import "fmt"

// AuctionEndReason records what moved an auction to ended.
type AuctionEndReason string

const (
	AuctionEndReasonTimeElapsed AuctionEndReason = "time_elapsed"
	AuctionEndReasonManual      AuctionEndReason = "manual"
	AuctionEndReasonBuyNow      AuctionEndReason = "buy_now"
)

var validAuctionEndReasons = []AuctionEndReason{
	AuctionEndReasonTimeElapsed,
	AuctionEndReasonManual,
	AuctionEndReasonBuyNow,
}

func (r AuctionEndReason) IsValid() bool {
	for _, candidate := range validAuctionEndReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseAuctionEndReason(value string) (AuctionEndReason, error) {
	for _, candidate := range validAuctionEndReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auction end reason %q", value)
}
