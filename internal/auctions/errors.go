package auctions

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/auction-engine/pkg/db/models"
	"github.com/angelmondragon/auction-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
)

// ErrVersionConflict reports a compare-and-set miss: another writer committed
// a newer version of the auction first.
var ErrVersionConflict = errors.New("auction version conflict")

// ConflictDetails tells a superseded bidder what to beat on retry.
type ConflictDetails struct {
	CurrentBid *decimal.Decimal `json:"currentBid,omitempty"`
	TotalBids  int              `json:"totalBids"`
	MinimumBid decimal.Decimal  `json:"minimumBid"`
}

type StateDetails struct {
	Status enums.AuctionStatus `json:"status"`
}

type BidFloorDetails struct {
	MinimumBid decimal.Decimal `json:"minimumBid"`
}

func conflictError(auction *models.Auction) error {
	details := ConflictDetails{
		TotalBids:  auction.TotalBids,
		MinimumBid: auction.MinimumNextBid(),
	}
	if auction.CurrentBid.Valid {
		current := auction.CurrentBid.Decimal
		details.CurrentBid = &current
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "bid superseded by a concurrent bid").WithDetails(details)
}

func stateError(auction *models.Auction, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(StateDetails{Status: auction.Status})
}

func bidTooLowError(auction *models.Auction) error {
	message := "bid must be at least the current bid plus the minimum increment"
	if !auction.HasBids() {
		message = "bid must be at least the starting bid"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(BidFloorDetails{MinimumBid: auction.MinimumNextBid()})
}

func notFoundError() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
}
