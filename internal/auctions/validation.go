package auctions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
)

// maxAmount is the first value a numeric(18,2) column cannot hold.
var maxAmount = decimal.New(1, 16)

// validateAmount enforces positive money with at most cent precision.
func validateAmount(field string, amount decimal.Decimal) error {
	if msg := amountProblem(amount); msg != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" "+msg).
			WithDetails(map[string]string{field: msg})
	}
	return nil
}

func amountProblem(amount decimal.Decimal) string {
	if !amount.IsPositive() {
		return "must be positive"
	}
	if !amount.Equal(amount.Round(2)) {
		return "must have at most two decimal places"
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return "must be less than " + maxAmount.String()
	}
	return ""
}

func validateCreate(input CreateAuctionInput, now time.Time) error {
	fields := map[string]string{}

	if input.ProductID == uuid.Nil {
		fields["productId"] = "is required"
	}
	if input.VendorID == uuid.Nil {
		fields["vendorId"] = "is required"
	}
	switch {
	case input.StartTime.IsZero():
		fields["startTime"] = "is required"
	case input.EndTime.IsZero():
		fields["endTime"] = "is required"
	case !input.EndTime.After(input.StartTime):
		fields["endTime"] = "must be after startTime"
	case !input.EndTime.After(now):
		fields["endTime"] = "must be in the future"
	}

	if msg := amountProblem(input.StartingBid); msg != "" {
		fields["startingBid"] = msg
	}
	if msg := amountProblem(input.MinBidIncrement); msg != "" {
		fields["minBidIncrement"] = msg
	}
	if input.ReservePrice != nil {
		if msg := amountProblem(*input.ReservePrice); msg != "" {
			fields["reservePrice"] = msg
		} else if input.ReservePrice.LessThan(input.StartingBid) {
			fields["reservePrice"] = "must be at least startingBid"
		}
	}
	if input.BuyNowPrice != nil {
		switch {
		case amountProblem(*input.BuyNowPrice) != "":
			fields["buyNowPrice"] = amountProblem(*input.BuyNowPrice)
		case !input.BuyNowPrice.GreaterThan(input.StartingBid):
			fields["buyNowPrice"] = "must be greater than startingBid"
		case input.ReservePrice != nil && input.BuyNowPrice.LessThan(*input.ReservePrice):
			fields["buyNowPrice"] = "must be at least reservePrice"
		}
	}

	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid auction parameters").WithDetails(fields)
	}
	return nil
}
