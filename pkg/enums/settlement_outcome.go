package enums

import "fmt"

// SettlementOutcome is the single result recorded for an ended auction.
type SettlementOutcome string

const (
	SettlementOutcomeSold   SettlementOutcome = "sold"
	SettlementOutcomeUnsold SettlementOutcome = "unsold"
)

// UnsoldReason explains why an ended auction produced no winner.
type UnsoldReason string

const (
	UnsoldReasonNoBids        UnsoldReason = "no_bids"
	UnsoldReasonReserveNotMet UnsoldReason = "reserve_not_met"
)

var validSettlementOutcomes = []SettlementOutcome{
	SettlementOutcomeSold,
	SettlementOutcomeUnsold,
}

func (o SettlementOutcome) IsValid() bool {
	for _, candidate := range validSettlementOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

func ParseSettlementOutcome(value string) (SettlementOutcome, error) {
	for _, candidate := range validSettlementOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement outcome %q", value)
}
