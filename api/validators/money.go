package validators

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
)

// moneyTag validates a decimal string amount: positive, cent precision.
// Upper bounds depend on storage and are checked by the auction service.
const moneyTag = "money"

func validMoney(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// ParseMoney converts a decimal string amount already checked by the money tag.
func ParseMoney(field, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be a decimal string").
			WithDetails(map[string]string{field: "must be a decimal string"})
	}
	return amount, nil
}

// ParseOptionalMoney returns nil for an absent or blank amount.
func ParseOptionalMoney(field string, raw *string) (*decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	amount, err := ParseMoney(field, *raw)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}
