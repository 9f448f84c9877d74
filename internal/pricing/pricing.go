// Package pricing holds the platform markup applied to catalog prices.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"shopvisit/internal/model"
)

var (
	ErrNegativePrice  = errors.New("sale price is negative")
	ErrUnknownFeeType = errors.New("unknown platform fee type")
)

var (
	percentageMarkup = decimal.RequireFromString("1.10")
	flatFee          = decimal.NewFromInt(10)
)

// FinalPrice applies the platform fee to a sale price. Order preview and order
// submission must both go through this function.
func FinalPrice(p model.Pricing) (decimal.Decimal, error) {
	if p.SalePrice.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}

	switch p.PlatformFeeType {
	case model.FeePercentage:
		return p.SalePrice.Mul(percentageMarkup).Round(2), nil
	case model.FeeFlat, "":
		// Catalogs without a fee type are charged the flat fee.
		return p.SalePrice.Add(flatFee), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownFeeType, p.PlatformFeeType)
	}
}
