package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopvisit/internal/model"
)

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name string
		sale string
		fee  model.FeeType
		want string
	}{
		{"percentage whole", "100", model.FeePercentage, "110"},
		{"percentage rounds half up", "0.05", model.FeePercentage, "0.06"},
		{"percentage cents", "19.99", model.FeePercentage, "21.99"},
		{"percentage zero", "0", model.FeePercentage, "0"},
		{"flat", "100", model.FeeFlat, "110"},
		{"flat cents", "19.99", model.FeeFlat, "29.99"},
		{"flat zero", "0", model.FeeFlat, "10"},
		{"missing fee type is flat", "5", "", "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FinalPrice(model.Pricing{SalePrice: decimal.RequireFromString(tt.sale), PlatformFeeType: tt.fee})
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestFinalPriceInvariant(t *testing.T) {
	for cents := int64(0); cents <= 100000; cents += 37 {
		sale := decimal.New(cents, -2)

		pct, err := FinalPrice(model.Pricing{SalePrice: sale, PlatformFeeType: model.FeePercentage})
		require.NoError(t, err)
		assert.True(t, pct.Equal(sale.Mul(decimal.RequireFromString("1.1")).Round(2)))

		flat, err := FinalPrice(model.Pricing{SalePrice: sale, PlatformFeeType: model.FeeFlat})
		require.NoError(t, err)
		assert.True(t, flat.Equal(sale.Add(decimal.NewFromInt(10))))

		again, _ := FinalPrice(model.Pricing{SalePrice: sale, PlatformFeeType: model.FeePercentage})
		assert.Equal(t, pct.String(), again.String())
	}
}

func TestFinalPriceErrors(t *testing.T) {
	_, err := FinalPrice(model.Pricing{SalePrice: decimal.NewFromInt(-1), PlatformFeeType: model.FeeFlat})
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = FinalPrice(model.Pricing{SalePrice: decimal.NewFromInt(1), PlatformFeeType: "tiered"})
	assert.ErrorIs(t, err, ErrUnknownFeeType)
}
