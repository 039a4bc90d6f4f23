package gridex

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// priceDisplayPlaces covers the smallest codec price, 2^-32, with eight
// significant digits.
const priceDisplayPlaces = 24

var priceBaseDecimal = decimal.NewFromBigInt(PriceBase, 0)

// PriceDecimal converts a codec price to whole money units per whole stock
// unit. Decimal scaling is already folded into the engine's price scale.
func PriceDecimal(price *big.Int) decimal.Decimal {
	if price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(price, 0).DivRound(priceBaseDecimal, priceDisplayPlaces)
}

// DecimalToPrice converts a human price back to codec units, rounding down.
func DecimalToPrice(d decimal.Decimal) (*big.Int, error) {
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, d.String())
	}
	return d.Mul(priceBaseDecimal).Floor().BigInt(), nil
}

// AmountDecimal scales a raw asset amount by its decimals.
func AmountDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
