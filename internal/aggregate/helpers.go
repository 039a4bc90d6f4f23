package aggregate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"gridex/internal/gridex"
)

const ratioScale = 18

var yearSeconds = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))

func formatTokenAmount(value *big.Int, decimals uint8) string {
	return gridex.AmountDecimal(value, decimals).String()
}

func stringPtr(value string) *string {
	return &value
}

// averagePrice is money per stock in whole units over the window's fills.
func averagePrice(stock, money *big.Int, stockDecimals, moneyDecimals uint8) (decimal.Decimal, bool) {
	if stock == nil || stock.Sign() == 0 || money == nil {
		return decimal.Zero, false
	}
	s := gridex.AmountDecimal(stock, stockDecimals)
	m := gridex.AmountDecimal(money, moneyDecimals)
	return m.DivRound(s, ratioScale), true
}

func computeRate(fee, tvl *big.Int) *string {
	if fee == nil || tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	rate := decimal.NewFromBigInt(fee, 0).DivRound(decimal.NewFromBigInt(tvl, 0), ratioScale)
	return stringPtr(rate.String())
}

// computeAPR annualizes the window's fees over the engine's balances, both
// valued in money at price.
func computeAPR(feeStock, feeMoney, tvlStock, tvlMoney decimal.Decimal, price decimal.Decimal, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	tvl := tvlMoney.Add(tvlStock.Mul(price))
	if tvl.Sign() <= 0 {
		return nil
	}
	fees := feeMoney.Add(feeStock.Mul(price))
	apr := fees.Mul(yearSeconds).DivRound(tvl.Mul(decimal.NewFromInt(int64(windowSeconds))), ratioScale)
	return stringPtr(apr.String())
}

func wholeUnits(value *big.Int, decimals uint8) decimal.Decimal {
	return gridex.AmountDecimal(value, decimals)
}
