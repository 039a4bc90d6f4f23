package gridex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Params are the instance-wide settings fixed at initialization.
// Fee and URI can later be changed by Admin.
type Params struct {
	Granularity   int
	Stock         common.Address
	Money         common.Address
	StockDecimals uint8
	MoneyDecimals uint8
	Fee           uint32
	Admin         common.Address
	URI           string

	PriceMul *big.Int
	PriceDiv *big.Int
}

// NewParams validates the inputs and derives the decimal scaling factors.
// A nil fee selects the default fee for the granularity; zero is a valid fee.
func NewParams(granularity int, stock, money common.Address, stockDecimals, moneyDecimals uint8, fee *uint32, admin common.Address) (Params, error) {
	rate, err := DefaultFee(granularity)
	if err != nil {
		return Params{}, err
	}
	if fee != nil {
		rate = *fee
	}
	if rate >= FeeBase {
		return Params{}, fmt.Errorf("%w: %d", ErrInvalidFee, rate)
	}
	if stock == money {
		return Params{}, fmt.Errorf("stock and money must differ: %s", stock.Hex())
	}

	p := Params{
		Granularity:   granularity,
		Stock:         stock,
		Money:         money,
		StockDecimals: stockDecimals,
		MoneyDecimals: moneyDecimals,
		Fee:           rate,
		Admin:         admin,
	}
	p.PriceMul, p.PriceDiv = decimalScale(stockDecimals, moneyDecimals)
	return p, nil
}

// decimalScale returns 10^(money-stock) as a multiplier or 10^(stock-money)
// as a divisor. The other factor is always 1.
func decimalScale(stockDecimals, moneyDecimals uint8) (mul, div *big.Int) {
	ten := big.NewInt(10)
	if moneyDecimals >= stockDecimals {
		exp := big.NewInt(int64(moneyDecimals - stockDecimals))
		return new(big.Int).Exp(ten, exp, nil), big.NewInt(1)
	}
	exp := big.NewInt(int64(stockDecimals - moneyDecimals))
	return big.NewInt(1), new(big.Int).Exp(ten, exp, nil)
}

func (p Params) clone() Params {
	out := p
	out.PriceMul = new(big.Int).Set(p.PriceMul)
	out.PriceDiv = new(big.Int).Set(p.PriceDiv)
	return out
}
