package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"gridex/internal/gridex"
	"gridex/internal/model"
)

// Accumulator holds the raw trade totals of one engine window.
type Accumulator struct {
	Address     string
	Pair        model.PairMeta
	WindowStart uint64
	WindowEnd   uint64
	BuyCount    uint64
	SellCount   uint64
	StockVolume *big.Int
	MoneyVolume *big.Int
	FeeStock    *big.Int
	FeeMoney    *big.Int
	LowGrid     int
	HighGrid    int
	LastTS      uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		Address:     record.Address,
		Pair:        record.Pair,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		StockVolume: big.NewInt(0),
		MoneyVolume: big.NewInt(0),
		FeeStock:    big.NewInt(0),
		FeeMoney:    big.NewInt(0),
		LowGrid:     -1,
		HighGrid:    -1,
		LastTS:      record.Timestamp,
	}
}

// Trades returns the number of fills in the window.
func (a *Accumulator) Trades() uint64 {
	return a.BuyCount + a.SellCount
}

// AddEvent folds a Buy or Sell fill into the window; other events only
// refresh the pair metadata.
func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.Pair = record.Pair
	}

	switch record.EventName {
	case "Buy":
		var buy model.BuyEventData
		if err := json.Unmarshal(record.Decoded, &buy); err != nil {
			return fmt.Errorf("decode buy: %w", err)
		}
		stock, err := parseBigInt(buy.GotStock)
		if err != nil {
			return err
		}
		money, err := parseBigInt(buy.PaidMoney)
		if err != nil {
			return err
		}
		a.StockVolume.Add(a.StockVolume, stock)
		a.MoneyVolume.Add(a.MoneyVolume, money)
		a.FeeMoney.Add(a.FeeMoney, feeFromGross(money, a.Pair.Fee))
		a.BuyCount++
		a.touch(int(buy.Grid))
	case "Sell":
		var sell model.SellEventData
		if err := json.Unmarshal(record.Decoded, &sell); err != nil {
			return fmt.Errorf("decode sell: %w", err)
		}
		stock, err := parseBigInt(sell.SoldStock)
		if err != nil {
			return err
		}
		money, err := parseBigInt(sell.GotMoney)
		if err != nil {
			return err
		}
		a.StockVolume.Add(a.StockVolume, stock)
		a.MoneyVolume.Add(a.MoneyVolume, money)
		a.FeeStock.Add(a.FeeStock, feeFromGross(stock, a.Pair.Fee))
		a.SellCount++
		a.touch(int(sell.Grid))
	}
	return nil
}

func (a *Accumulator) touch(grid int) {
	if a.LowGrid < 0 || grid < a.LowGrid {
		a.LowGrid = grid
	}
	if grid > a.HighGrid {
		a.HighGrid = grid
	}
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}

// feeFromGross estimates the fee part of a fee-inclusive amount. Fills pay
// the fee on top of the net amount, so this is gross*fee/FeeBase.
func feeFromGross(gross *big.Int, fee uint32) *big.Int {
	if gross == nil || fee == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(gross, big.NewInt(int64(fee)))
	return out.Quo(out, big.NewInt(int64(gridex.FeeBase)))
}
