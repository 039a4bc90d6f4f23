package gridex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TradeArg is one walk of a batch trade: Amount of stock between Grid and
// the exclusive StopGrid.
type TradeArg struct {
	Amount   *big.Int
	Grid     int
	StopGrid int
}

// SellToPools sells amountIn stock into the pools from startGrid down to the
// exclusive endGrid. A nil minPrice means no limit.
func (e *Engine) SellToPools(ctx context.Context, caller common.Address, minPrice, amountIn *big.Int, startGrid, endGrid int) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "sell", caller, func(tx *txn) error {
		if err := e.sell(tx, caller, minPrice, amountIn, startGrid, endGrid); err != nil {
			return err
		}
		emitSettle(tx, caller)
		return nil
	})
}

// BuyFromPools buys amountIn stock from the pools from startGrid up to the
// exclusive endGrid, paying money plus fee. A nil maxPrice means no limit.
func (e *Engine) BuyFromPools(ctx context.Context, caller common.Address, maxPrice, amountIn *big.Int, startGrid, endGrid int) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "buy", caller, func(tx *txn) error {
		if err := e.buy(tx, caller, maxPrice, amountIn, startGrid, endGrid); err != nil {
			return err
		}
		emitSettle(tx, caller)
		return nil
	})
}

// BatchTrade runs every sell and then every buy without price limits and
// settles the net amounts once.
func (e *Engine) BatchTrade(ctx context.Context, caller common.Address, sells, buys []TradeArg) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "batch_trade", caller, func(tx *txn) error {
		for i, arg := range sells {
			if err := e.sell(tx, caller, nil, arg.Amount, arg.Grid, arg.StopGrid); err != nil {
				return fmt.Errorf("sell %d: %w", i, err)
			}
		}
		for i, arg := range buys {
			if err := e.buy(tx, caller, nil, arg.Amount, arg.Grid, arg.StopGrid); err != nil {
				return fmt.Errorf("buy %d: %w", i, err)
			}
		}
		emitSettle(tx, caller)
		return nil
	})
}

func (e *Engine) sell(tx *txn, caller common.Address, minPrice, amountIn *big.Int, startGrid, endGrid int) error {
	if err := e.codec.validGrid(startGrid); err != nil {
		return err
	}
	if endGrid < -1 || endGrid >= startGrid {
		return fmt.Errorf("%w: sell from %d to %d", ErrInvalidRange, startGrid, endGrid)
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return ErrInvalidAmount
	}
	if minPrice == nil {
		minPrice = new(big.Int)
	}

	remaining := new(big.Int).Set(amountIn)
	first := true
	for g := startGrid; g > endGrid && remaining.Sign() > 0; {
		grid, ok := tx.next(g, endGrid+1, true)
		if !ok {
			break
		}
		g = grid - 1

		p := tx.pool(grid)
		if p.SoldRatio == 0 {
			continue
		}
		v := e.valuationOf(grid)
		if v.price(p.SoldRatio).Cmp(minPrice) <= 0 {
			if first {
				return ErrPriceTooLow
			}
			break
		}
		first = false

		stockIn, moneyOut, stop := v.sellInto(p, remaining, minPrice, e.params.Fee)
		if stockIn.Sign() > 0 {
			remaining.Sub(remaining, stockIn)
			tx.payIn(stockIn, new(big.Int))
			tx.payOut(new(big.Int), moneyOut)
			tx.crossed++
			tx.emit(Sell{Grid: grid, Operator: caller, SoldStock: stockIn, GotMoney: moneyOut})
		}
		if stop {
			break
		}
	}
	return nil
}

func (e *Engine) buy(tx *txn, caller common.Address, maxPrice, amountIn *big.Int, startGrid, endGrid int) error {
	if err := e.codec.validGrid(startGrid); err != nil {
		return err
	}
	if endGrid <= startGrid || endGrid > e.codec.MaxGrid() {
		return fmt.Errorf("%w: buy from %d to %d", ErrInvalidRange, startGrid, endGrid)
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return ErrInvalidAmount
	}

	remaining := new(big.Int).Set(amountIn)
	first := true
	for g := startGrid; g < endGrid && remaining.Sign() > 0; {
		grid, ok := tx.next(g, endGrid-1, false)
		if !ok {
			break
		}
		g = grid + 1

		p := tx.pool(grid)
		if p.SoldRatio == RatioBase {
			continue
		}
		v := e.valuationOf(grid)
		if maxPrice != nil && v.price(p.SoldRatio).Cmp(maxPrice) >= 0 {
			if first {
				return ErrPriceTooHigh
			}
			break
		}
		first = false

		stockOut, moneyIn, stop := v.buyFrom(p, remaining, maxPrice, e.params.Fee)
		if stockOut.Sign() > 0 {
			remaining.Sub(remaining, stockOut)
			tx.payIn(new(big.Int), moneyIn)
			tx.payOut(stockOut, new(big.Int))
			tx.crossed++
			tx.emit(Buy{Grid: grid, Operator: caller, GotStock: stockOut, PaidMoney: moneyIn})
		}
		if stop {
			break
		}
	}
	return nil
}

func emitSettle(tx *txn, caller common.Address) {
	if tx.crossed == 0 {
		return
	}
	tx.emit(Settle{
		Operator: caller,
		StockIn:  new(big.Int).Set(tx.stockIn),
		StockOut: new(big.Int).Set(tx.stockOut),
		MoneyIn:  new(big.Int).Set(tx.moneyIn),
		MoneyOut: new(big.Int).Set(tx.moneyOut),
	})
}

// sellInto fills p with up to budget stock, fee included, without pushing
// the marginal price below minPrice. The fee stays in the pool as extra
// stock. stop reports that the walk must not continue past this grid.
func (v valuation) sellInto(p *Pool, budget, minPrice *big.Int, fee uint32) (stockIn, moneyOut *big.Int, stop bool) {
	stock0, money0 := v.holdings(p)
	total, ratio := new(big.Int).Set(p.TotalStock), p.SoldRatio
	soldOld := v.sold(total, ratio)
	capRatio := v.ratioAtPrice(minPrice, true)

	newTotal := new(big.Int).Set(total)
	var newRatio uint64
	filled := false

	if capRatio == 0 {
		feeAmt := feeOnNet(soldOld, fee)
		if new(big.Int).Add(soldOld, feeAmt).Cmp(budget) <= 0 {
			newTotal.Add(total, feeAmt)
			filled = true
		}
	}
	if !filled && capRatio > 0 {
		stop = true
		net := new(big.Int).Sub(soldOld, v.sold(total, capRatio))
		feeAmt := feeOnNet(net, fee)
		if new(big.Int).Add(net, feeAmt).Cmp(budget) <= 0 {
			newTotal.Add(total, feeAmt)
			newRatio = capRatio
			filled = true
		}
	}
	if !filled {
		stop = true
		feeAmt := feeOnGross(budget, fee)
		net := new(big.Int).Sub(budget, feeAmt)
		target := new(big.Int).Sub(soldOld, net)
		if target.Sign() < 0 {
			target.SetInt64(0)
		}
		newTotal.Add(total, feeAmt)
		r := new(big.Int).Mul(target, ratioBaseBig)
		ceilDiv(r, r, newTotal)
		newRatio = r.Uint64()
		if newRatio < capRatio {
			newRatio = capRatio
		}
	}
	if newRatio > ratio {
		return new(big.Int), new(big.Int), true
	}

	p.TotalStock.Set(newTotal)
	p.SoldRatio = newRatio
	stock1, money1 := v.holdings(p)
	stockIn = stock1.Sub(stock1, stock0)
	moneyOut = money0.Sub(money0, money1)
	if stockIn.Sign() <= 0 || moneyOut.Sign() < 0 {
		p.TotalStock.Set(total)
		p.SoldRatio = ratio
		return new(big.Int), new(big.Int), true
	}
	return stockIn, moneyOut, stop
}

// buyFrom takes up to want stock out of p without pushing the marginal price
// above maxPrice (nil for none). The fee is charged in money on top of the
// cost and kept by growing the pool's size.
func (v valuation) buyFrom(p *Pool, want, maxPrice *big.Int, fee uint32) (stockOut, moneyIn *big.Int, stop bool) {
	stock0, money0 := v.holdings(p)
	total, ratio := new(big.Int).Set(p.TotalStock), p.SoldRatio

	capRatio := RatioBase
	if maxPrice != nil && maxPrice.Cmp(v.hi) < 0 {
		capRatio = v.ratioAtPrice(maxPrice, false)
	}

	newTotal := new(big.Int).Set(total)
	var newRatio uint64

	if capRatio == RatioBase && want.Cmp(stock0) >= 0 {
		fullMoney := v.money(total, RatioBase)
		net := new(big.Int).Sub(fullMoney, money0)
		kept := fullMoney.Add(fullMoney, feeOnNet(net, fee))
		if grown := v.stockForMoney(kept, v.hi); grown.Cmp(total) > 0 {
			newTotal.Set(grown)
		}
		newRatio = RatioBase
	} else {
		stop = true
		target := v.sold(total, ratio)
		target.Add(target, want)
		r := v.ratioForSold(total, target)
		if r > capRatio {
			r = capRatio
		}
		if r <= ratio {
			return new(big.Int), new(big.Int), true
		}
		net := v.money(total, r)
		net.Sub(net, money0)
		extra := v.stockForMoney(feeOnNet(net, fee), v.price(r))
		sold := v.sold(total, r)
		sold.Add(sold, extra)
		newTotal.Add(total, extra)
		newRatio = v.ratioForSold(newTotal, sold)
		if newRatio > capRatio {
			newRatio = capRatio
		}
		if newRatio < ratio {
			newRatio = ratio
		}
	}

	p.TotalStock.Set(newTotal)
	p.SoldRatio = newRatio
	stock1, money1 := v.holdings(p)
	stockOut = stock0.Sub(stock0, stock1)
	moneyIn = money1.Sub(money1, money0)
	if stockOut.Sign() <= 0 || moneyIn.Sign() <= 0 {
		p.TotalStock.Set(total)
		p.SoldRatio = ratio
		return new(big.Int), new(big.Int), true
	}
	return stockOut, moneyIn, stop
}

// feeOnNet returns the fee that makes net the post-fee part of a gross
// amount, rounded up.
func feeOnNet(net *big.Int, fee uint32) *big.Int {
	f := new(big.Int).Mul(net, big.NewInt(int64(fee)))
	return ceilDiv(f, f, big.NewInt(int64(FeeBase-fee)))
}

// feeOnGross returns floor(gross*fee/FeeBase).
func feeOnGross(gross *big.Int, fee uint32) *big.Int {
	f := new(big.Int).Mul(gross, big.NewInt(int64(fee)))
	return f.Quo(f, big.NewInt(int64(FeeBase)))
}
