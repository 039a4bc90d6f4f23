package gridex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Arbitrage normalizes the window [low, high] around ref, the partially
// sold grid (0 < soldRatio < RatioBase): pools below ref become fully sold (all money) and pools above ref
// become fully unsold (all stock). The caller takes the other side of every
// move at the pools' own valuation, without fee. Running it twice in a row
// moves nothing the second time.
func (e *Engine) Arbitrage(ctx context.Context, caller common.Address, low, ref, high int) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "arbitrage", caller, func(tx *txn) error {
		if err := e.arbitrage(tx, caller, low, ref, high); err != nil {
			return err
		}
		emitSettle(tx, caller)
		return nil
	})
}

// ArbitrageAndBatchChangeShares runs Arbitrage and then BatchChangeShares in
// one operation. The slippage limits bound the share changes only.
func (e *Engine) ArbitrageAndBatchChangeShares(ctx context.Context, caller common.Address, low, ref, high, beginGrid int, changes []ShareChange, maxStockIn, maxMoneyIn *big.Int) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "arbitrage_batch_change_shares", caller, func(tx *txn) error {
		if err := e.arbitrage(tx, caller, low, ref, high); err != nil {
			return err
		}
		if err := e.applyBatch(tx, caller, beginGrid, changes, maxStockIn, maxMoneyIn); err != nil {
			return err
		}
		emitSettle(tx, caller)
		return nil
	})
}

func (e *Engine) arbitrage(tx *txn, caller common.Address, low, ref, high int) error {
	if low < 0 || low > ref || ref > high || high >= e.codec.MaxGrid() {
		return fmt.Errorf("%w: arbitrage %d/%d/%d", ErrInvalidRange, low, ref, high)
	}
	if !tx.initialized(ref) {
		return ErrPoolNotInit
	}
	if r := tx.pool(ref).SoldRatio; r == 0 || r == RatioBase {
		return fmt.Errorf("%w: grid %d ratio %d", ErrRefNotStraddling, ref, r)
	}

	for g := low; g < ref; {
		grid, ok := tx.next(g, ref-1, false)
		if !ok {
			break
		}
		g = grid + 1
		p := tx.pool(grid)
		if p.SoldRatio == RatioBase {
			continue
		}
		v := e.valuationOf(grid)
		stock0, money0 := v.holdings(p)
		p.SoldRatio = RatioBase
		stock1, money1 := v.holdings(p)

		gotStock := stock0.Sub(stock0, stock1)
		paidMoney := money1.Sub(money1, money0)
		tx.payIn(new(big.Int), paidMoney)
		tx.payOut(gotStock, new(big.Int))
		tx.crossed++
		tx.emit(Buy{Grid: grid, Operator: caller, GotStock: gotStock, PaidMoney: paidMoney})
	}

	for g := high; g > ref; {
		grid, ok := tx.next(g, ref+1, true)
		if !ok {
			break
		}
		g = grid - 1
		p := tx.pool(grid)
		if p.SoldRatio == 0 {
			continue
		}
		v := e.valuationOf(grid)
		stock0, money0 := v.holdings(p)
		p.SoldRatio = 0
		stock1, money1 := v.holdings(p)

		soldStock := stock1.Sub(stock1, stock0)
		gotMoney := money0.Sub(money0, money1)
		tx.payIn(soldStock, new(big.Int))
		tx.payOut(new(big.Int), gotMoney)
		tx.crossed++
		tx.emit(Sell{Grid: grid, Operator: caller, SoldStock: soldStock, GotMoney: gotMoney})
	}

	tx.emit(Arbitrage{Operator: caller, LowGrid: low, RefGrid: ref, HighGrid: high})
	return nil
}
