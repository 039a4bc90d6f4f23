package gridex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ShareChange is one grid's share delta. SoldRatio only matters when the
// change creates the pool.
type ShareChange struct {
	Delta     *big.Int
	SoldRatio uint64
}

// ChangeShares mints (positive delta) or burns (negative delta) caller's
// shares of grid and settles the proportional stock and money.
func (e *Engine) ChangeShares(ctx context.Context, caller common.Address, grid int, change ShareChange) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "change_shares", caller, func(tx *txn) error {
		return e.applyChange(tx, caller, grid, change)
	})
}

// InitPool creates grid's pool with shares at soldRatio.
func (e *Engine) InitPool(ctx context.Context, caller common.Address, grid int, shares *big.Int, soldRatio uint64) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "init_pool", caller, func(tx *txn) error {
		if err := e.codec.validGrid(grid); err != nil {
			return err
		}
		if soldRatio > RatioBase {
			return ErrInvalidRatio
		}
		if tx.initialized(grid) {
			return ErrAlreadyCreated
		}
		if shares == nil || shares.Sign() <= 0 {
			return ErrInvalidShares
		}
		return e.applyChange(tx, caller, grid, ShareChange{Delta: shares, SoldRatio: soldRatio})
	})
}

// BatchChangeShares applies changes to the grids beginGrid, beginGrid+1, ...
// and settles the net flows once. The batch fails when the caller would pay
// more than maxStockIn or maxMoneyIn; a nil limit is unbounded.
func (e *Engine) BatchChangeShares(ctx context.Context, caller common.Address, beginGrid int, changes []ShareChange, maxStockIn, maxMoneyIn *big.Int) (Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.execute(ctx, "batch_change_shares", caller, func(tx *txn) error {
		return e.applyBatch(tx, caller, beginGrid, changes, maxStockIn, maxMoneyIn)
	})
}

func (e *Engine) applyBatch(tx *txn, caller common.Address, beginGrid int, changes []ShareChange, maxStockIn, maxMoneyIn *big.Int) error {
	stockIn, moneyIn := new(big.Int).Set(tx.stockIn), new(big.Int).Set(tx.moneyIn)
	stockOut, moneyOut := new(big.Int).Set(tx.stockOut), new(big.Int).Set(tx.moneyOut)

	for i, change := range changes {
		if err := e.applyChange(tx, caller, beginGrid+i, change); err != nil {
			return fmt.Errorf("grid %d: %w", beginGrid+i, err)
		}
	}

	netStock := new(big.Int).Sub(tx.stockIn, stockIn)
	netStock.Sub(netStock, new(big.Int).Sub(tx.stockOut, stockOut))
	netMoney := new(big.Int).Sub(tx.moneyIn, moneyIn)
	netMoney.Sub(netMoney, new(big.Int).Sub(tx.moneyOut, moneyOut))

	if maxStockIn != nil && netStock.Cmp(maxStockIn) > 0 {
		return ErrTooMuchStockPaid
	}
	if maxMoneyIn != nil && netMoney.Cmp(maxMoneyIn) > 0 {
		return ErrTooMuchMoneyPaid
	}
	return nil
}

// applyChange resizes grid's pool by change.Delta shares. The pool size
// moves in proportion to the shares, rounded up, so deposits never pay less
// and withdrawals never receive more than their exact share. The caller pays
// or receives the difference of the pool holdings.
func (e *Engine) applyChange(tx *txn, caller common.Address, grid int, change ShareChange) error {
	if err := e.codec.validGrid(grid); err != nil {
		return err
	}
	delta := change.Delta
	if delta == nil || delta.Sign() == 0 {
		return nil
	}

	v := e.valuationOf(grid)
	p := tx.pool(grid)
	balance := tx.balance(caller, grid)
	stockBefore, moneyBefore := v.holdings(p)

	switch {
	case !p.Initialized() && delta.Sign() < 0:
		return ErrPoolNotInit
	case !p.Initialized():
		if change.SoldRatio > RatioBase {
			return ErrInvalidRatio
		}
		p.TotalShares.Set(delta)
		p.TotalStock.Set(delta)
		p.SoldRatio = change.SoldRatio
	default:
		if delta.Sign() < 0 && balance.CmpAbs(delta) < 0 {
			return ErrInsufficientShares
		}
		shares := new(big.Int).Add(p.TotalShares, delta)
		total := new(big.Int).Mul(p.TotalStock, shares)
		ceilDiv(total, total, p.TotalShares)
		p.TotalShares.Set(shares)
		p.TotalStock.Set(total)
		if shares.Sign() == 0 {
			p.SoldRatio = 0
		}
	}
	balance.Add(balance, delta)

	stockAfter, moneyAfter := v.holdings(p)
	if delta.Sign() > 0 {
		tx.payIn(stockAfter.Sub(stockAfter, stockBefore), moneyAfter.Sub(moneyAfter, moneyBefore))
		tx.emit(TransferSingle{Operator: caller, To: caller, Grid: grid, Value: new(big.Int).Set(delta)})
	} else {
		tx.payOut(stockBefore.Sub(stockBefore, stockAfter), moneyBefore.Sub(moneyBefore, moneyAfter))
		tx.emit(TransferSingle{Operator: caller, From: caller, Grid: grid, Value: new(big.Int).Neg(delta)})
	}
	return nil
}
