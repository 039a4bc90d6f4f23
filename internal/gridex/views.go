package gridex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolShares pairs a grid's pool with one owner's balance in it.
type PoolShares struct {
	Grid   int
	Pool   Pool
	Shares *big.Int
}

// Pool returns a copy of grid's pool; uninitialized grids return a zero pool.
func (e *Engine) Pool(grid int) (Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return Pool{}, ErrNotInit
	}
	if err := e.codec.validGrid(grid); err != nil {
		return Pool{}, err
	}
	return *e.ledger.pools[grid].clone(), nil
}

// PoolAndShares returns the pools of [start, end) with owner's balance in each.
func (e *Engine) PoolAndShares(owner common.Address, start, end int) ([]PoolShares, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return nil, ErrNotInit
	}
	if start < 0 || end > e.codec.MaxGrid() || start > end {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, start, end)
	}

	out := make([]PoolShares, 0, end-start)
	for grid := start; grid < end; grid++ {
		out = append(out, PoolShares{
			Grid:   grid,
			Pool:   *e.ledger.pools[grid].clone(),
			Shares: e.balanceLocked(owner, grid),
		})
	}
	return out, nil
}

// BalanceOf returns owner's shares in grid.
func (e *Engine) BalanceOf(owner common.Address, grid int) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceLocked(owner, grid)
}

// BalanceOfBatch returns the shares of owners[i] in grids[i].
func (e *Engine) BalanceOfBatch(owners []common.Address, grids []int) ([]*big.Int, error) {
	if len(owners) != len(grids) {
		return nil, fmt.Errorf("%w: %d owners, %d grids", ErrLengthMismatch, len(owners), len(grids))
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*big.Int, len(owners))
	for i := range owners {
		out[i] = e.balanceLocked(owners[i], grids[i])
	}
	return out, nil
}

func (e *Engine) balanceLocked(owner common.Address, grid int) *big.Int {
	if e.ledger == nil {
		return new(big.Int)
	}
	if b, ok := e.ledger.shares[shareKey{owner: owner, grid: grid}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// MaskWords returns the initialized-grid bitmap as 256-bit words, grid g
// being bit g%256 of word g/256.
func (e *Engine) MaskWords() ([]*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return nil, ErrNotInit
	}
	return e.ledger.bitmap.Words(), nil
}

// Holdings returns the stock and money attributed to grid's pool.
func (e *Engine) Holdings(grid int) (stock, money *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return nil, nil, ErrNotInit
	}
	if err := e.codec.validGrid(grid); err != nil {
		return nil, nil, err
	}
	stock, money = e.valuationOf(grid).holdings(e.ledger.pools[grid])
	return stock, money, nil
}

// TotalHoldings returns the stock and money attributed to all pools. The
// engine's custody balances always equal these sums.
func (e *Engine) TotalHoldings() (stock, money *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return nil, nil, ErrNotInit
	}
	stock, money = new(big.Int), new(big.Int)
	for grid, p := range e.ledger.pools {
		s, m := e.valuationOf(grid).holdings(p)
		stock.Add(stock, s)
		money.Add(money, m)
	}
	return stock, money, nil
}

// InitializedGrids returns the grids holding a pool, in ascending order.
func (e *Engine) InitializedGrids() ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return nil, ErrNotInit
	}
	var grids []int
	for grid := 0; ; grid++ {
		next, ok := e.ledger.bitmap.NextUp(grid, e.codec.MaxGrid()-1)
		if !ok {
			return grids, nil
		}
		grids = append(grids, next)
		grid = next
	}
}
