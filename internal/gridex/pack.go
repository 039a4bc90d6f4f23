package gridex

import (
	"fmt"
	"math/big"
)

var (
	two64      = new(big.Int).Lsh(big.NewInt(1), 64)
	maxPacked  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	mask16     = big.NewInt(0xffff)
	maxAmount  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))
	maxGridArg = 0xffff
)

// PackShareChange encodes a share change as Delta*2^64 + SoldRatio.
func PackShareChange(c ShareChange) *big.Int {
	x := new(big.Int)
	if c.Delta != nil {
		x.Mul(c.Delta, two64)
	}
	return x.Add(x, new(big.Int).SetUint64(c.SoldRatio))
}

// UnpackShareChange reverses PackShareChange. The ratio is the non-negative
// remainder modulo 2^64, so negative deltas round-trip.
func UnpackShareChange(x *big.Int) ShareChange {
	ratio := new(big.Int).Mod(x, two64)
	delta := new(big.Int).Sub(x, ratio)
	delta.Quo(delta, two64)
	return ShareChange{Delta: delta, SoldRatio: ratio.Uint64()}
}

// PackTradeArg encodes a batch trade entry as Amount<<32 | Grid<<16 | StopGrid.
func PackTradeArg(arg TradeArg) (*big.Int, error) {
	if arg.Amount == nil || arg.Amount.Sign() < 0 || arg.Amount.Cmp(maxAmount) > 0 {
		return nil, fmt.Errorf("%w: trade amount %v", ErrInvalidAmount, arg.Amount)
	}
	if arg.Grid < 0 || arg.Grid > maxGridArg || arg.StopGrid < 0 || arg.StopGrid > maxGridArg {
		return nil, fmt.Errorf("%w: trade grids %d/%d", ErrInvalidGrid, arg.Grid, arg.StopGrid)
	}
	x := new(big.Int).Lsh(arg.Amount, 32)
	x.Or(x, big.NewInt(int64(arg.Grid)<<16|int64(arg.StopGrid)))
	return x, nil
}

// UnpackTradeArg reverses PackTradeArg.
func UnpackTradeArg(x *big.Int) (TradeArg, error) {
	if x == nil || x.Sign() < 0 || x.Cmp(maxPacked) > 0 {
		return TradeArg{}, fmt.Errorf("%w: packed trade %v", ErrInvalidAmount, x)
	}
	stop := new(big.Int).And(x, mask16)
	grid := new(big.Int).Rsh(x, 16)
	grid.And(grid, mask16)
	return TradeArg{
		Amount:   new(big.Int).Rsh(x, 32),
		Grid:     int(grid.Int64()),
		StopGrid: int(stop.Int64()),
	}, nil
}
