package gridex

import (
	"fmt"
	"math/big"
	"sort"
)

const (
	// RatioBase is the fixed-point scale of a pool's sold ratio.
	RatioBase uint64 = 10_000_000_000_000_000_000
	// FeeBase is the scale of the trading fee (basis points).
	FeeBase uint32 = 10000

	// gridHeads is the number of price doublings covered by every codec.
	gridHeads = 64
)

// PriceBase is the fixed-point scale of codec prices (2^68).
var PriceBase = new(big.Int).Lsh(big.NewInt(1), 68)

var ratioBaseBig = new(big.Int).SetUint64(RatioBase)

// Mantissa corrections of 2^(k/n) scaled by 2^16, 2^19 or 2^20.
var (
	mantissa16  = [16]int64{0, 2902, 5932, 9096, 12400, 15850, 19454, 23216, 27146, 31249, 35534, 40009, 44682, 49562, 54658, 59979}
	mantissa64  = [8]int64{0, 5709, 11480, 17315, 23212, 29174, 35201, 41293}
	coarse64    = [8]int64{0, 5932, 12400, 19454, 27146, 35534, 44682, 54658}
	mantissa256 = [16]int64{0, 2843, 5694, 8552, 11418, 14292, 17174, 20063, 22961, 25866, 28779, 31700, 34629, 37566, 40511, 43464}
)

// Codec maps grid indexes to fixed-point prices for one granularity.
// Prices are precomputed for grids [0, MaxGrid], the last entry being the
// upper bound of the highest grid.
type Codec struct {
	n      int
	prices []*big.Int
}

// NewCodec builds the codec for n grids per price doubling (16, 64 or 256).
func NewCodec(n int) (*Codec, error) {
	var eval func(grid int) *big.Int
	switch n {
	case 16:
		eval = price16
	case 64:
		eval = price64
	case 256:
		eval = price256
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidGranularity, n)
	}

	maxGrid := gridHeads * n
	prices := make([]*big.Int, maxGrid+1)
	for g := 0; g <= maxGrid; g++ {
		prices[g] = eval(g)
	}
	return &Codec{n: n, prices: prices}, nil
}

// Granularity returns the number of grids per price doubling.
func (c *Codec) Granularity() int { return c.n }

// MaxGrid returns the exclusive upper bound of valid grid indexes.
func (c *Codec) MaxGrid() int { return gridHeads * c.n }

// GridToPrice returns the lower price of grid.
func (c *Codec) GridToPrice(grid int) (*big.Int, error) {
	if grid < 0 || grid >= c.MaxGrid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrid, grid)
	}
	return new(big.Int).Set(c.prices[grid]), nil
}

// PriceToGrid returns the largest grid whose price is not above price.
func (c *Codec) PriceToGrid(price *big.Int) (int, error) {
	if price == nil || price.Cmp(c.prices[0]) < 0 {
		return 0, ErrInvalidPrice
	}
	maxGrid := c.MaxGrid()
	idx := sort.Search(maxGrid, func(i int) bool {
		return c.prices[i].Cmp(price) > 0
	})
	return idx - 1, nil
}

// band returns the price bounds of grid without copying.
func (c *Codec) band(grid int) (lo, hi *big.Int) {
	return c.prices[grid], c.prices[grid+1]
}

func (c *Codec) validGrid(grid int) error {
	if grid < 0 || grid >= c.MaxGrid() {
		return fmt.Errorf("%w: %d", ErrInvalidGrid, grid)
	}
	return nil
}

func price16(grid int) *big.Int {
	head, tail := grid/16, grid%16
	p := big.NewInt(1<<16 + mantissa16[tail])
	return p.Lsh(p, uint(20+head))
}

func price64(grid int) *big.Int {
	head, tail := grid/64, grid%64
	p := big.NewInt(1<<19 + mantissa64[tail%8])
	p.Mul(p, big.NewInt(1<<16 + coarse64[tail/8]))
	return p.Lsh(p, uint(1+head))
}

func price256(grid int) *big.Int {
	head, tail := grid/256, grid%256
	p := big.NewInt(1<<20 + mantissa256[tail%16])
	p.Mul(p, big.NewInt(1<<16 + mantissa16[tail/16]))
	return p.Lsh(p, uint(head))
}

// DefaultFee returns the fee in basis points used for a granularity.
func DefaultFee(n int) (uint32, error) {
	switch n {
	case 16:
		return 30, nil
	case 64:
		return 10, nil
	case 256:
		return 5, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidGranularity, n)
	}
}
