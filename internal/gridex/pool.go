package gridex

import "math/big"

// Pool is the liquidity state of one grid.
//
// TotalStock is the stock-equivalent size of the pool. SoldRatio out of
// RatioBase of it has been sold for money while the price walked up through
// the grid, so the pool holds TotalStock*(1-SoldRatio) stock plus the money
// collected for the sold part.
type Pool struct {
	TotalShares *big.Int
	TotalStock  *big.Int
	SoldRatio   uint64
}

func newPool() *Pool {
	return &Pool{TotalShares: new(big.Int), TotalStock: new(big.Int)}
}

// Initialized reports whether the pool has outstanding shares.
func (p *Pool) Initialized() bool {
	return p != nil && p.TotalShares != nil && p.TotalShares.Sign() > 0
}

func (p *Pool) clone() *Pool {
	if p == nil {
		return newPool()
	}
	return &Pool{
		TotalShares: new(big.Int).Set(p.TotalShares),
		TotalStock:  new(big.Int).Set(p.TotalStock),
		SoldRatio:   p.SoldRatio,
	}
}

// valuation prices a pool of one grid. The marginal price moves linearly
// from lo (SoldRatio 0) to hi (SoldRatio RatioBase), so the money held for
// the sold part is the sold stock times the average of lo and the current
// price.
type valuation struct {
	lo, hi   *big.Int
	mul, div *big.Int
}

func (e *Engine) valuationOf(grid int) valuation {
	lo, hi := e.codec.band(grid)
	return valuation{lo: lo, hi: hi, mul: e.params.PriceMul, div: e.params.PriceDiv}
}

// price returns the marginal codec price at ratio.
func (v valuation) price(ratio uint64) *big.Int {
	p := new(big.Int).Sub(v.hi, v.lo)
	p.Mul(p, new(big.Int).SetUint64(ratio))
	p.Quo(p, ratioBaseBig)
	return p.Add(p, v.lo)
}

// sold returns the stock part of total already sold at ratio.
func (v valuation) sold(total *big.Int, ratio uint64) *big.Int {
	s := new(big.Int).Mul(total, new(big.Int).SetUint64(ratio))
	return s.Quo(s, ratioBaseBig)
}

// stock returns the stock held by a pool of size total at ratio.
func (v valuation) stock(total *big.Int, ratio uint64) *big.Int {
	return new(big.Int).Sub(total, v.sold(total, ratio))
}

// money returns the money held by a pool of size total at ratio.
func (v valuation) money(total *big.Int, ratio uint64) *big.Int {
	sold := v.sold(total, ratio)
	sum := new(big.Int).Add(v.lo, v.price(ratio))
	m := sold.Mul(sold, sum)
	m.Mul(m, v.mul)
	return m.Quo(m, v.moneyDenominator())
}

// holdings returns the stock and money attributed to p.
func (v valuation) holdings(p *Pool) (stock, money *big.Int) {
	if !p.Initialized() {
		return new(big.Int), new(big.Int)
	}
	return v.stock(p.TotalStock, p.SoldRatio), v.money(p.TotalStock, p.SoldRatio)
}

// stockForMoney converts money into stock at the average price (lo+price)/2,
// rounding down.
func (v valuation) stockForMoney(money *big.Int, price *big.Int) *big.Int {
	s := new(big.Int).Mul(money, v.moneyDenominator())
	den := new(big.Int).Add(v.lo, price)
	den.Mul(den, v.mul)
	return s.Quo(s, den)
}

// ratioForSold returns the smallest ratio whose sold stock reaches target,
// or one less when rounding would overshoot it.
func (v valuation) ratioForSold(total, target *big.Int) uint64 {
	if total.Sign() == 0 || target.Sign() <= 0 {
		return 0
	}
	if target.Cmp(total) >= 0 {
		return RatioBase
	}
	r := new(big.Int).Mul(target, ratioBaseBig)
	ceilDiv(r, r, total)
	ratio := r.Uint64()
	if ratio > 0 && v.sold(total, ratio).Cmp(target) > 0 {
		ratio--
	}
	return ratio
}

// ratioAtPrice returns the ratio whose marginal price is price, rounded up
// when roundUp is set and down otherwise, clamped to [0, RatioBase].
func (v valuation) ratioAtPrice(price *big.Int, roundUp bool) uint64 {
	if price.Cmp(v.lo) <= 0 {
		return 0
	}
	if price.Cmp(v.hi) >= 0 {
		return RatioBase
	}
	r := new(big.Int).Sub(price, v.lo)
	r.Mul(r, ratioBaseBig)
	width := new(big.Int).Sub(v.hi, v.lo)
	if roundUp {
		ceilDiv(r, r, width)
	} else {
		r.Quo(r, width)
	}
	return r.Uint64()
}

func (v valuation) moneyDenominator() *big.Int {
	return new(big.Int).Lsh(v.div, 69)
}

// ceilDiv sets z = ceil(x/y) for non-negative x and positive y.
func ceilDiv(z, x, y *big.Int) *big.Int {
	m := new(big.Int)
	z.QuoRem(x, y, m)
	if m.Sign() > 0 {
		z.Add(z, big.NewInt(1))
	}
	return z
}
