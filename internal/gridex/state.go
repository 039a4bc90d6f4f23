package gridex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type shareKey struct {
	owner common.Address
	grid  int
}

// ledger is the committed state: pools, share balances and the bitmap.
type ledger struct {
	pools  map[int]*Pool
	shares map[shareKey]*big.Int
	bitmap *Bitmap
}

func newLedger(maxGrid int) *ledger {
	return &ledger{
		pools:  make(map[int]*Pool),
		shares: make(map[shareKey]*big.Int),
		bitmap: NewBitmap(maxGrid),
	}
}

// txn buffers the mutations of one operation. Nothing reaches the ledger
// until commit, so a failed operation is discarded by dropping its txn.
type txn struct {
	base   *ledger
	pools  map[int]*Pool
	shares map[shareKey]*big.Int
	events []Event

	stockIn, stockOut *big.Int
	moneyIn, moneyOut *big.Int

	// crossed counts the grids a trade filled against.
	crossed int
}

func (l *ledger) begin() *txn {
	return &txn{
		base:     l,
		pools:    make(map[int]*Pool),
		shares:   make(map[shareKey]*big.Int),
		stockIn:  new(big.Int),
		stockOut: new(big.Int),
		moneyIn:  new(big.Int),
		moneyOut: new(big.Int),
	}
}

// pool returns the working copy of grid's pool, creating an empty one.
func (t *txn) pool(grid int) *Pool {
	if p, ok := t.pools[grid]; ok {
		return p
	}
	p := t.base.pools[grid].clone()
	t.pools[grid] = p
	return p
}

func (t *txn) initialized(grid int) bool {
	if p, ok := t.pools[grid]; ok {
		return p.Initialized()
	}
	return t.base.bitmap.IsSet(grid)
}

// next returns the nearest initialized grid from `from` toward `to`, both
// inclusive, honoring pools created or emptied inside the txn.
func (t *txn) next(from, to int, down bool) (int, bool) {
	for {
		var cand int
		var ok bool
		if down {
			cand, ok = t.base.bitmap.NextDown(from, to)
		} else {
			cand, ok = t.base.bitmap.NextUp(from, to)
		}
		for grid, p := range t.pools {
			if !p.Initialized() || t.base.bitmap.IsSet(grid) {
				continue
			}
			if down && grid <= from && grid >= to && (!ok || grid > cand) {
				cand, ok = grid, true
			}
			if !down && grid >= from && grid <= to && (!ok || grid < cand) {
				cand, ok = grid, true
			}
		}
		if !ok {
			return 0, false
		}
		if t.initialized(cand) {
			return cand, true
		}
		if down {
			from = cand - 1
		} else {
			from = cand + 1
		}
	}
}

func (t *txn) balance(owner common.Address, grid int) *big.Int {
	key := shareKey{owner: owner, grid: grid}
	if b, ok := t.shares[key]; ok {
		return b
	}
	b := new(big.Int)
	if committed, ok := t.base.shares[key]; ok {
		b.Set(committed)
	}
	t.shares[key] = b
	return b
}

func (t *txn) emit(ev Event) {
	t.events = append(t.events, ev)
}

// payIn records an amount the caller owes the engine.
func (t *txn) payIn(stock, money *big.Int) {
	t.stockIn.Add(t.stockIn, stock)
	t.moneyIn.Add(t.moneyIn, money)
}

// payOut records an amount the engine owes the caller.
func (t *txn) payOut(stock, money *big.Int) {
	t.stockOut.Add(t.stockOut, stock)
	t.moneyOut.Add(t.moneyOut, money)
}

// delta returns the net amounts owed by the caller.
func (t *txn) delta() Delta {
	return Delta{
		Stock: new(big.Int).Sub(t.stockIn, t.stockOut),
		Money: new(big.Int).Sub(t.moneyIn, t.moneyOut),
	}
}

// commit applies the buffered pools and balances. Pools whose shares
// dropped to zero are removed together with their bitmap bit.
func (t *txn) commit() {
	for grid, p := range t.pools {
		if p.Initialized() {
			t.base.pools[grid] = p
			t.base.bitmap.Set(grid)
			continue
		}
		delete(t.base.pools, grid)
		t.base.bitmap.Clear(grid)
	}
	for key, b := range t.shares {
		if b.Sign() == 0 {
			delete(t.base.shares, key)
			continue
		}
		t.base.shares[key] = b
	}
}

// Delta is the net movement of both assets for one operation, seen from the
// engine: positive amounts are paid by the caller, negative ones are paid to
// the caller.
type Delta struct {
	Stock *big.Int
	Money *big.Int
}
