package gridex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad integer %q", s)
	}
	return v
}

func TestChangeSharesLifecycle(t *testing.T) {
	ctx := context.Background()
	deltas := []string{"1000000000000000", "22222", "444444444444", "200000000000000", "-423543636456", "-300000000000000"}

	for _, grid := range []int{0, 785, 1022} {
		for _, ratio := range []uint64{0, RatioBase, RatioBase / 2} {
			f := newFixture(t, 16, 18, 18)
			sum := new(big.Int)
			var changes []*big.Int
			for _, d := range deltas {
				v := mustBig(t, d)
				sum.Add(sum, v)
				changes = append(changes, v)
			}
			changes = append(changes, new(big.Int).Neg(sum))

			for i, delta := range changes {
				before := f.pool(t, grid)
				mine := f.engine.BalanceOf(alice, grid)

				_, err := f.engine.ChangeShares(ctx, alice, grid, ShareChange{Delta: delta, SoldRatio: ratio})
				if err != nil {
					t.Fatalf("grid %d ratio %d step %d: %v", grid, ratio, i, err)
				}

				after := f.pool(t, grid)
				wantShares := new(big.Int).Add(before.TotalShares, delta)
				if after.TotalShares.Cmp(wantShares) != 0 {
					t.Fatalf("step %d: total shares = %s, want %s", i, after.TotalShares, wantShares)
				}
				wantMine := new(big.Int).Add(mine, delta)
				if got := f.engine.BalanceOf(alice, grid); got.Cmp(wantMine) != 0 {
					t.Fatalf("step %d: balance = %s, want %s", i, got, wantMine)
				}
				f.checkCustody(t)

				words, _ := f.engine.MaskWords()
				set := words[grid/256][(grid%256)/64]&(1<<uint(grid%64)) != 0
				if last := i == len(changes)-1; set == last {
					t.Fatalf("step %d: bitmap bit = %v", i, set)
				}
			}

			if got := f.balance(t, stockToken, engineAddr); got.Sign() != 0 {
				t.Fatalf("grid %d ratio %d: stock left after full removal: %s", grid, ratio, got)
			}
			if got := f.balance(t, moneyToken, engineAddr); got.Sign() != 0 {
				t.Fatalf("grid %d ratio %d: money left after full removal: %s", grid, ratio, got)
			}
			if p := f.pool(t, grid); p.Initialized() {
				t.Fatalf("pool still initialized: %+v", p)
			}
		}
	}
}

func TestChangeSharesEvents(t *testing.T) {
	f := newFixture(t, 16, 18, 18)
	f.deposit(t, alice, 100, 500, RatioBase/2)
	if _, err := f.engine.ChangeShares(context.Background(), alice, 100, ShareChange{Delta: big.NewInt(-200)}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if len(f.events.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(f.events.Events))
	}
	mint, ok := f.events.Events[0].(TransferSingle)
	if !ok || mint.From != (common.Address{}) || mint.To != alice || mint.Grid != 100 || mint.Value.Int64() != 500 {
		t.Fatalf("mint event = %#v", f.events.Events[0])
	}
	burn, ok := f.events.Events[1].(TransferSingle)
	if !ok || burn.From != alice || burn.To != (common.Address{}) || burn.Value.Int64() != 200 {
		t.Fatalf("burn event = %#v", f.events.Events[1])
	}
}

func TestChangeSharesErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 16, 18, 18)

	_, err := f.engine.ChangeShares(ctx, alice, 100, ShareChange{Delta: big.NewInt(-1)})
	if !errors.Is(err, ErrPoolNotInit) {
		t.Fatalf("withdraw from empty pool err = %v, want ErrPoolNotInit", err)
	}
	_, err = f.engine.ChangeShares(ctx, alice, 100, ShareChange{Delta: big.NewInt(1), SoldRatio: RatioBase + 1})
	if !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("bad ratio err = %v, want ErrInvalidRatio", err)
	}
	_, err = f.engine.ChangeShares(ctx, alice, 1024, ShareChange{Delta: big.NewInt(1)})
	if !errors.Is(err, ErrInvalidGrid) {
		t.Fatalf("grid out of range err = %v, want ErrInvalidGrid", err)
	}

	f.deposit(t, alice, 100, 1000, 0)
	_, err = f.engine.ChangeShares(ctx, bob, 100, ShareChange{Delta: big.NewInt(-1)})
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("bob withdraw err = %v, want ErrInsufficientShares", err)
	}
	_, err = f.engine.InitPool(ctx, alice, 100, big.NewInt(1), 0)
	if !errors.Is(err, ErrAlreadyCreated) {
		t.Fatalf("InitPool on existing pool err = %v, want ErrAlreadyCreated", err)
	}
	_, err = f.engine.InitPool(ctx, alice, 101, big.NewInt(1), RatioBase+100)
	if !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("InitPool bad ratio err = %v, want ErrInvalidRatio", err)
	}
	_, err = f.engine.InitPool(ctx, alice, 101, big.NewInt(0), 0)
	if !errors.Is(err, ErrInvalidShares) {
		t.Fatalf("InitPool zero shares err = %v, want ErrInvalidShares", err)
	}
	if _, err := f.engine.InitPool(ctx, alice, 101, big.NewInt(7), RatioBase); err != nil {
		t.Fatalf("InitPool: %v", err)
	}
	if p := f.pool(t, 101); p.SoldRatio != RatioBase || p.TotalShares.Int64() != 7 {
		t.Fatalf("created pool = %+v", p)
	}
}

func TestBatchChangeSharesSlippage(t *testing.T) {
	ctx := context.Background()
	changes := []ShareChange{
		{Delta: big.NewInt(1_000_000), SoldRatio: RatioBase},
		{Delta: big.NewInt(2_000_000), SoldRatio: RatioBase / 3},
		{Delta: big.NewInt(3_000_000), SoldRatio: 0},
	}

	probe := newFixture(t, 64, 18, 18)
	need, err := probe.engine.BatchChangeShares(ctx, alice, 3000, changes, nil, nil)
	if err != nil {
		t.Fatalf("probe batch: %v", err)
	}
	if need.Stock.Sign() <= 0 || need.Money.Sign() <= 0 {
		t.Fatalf("batch should pay both assets, got %s/%s", need.Stock, need.Money)
	}

	f := newFixture(t, 64, 18, 18)
	lessStock := new(big.Int).Sub(need.Stock, big.NewInt(1))
	lessMoney := new(big.Int).Sub(need.Money, big.NewInt(1))
	if _, err := f.engine.BatchChangeShares(ctx, alice, 3000, changes, lessStock, need.Money); !errors.Is(err, ErrTooMuchStockPaid) {
		t.Fatalf("stock limit err = %v, want ErrTooMuchStockPaid", err)
	}
	if _, err := f.engine.BatchChangeShares(ctx, alice, 3000, changes, need.Stock, lessMoney); !errors.Is(err, ErrTooMuchMoneyPaid) {
		t.Fatalf("money limit err = %v, want ErrTooMuchMoneyPaid", err)
	}
	grids, _ := f.engine.InitializedGrids()
	if len(grids) != 0 {
		t.Fatalf("rejected batches created pools %v", grids)
	}

	got, err := f.engine.BatchChangeShares(ctx, alice, 3000, changes, need.Stock, need.Money)
	if err != nil {
		t.Fatalf("batch at exact limits: %v", err)
	}
	if got.Stock.Cmp(need.Stock) != 0 || got.Money.Cmp(need.Money) != 0 {
		t.Fatalf("delta = %s/%s, want %s/%s", got.Stock, got.Money, need.Stock, need.Money)
	}
	for i, change := range changes {
		p := f.pool(t, 3000+i)
		if p.TotalShares.Cmp(change.Delta) != 0 || p.SoldRatio != change.SoldRatio {
			t.Fatalf("grid %d pool = %+v", 3000+i, p)
		}
	}
	f.checkCustody(t)

	views, err := f.engine.PoolAndShares(alice, 2999, 3003)
	if err != nil {
		t.Fatalf("PoolAndShares: %v", err)
	}
	if len(views) != 4 || views[0].Shares.Sign() != 0 || views[1].Shares.Int64() != 1_000_000 || views[3].Shares.Int64() != 3_000_000 {
		t.Fatalf("views = %+v", views)
	}
	balances, err := f.engine.BalanceOfBatch([]common.Address{alice, bob}, []int{3001, 3001})
	if err != nil {
		t.Fatalf("BalanceOfBatch: %v", err)
	}
	if balances[0].Int64() != 2_000_000 || balances[1].Sign() != 0 {
		t.Fatalf("balances = %v", balances)
	}
	if _, err := f.engine.BalanceOfBatch([]common.Address{alice}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("length mismatch err = %v", err)
	}
}
