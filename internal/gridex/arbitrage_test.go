package gridex

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func arbitrageFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, 16, 18, 18)
	ratios := map[int]uint64{
		780: RatioBase, 781: RatioBase, 782: RatioBase,
		783: RatioBase / 2, 784: 0,
		785: RatioBase / 2,
		786: RatioBase, 787: RatioBase / 2,
		788: 0, 789: 0, 790: 0,
	}
	for g := 780; g <= 790; g++ {
		f.deposit(t, alice, g, 1_000_000, ratios[g])
	}
	f.events.Reset()
	return f
}

func TestArbitrageNormalizesWindow(t *testing.T) {
	ctx := context.Background()
	f := arbitrageFixture(t)

	d, err := f.engine.Arbitrage(ctx, bob, 780, 785, 790)
	if err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	reconcile(t, f.events.Events, d)
	if got := tradeGrids(f.events.Events); !sameInts(got, []int{783, 784, 787, 786}) {
		t.Fatalf("moved grids = %v", got)
	}

	for g := 780; g < 785; g++ {
		if p := f.pool(t, g); p.SoldRatio != RatioBase {
			t.Fatalf("grid %d ratio = %d, want RatioBase", g, p.SoldRatio)
		}
	}
	if p := f.pool(t, 785); p.SoldRatio != RatioBase/2 {
		t.Fatalf("reference grid ratio = %d, want unchanged", p.SoldRatio)
	}
	for g := 786; g <= 790; g++ {
		if p := f.pool(t, g); p.SoldRatio != 0 {
			t.Fatalf("grid %d ratio = %d, want 0", g, p.SoldRatio)
		}
	}
	f.checkCustody(t)

	f.events.Reset()
	again, err := f.engine.Arbitrage(ctx, bob, 780, 785, 790)
	if err != nil {
		t.Fatalf("second arbitrage: %v", err)
	}
	if again.Stock.Sign() != 0 || again.Money.Sign() != 0 {
		t.Fatalf("second arbitrage moved %s/%s", again.Stock, again.Money)
	}
	if len(f.events.Events) != 1 {
		t.Fatalf("second arbitrage events = %v", f.events.Events)
	}
	if ev, ok := f.events.Events[0].(Arbitrage); !ok || ev.RefGrid != 785 {
		t.Fatalf("event = %#v, want Arbitrage", f.events.Events[0])
	}
}

func TestArbitrageErrors(t *testing.T) {
	ctx := context.Background()
	f := arbitrageFixture(t)

	if _, err := f.engine.Arbitrage(ctx, bob, 700, 701, 702); !errors.Is(err, ErrPoolNotInit) {
		t.Fatalf("uninitialized ref err = %v, want ErrPoolNotInit", err)
	}
	if _, err := f.engine.Arbitrage(ctx, bob, 786, 785, 790); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("low above ref err = %v, want ErrInvalidRange", err)
	}
	if _, err := f.engine.Arbitrage(ctx, bob, 780, 785, 1024); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("high out of range err = %v, want ErrInvalidRange", err)
	}

	tests := []struct {
		name           string
		low, ref, high int
	}{
		{name: "all stock ref", low: 786, ref: 790, high: 790},
		{name: "all stock ref inside window", low: 786, ref: 788, high: 790},
		{name: "all money ref", low: 780, ref: 782, high: 784},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.events.Reset()
			_, err := f.engine.Arbitrage(ctx, bob, tt.low, tt.ref, tt.high)
			if !errors.Is(err, ErrRefNotStraddling) {
				t.Fatalf("err = %v, want ErrRefNotStraddling", err)
			}
			if len(f.events.Events) != 0 {
				t.Fatalf("rejected arbitrage emitted %v", f.events.Events)
			}
		})
	}
	if p := f.pool(t, 787); p.SoldRatio != RatioBase/2 {
		t.Fatalf("grid 787 ratio = %d, want unchanged", p.SoldRatio)
	}
	if p := f.pool(t, 784); p.SoldRatio != 0 {
		t.Fatalf("grid 784 ratio = %d, want unchanged", p.SoldRatio)
	}
	f.checkCustody(t)
}

func TestArbitrageAndBatchChangeSharesIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := arbitrageFixture(t)
	changes := []ShareChange{
		{Delta: big.NewInt(1000), SoldRatio: RatioBase / 2},
		{Delta: big.NewInt(1000), SoldRatio: RatioBase / 2},
	}

	_, err := f.engine.ArbitrageAndBatchChangeShares(ctx, bob, 780, 785, 790, 785, changes, big.NewInt(0), nil)
	if !errors.Is(err, ErrTooMuchStockPaid) {
		t.Fatalf("err = %v, want ErrTooMuchStockPaid", err)
	}
	if p := f.pool(t, 784); p.SoldRatio != 0 {
		t.Fatalf("failed call kept the arbitrage: grid 784 ratio = %d", p.SoldRatio)
	}

	d, err := f.engine.ArbitrageAndBatchChangeShares(ctx, bob, 780, 785, 790, 785, changes, nil, nil)
	if err != nil {
		t.Fatalf("arbitrage and batch: %v", err)
	}
	if p := f.pool(t, 784); p.SoldRatio != RatioBase {
		t.Fatalf("grid 784 ratio = %d, want RatioBase", p.SoldRatio)
	}
	if got := f.engine.BalanceOf(bob, 785); got.Int64() != 1000 {
		t.Fatalf("bob shares at 785 = %s, want 1000", got)
	}
	if got := f.engine.BalanceOf(bob, 786); got.Int64() != 1000 {
		t.Fatalf("bob shares at 786 = %s, want 1000", got)
	}
	if d.Stock == nil || d.Money == nil {
		t.Fatalf("missing delta")
	}
	f.checkCustody(t)
}
