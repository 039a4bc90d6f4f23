package gridex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"

	"gridex/internal/asset"
	"gridex/internal/metrics"
)

var (
	stockToken = common.HexToAddress("0x5000000000000000000000000000000000000001")
	moneyToken = common.HexToAddress("0x6000000000000000000000000000000000000002")
	engineAddr = common.HexToAddress("0xe000000000000000000000000000000000000003")
	admin      = common.HexToAddress("0xa000000000000000000000000000000000000004")
	alice      = common.HexToAddress("0x1000000000000000000000000000000000000005")
	bob        = common.HexToAddress("0x2000000000000000000000000000000000000006")

	funding, _ = new(big.Int).SetString("10000000000000000000000000000000000000000", 10)
)

type fixture struct {
	engine *Engine
	assets *asset.Ledger
	events *EventCollector
}

func newFixture(t *testing.T, granularity int, stockDecimals, moneyDecimals uint8) *fixture {
	t.Helper()
	return newFixtureWithAssets(t, granularity, stockDecimals, moneyDecimals, nil)
}

func newFixtureWithAssets(t *testing.T, granularity int, stockDecimals, moneyDecimals uint8, wrap func(*asset.Ledger) Assets) *fixture {
	t.Helper()
	ledger := asset.NewLedger(engineAddr)
	var assets Assets = ledger
	if wrap != nil {
		assets = wrap(ledger)
	}
	events := &EventCollector{}
	e := New(engineAddr, assets,
		WithLogger(zaptest.NewLogger(t)),
		WithEventSink(events),
		WithMetrics(metrics.NewRecorder()),
	)
	params, err := NewParams(granularity, stockToken, moneyToken, stockDecimals, moneyDecimals, nil, admin)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if err := e.Init(params); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, who := range []common.Address{alice, bob} {
		for _, token := range []common.Address{stockToken, moneyToken} {
			if err := ledger.Mint(token, who, funding); err != nil {
				t.Fatalf("mint: %v", err)
			}
		}
	}
	return &fixture{engine: e, assets: ledger, events: events}
}

func (f *fixture) deposit(t *testing.T, who common.Address, grid int, shares int64, ratio uint64) {
	t.Helper()
	change := ShareChange{Delta: big.NewInt(shares), SoldRatio: ratio}
	if _, err := f.engine.ChangeShares(context.Background(), who, grid, change); err != nil {
		t.Fatalf("deposit grid %d: %v", grid, err)
	}
}

func (f *fixture) balance(t *testing.T, token, who common.Address) *big.Int {
	t.Helper()
	b, err := f.assets.BalanceOf(context.Background(), token, who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

// checkCustody asserts that the engine holds exactly what its pools are
// attributed.
func (f *fixture) checkCustody(t *testing.T) {
	t.Helper()
	stock, money, err := f.engine.TotalHoldings()
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if got := f.balance(t, stockToken, engineAddr); got.Cmp(stock) != 0 {
		t.Fatalf("stock custody = %s, attributed %s", got, stock)
	}
	if got := f.balance(t, moneyToken, engineAddr); got.Cmp(money) != 0 {
		t.Fatalf("money custody = %s, attributed %s", got, money)
	}
}

func (f *fixture) pool(t *testing.T, grid int) Pool {
	t.Helper()
	p, err := f.engine.Pool(grid)
	if err != nil {
		t.Fatalf("pool %d: %v", grid, err)
	}
	return p
}

func TestEngineNotInitialized(t *testing.T) {
	e := New(engineAddr, asset.NewLedger(engineAddr))
	_, err := e.SellToPools(context.Background(), alice, nil, big.NewInt(1), 10, 5)
	if !errors.Is(err, ErrNotInit) {
		t.Fatalf("err = %v, want ErrNotInit", err)
	}
	if _, err := e.LoadParams(); !errors.Is(err, ErrNotInit) {
		t.Fatalf("LoadParams err = %v, want ErrNotInit", err)
	}
}

func TestEngineInitOnce(t *testing.T) {
	f := newFixture(t, 16, 18, 18)
	params, err := f.engine.LoadParams()
	if err != nil {
		t.Fatalf("load params: %v", err)
	}
	if params.Fee != 30 {
		t.Fatalf("default fee = %d, want 30", params.Fee)
	}
	if err := f.engine.Init(params); !errors.Is(err, ErrAlreadyInit) {
		t.Fatalf("second init err = %v, want ErrAlreadyInit", err)
	}
}

func TestNewParams(t *testing.T) {
	tests := []struct {
		name          string
		granularity   int
		stockDecimals uint8
		moneyDecimals uint8
		fee           *uint32
		wantMul       int64
		wantDiv       int64
		wantFee       uint32
		wantErr       error
	}{
		{name: "equal decimals", granularity: 64, stockDecimals: 18, moneyDecimals: 18, wantMul: 1, wantDiv: 1, wantFee: 10},
		{name: "money finer", granularity: 256, stockDecimals: 6, moneyDecimals: 8, fee: feePtr(7), wantMul: 100, wantDiv: 1, wantFee: 7},
		{name: "explicit zero fee", granularity: 16, stockDecimals: 18, moneyDecimals: 18, fee: feePtr(0), wantMul: 1, wantDiv: 1, wantFee: 0},
		{name: "stock finer", granularity: 16, stockDecimals: 18, moneyDecimals: 6, wantMul: 1, wantDiv: 1_000_000_000_000, wantFee: 30},
		{name: "bad granularity", granularity: 32, wantErr: ErrInvalidGranularity},
		{name: "fee too large", granularity: 16, fee: feePtr(FeeBase), wantErr: ErrInvalidFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParams(tt.granularity, stockToken, moneyToken, tt.stockDecimals, tt.moneyDecimals, tt.fee, admin)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewParams: %v", err)
			}
			if p.PriceMul.Int64() != tt.wantMul || p.PriceDiv.Int64() != tt.wantDiv {
				t.Fatalf("scale = %s/%s, want %d/%d", p.PriceMul, p.PriceDiv, tt.wantMul, tt.wantDiv)
			}
			if p.Fee != tt.wantFee {
				t.Fatalf("fee = %d, want %d", p.Fee, tt.wantFee)
			}
		})
	}

	if _, err := NewParams(16, stockToken, stockToken, 18, 18, nil, admin); err == nil {
		t.Fatalf("expected error for identical assets")
	}
}

func TestAdminSetters(t *testing.T) {
	f := newFixture(t, 16, 18, 18)

	if err := f.engine.SetFee(alice, 5); !errors.Is(err, ErrOnlyFactory) {
		t.Fatalf("SetFee by non-admin err = %v, want ErrOnlyFactory", err)
	}
	if err := f.engine.SetURI(alice, "x"); !errors.Is(err, ErrOnlyFactory) {
		t.Fatalf("SetURI by non-admin err = %v, want ErrOnlyFactory", err)
	}
	if err := f.engine.SetFee(admin, FeeBase); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("SetFee(FeeBase) err = %v, want ErrInvalidFee", err)
	}
	if len(f.events.Events) != 0 {
		t.Fatalf("rejected setters published %d events", len(f.events.Events))
	}

	if err := f.engine.SetFee(admin, 5); err != nil {
		t.Fatalf("SetFee: %v", err)
	}
	if err := f.engine.SetURI(admin, "ipfs://grid/{id}"); err != nil {
		t.Fatalf("SetURI: %v", err)
	}
	params, _ := f.engine.LoadParams()
	if params.Fee != 5 || f.engine.URI() != "ipfs://grid/{id}" {
		t.Fatalf("params = fee %d uri %q", params.Fee, f.engine.URI())
	}
	want := []Event{FeeChanged{Fee: 5}, URIChanged{URI: "ipfs://grid/{id}"}}
	if len(f.events.Events) != len(want) {
		t.Fatalf("events = %v, want %v", f.events.Events, want)
	}
	for i := range want {
		if f.events.Events[i] != want[i] {
			t.Fatalf("event %d = %#v, want %#v", i, f.events.Events[i], want[i])
		}
	}
}

var errTransferDown = errors.New("transfer service down")

func TestFailedSettlementLeavesNoTrace(t *testing.T) {
	failing := false
	f := newFixtureWithAssets(t, 16, 18, 18, func(l *asset.Ledger) Assets {
		return switchable{Ledger: l, fail: &failing}
	})
	f.deposit(t, alice, 785, 1_000_000, RatioBase)
	before := f.pool(t, 785)
	stockBefore := f.balance(t, stockToken, bob)
	moneyBefore := f.balance(t, moneyToken, bob)
	f.events.Reset()

	failing = true
	_, err := f.engine.SellToPools(context.Background(), bob, nil, big.NewInt(1000), 785, 784)
	if !errors.Is(err, errTransferDown) {
		t.Fatalf("err = %v, want errTransferDown", err)
	}

	after := f.pool(t, 785)
	if after.TotalStock.Cmp(before.TotalStock) != 0 || after.SoldRatio != before.SoldRatio {
		t.Fatalf("pool changed by failed sell: %+v -> %+v", before, after)
	}
	if got := f.balance(t, stockToken, bob); got.Cmp(stockBefore) != 0 {
		t.Fatalf("bob stock = %s, want %s", got, stockBefore)
	}
	if got := f.balance(t, moneyToken, bob); got.Cmp(moneyBefore) != 0 {
		t.Fatalf("bob money = %s, want %s", got, moneyBefore)
	}
	if len(f.events.Events) != 0 {
		t.Fatalf("failed sell published %d events", len(f.events.Events))
	}
	f.checkCustody(t)
}

// switchable fails outbound money transfers while fail is set.
type switchable struct {
	*asset.Ledger
	fail *bool
}

func (s switchable) TransferOut(ctx context.Context, token, to common.Address, amount *big.Int) error {
	if *s.fail && token == moneyToken {
		return errTransferDown
	}
	return s.Ledger.TransferOut(ctx, token, to, amount)
}

func feePtr(fee uint32) *uint32 { return &fee }
