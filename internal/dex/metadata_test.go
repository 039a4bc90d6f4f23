package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"
)

// fakeCaller answers eth_call by contract and 4-byte selector.
type fakeCaller struct {
	responses map[common.Address]map[string][]byte
	calls     int
}

func (f *fakeCaller) set(to common.Address, parsed abi.ABI, method string, out ...interface{}) error {
	m, ok := parsed.Methods[method]
	if !ok {
		return fmt.Errorf("no method %s", method)
	}
	data, err := m.Outputs.Pack(out...)
	if err != nil {
		return err
	}
	if f.responses == nil {
		f.responses = make(map[common.Address]map[string][]byte)
	}
	if f.responses[to] == nil {
		f.responses[to] = make(map[string][]byte)
	}
	f.responses[to][string(m.ID)] = data
	return nil
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	resp, ok := f.responses[*msg.To][string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

var (
	stockToken = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	moneyToken = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func mustABIs(t *testing.T) (abi.ABI, abi.ABI, abi.ABI) {
	t.Helper()
	str, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("string abi: %v", err)
	}
	b32, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("bytes32 abi: %v", err)
	}
	gx, err := GridexABI()
	if err != nil {
		t.Fatalf("gridex abi: %v", err)
	}
	return str, b32, gx
}

func TestFetchTokenMeta(t *testing.T) {
	str, _, _ := mustABIs(t)
	caller := &fakeCaller{}
	for _, err := range []error{
		caller.set(stockToken, str, "decimals", uint8(18)),
		caller.set(stockToken, str, "symbol", "WETH"),
		caller.set(stockToken, str, "name", "Wrapped Ether"),
	} {
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	meta, err := FetchTokenMeta(context.Background(), caller, stockToken, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "WETH" || meta.Name != "Wrapped Ether" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Address != stockToken.Hex() {
		t.Fatalf("address mismatch: %s", meta.Address)
	}
}

func TestFetchTokenMetaBytes32Fallback(t *testing.T) {
	str, b32, _ := mustABIs(t)
	var symbol [32]byte
	copy(symbol[:], "MKR")

	caller := &fakeCaller{}
	if err := caller.set(moneyToken, str, "decimals", uint8(6)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := caller.set(moneyToken, b32, "symbol", symbol); err != nil {
		t.Fatalf("setup: %v", err)
	}

	meta, err := FetchTokenMeta(context.Background(), caller, moneyToken, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Decimals != 6 || meta.Symbol != "MKR" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Name != "" {
		t.Fatalf("expected empty name, got %q", meta.Name)
	}
}

func TestFetchTokenMetaDecimalsRequired(t *testing.T) {
	if _, err := FetchTokenMeta(context.Background(), &fakeCaller{}, stockToken, nil); err == nil {
		t.Fatalf("expected error without decimals")
	}
	if _, err := FetchTokenMeta(context.Background(), nil, stockToken, nil); err == nil {
		t.Fatalf("expected error without caller")
	}
}

func TestFetchPairMeta(t *testing.T) {
	str, _, gx := mustABIs(t)
	caller := &fakeCaller{}
	setup := []error{
		caller.set(engineAddress, gx, "loadParams", stockToken, moneyToken, big.NewInt(1), big.NewInt(1000000000000), uint32(30), uint16(16)),
		caller.set(stockToken, str, "decimals", uint8(18)),
		caller.set(stockToken, str, "symbol", "WETH"),
		caller.set(moneyToken, str, "decimals", uint8(6)),
		caller.set(moneyToken, str, "symbol", "USDC"),
	}
	for _, err := range setup {
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	tokens := NewTokenMetaCache()
	meta, err := FetchPairMeta(context.Background(), caller, engineAddress, tokens, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Stock != stockToken.Hex() || meta.Money != moneyToken.Hex() {
		t.Fatalf("assets mismatch: %+v", meta)
	}
	if meta.StockDecimals != 18 || meta.MoneyDecimals != 6 || meta.StockSymbol != "WETH" || meta.MoneySymbol != "USDC" {
		t.Fatalf("token meta mismatch: %+v", meta)
	}
	if meta.Granularity != 16 || meta.Fee != 30 {
		t.Fatalf("params mismatch: %+v", meta)
	}

	if _, ok := tokens.Get(moneyToken); !ok {
		t.Fatalf("money token not cached")
	}
	calls := caller.calls
	if _, err := FetchPairMeta(context.Background(), caller, engineAddress, tokens, nil); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if caller.calls != calls+1 {
		t.Fatalf("expected only loadParams on refetch, got %d calls", caller.calls-calls)
	}
}

func TestBytes32ToString(t *testing.T) {
	var raw [32]byte
	copy(raw[:], "DAI")
	got, ok := bytes32ToString(raw)
	if !ok || got != "DAI" {
		t.Fatalf("unexpected %q %v", got, ok)
	}
	if _, ok := bytes32ToString(42); ok {
		t.Fatalf("expected int to be rejected")
	}
	if got, _ := bytes32ToString(bytes.Repeat([]byte{'A'}, 2)); got != "AA" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestERC20Balances(t *testing.T) {
	str, _, _ := mustABIs(t)
	caller := &fakeCaller{}
	if err := caller.set(moneyToken, str, "balanceOf", big.NewInt(123456)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got, err := ERC20Balances{Caller: caller}.BalanceOf(context.Background(), moneyToken, engineAddress)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("balance mismatch: %s", got)
	}
	if _, err := (ERC20Balances{Caller: caller}).BalanceOf(context.Background(), stockToken, engineAddress); err == nil {
		t.Fatalf("expected error for unknown token")
	}
}
