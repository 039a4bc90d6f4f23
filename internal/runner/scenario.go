package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"gridex/internal/gridex"
)

// Op is one line of a scenario file. Amounts are decimal strings of base
// units so 256-bit values survive JSON. Which fields matter depends on Op.
type Op struct {
	Op     string `json:"op"`
	Caller string `json:"caller"`

	// mint
	Asset string `json:"asset,omitempty"`

	// init_pool, change_shares
	Grid      int    `json:"grid,omitempty"`
	Shares    string `json:"shares,omitempty"`
	SoldRatio uint64 `json:"sold_ratio,omitempty"`

	// batch_change_shares, arbitrage_batch_change_shares
	BeginGrid  int          `json:"begin_grid,omitempty"`
	Changes    []ChangeSpec `json:"changes,omitempty"`
	MaxStockIn string       `json:"max_stock_in,omitempty"`
	MaxMoneyIn string       `json:"max_money_in,omitempty"`

	// sell, buy, mint
	Amount     string `json:"amount,omitempty"`
	StartGrid  int    `json:"start_grid,omitempty"`
	EndGrid    int    `json:"end_grid,omitempty"`
	PriceLimit string `json:"price_limit,omitempty"`
	LimitGrid  *int   `json:"limit_grid,omitempty"`

	// batch_trade
	Sells []TradeSpec `json:"sells,omitempty"`
	Buys  []TradeSpec `json:"buys,omitempty"`

	// arbitrage
	Low  int `json:"low,omitempty"`
	Ref  int `json:"ref,omitempty"`
	High int `json:"high,omitempty"`

	Fee uint32 `json:"fee,omitempty"`
	URI string `json:"uri,omitempty"`

	// ExpectError marks an operation that must fail with an error whose
	// message contains the text.
	ExpectError string `json:"expect_error,omitempty"`
}

// ChangeSpec is a share change, either spelled out or packed as
// delta*2^64 + soldRatio.
type ChangeSpec struct {
	Delta     string `json:"delta,omitempty"`
	SoldRatio uint64 `json:"sold_ratio,omitempty"`
	Packed    string `json:"packed,omitempty"`
}

// TradeSpec is one batch trade walk, either spelled out or packed as
// amount<<32 | grid<<16 | stopGrid.
type TradeSpec struct {
	Amount   string `json:"amount,omitempty"`
	Grid     int    `json:"grid,omitempty"`
	StopGrid int    `json:"stop_grid,omitempty"`
	Packed   string `json:"packed,omitempty"`
}

const (
	OpMint                       = "mint"
	OpInitPool                   = "init_pool"
	OpChangeShares               = "change_shares"
	OpBatchChangeShares          = "batch_change_shares"
	OpSell                       = "sell"
	OpBuy                        = "buy"
	OpBatchTrade                 = "batch_trade"
	OpArbitrage                  = "arbitrage"
	OpArbitrageBatchChangeShares = "arbitrage_batch_change_shares"
	OpSetFee                     = "set_fee"
	OpSetURI                     = "set_uri"
)

// LoadScenario reads a JSONL scenario. Blank lines and lines starting with
// '#' are skipped.
func LoadScenario(path string) ([]Op, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ops []Op
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var op Op
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("scenario line %d: %w", line, err)
		}
		if op.Op == "" {
			return nil, fmt.Errorf("scenario line %d: op is required", line)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", field, value)
	}
	return v, nil
}

// parseOptionalAmount returns nil for an empty value.
func parseOptionalAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseAmount(field, value)
}

func (c ChangeSpec) shareChange() (gridex.ShareChange, error) {
	if c.Packed != "" {
		packed, err := parseAmount("packed", c.Packed)
		if err != nil {
			return gridex.ShareChange{}, err
		}
		return gridex.UnpackShareChange(packed), nil
	}
	delta, err := parseAmount("delta", c.Delta)
	if err != nil {
		return gridex.ShareChange{}, err
	}
	return gridex.ShareChange{Delta: delta, SoldRatio: c.SoldRatio}, nil
}

func (s TradeSpec) tradeArg() (gridex.TradeArg, error) {
	if s.Packed != "" {
		packed, err := parseAmount("packed", s.Packed)
		if err != nil {
			return gridex.TradeArg{}, err
		}
		return gridex.UnpackTradeArg(packed)
	}
	amount, err := parseAmount("amount", s.Amount)
	if err != nil {
		return gridex.TradeArg{}, err
	}
	return gridex.TradeArg{Amount: amount, Grid: s.Grid, StopGrid: s.StopGrid}, nil
}

func shareChanges(items []ChangeSpec) ([]gridex.ShareChange, error) {
	out := make([]gridex.ShareChange, 0, len(items))
	for i, s := range items {
		change, err := s.shareChange()
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		out = append(out, change)
	}
	return out, nil
}

func tradeArgs(items []TradeSpec) ([]gridex.TradeArg, error) {
	out := make([]gridex.TradeArg, 0, len(items))
	for i, s := range items {
		arg, err := s.tradeArg()
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		out = append(out, arg)
	}
	return out, nil
}

// priceLimit resolves the limit of a sell or buy: a human price in money
// per stock, or the lower price of a grid. Neither means no limit.
func (op Op) priceLimit(codec *gridex.Codec) (*big.Int, error) {
	switch {
	case op.PriceLimit != "" && op.LimitGrid != nil:
		return nil, fmt.Errorf("price_limit and limit_grid are exclusive")
	case op.PriceLimit != "":
		d, err := decimal.NewFromString(op.PriceLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid price_limit %q: %w", op.PriceLimit, err)
		}
		return gridex.DecimalToPrice(d)
	case op.LimitGrid != nil:
		return codec.GridToPrice(*op.LimitGrid)
	default:
		return nil, nil
	}
}
