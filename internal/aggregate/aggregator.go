package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"gridex/internal/model"
)

const (
	feeMethodEstimated = "estimated_from_fee"
	tvlMethodLatest    = "balance_of_latest"
	tvlMethodNone      = "unavailable"
)

// MetricsSink receives finished windows.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.WindowMetrics) error
}

// BalanceReader reads an asset balance. gridex.Assets implementations and
// dex.ERC20Balances satisfy it.
type BalanceReader interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error)
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator folds typed Buy and Sell events into per-engine time windows.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	balances     BalanceReader
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

// NewAggregator builds an Aggregator. balances may be nil, in which case
// windows carry no TVL, fee rate or APR.
func NewAggregator(cfg Config, sink MetricsSink, balances BalanceReader, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		balances:     balances,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.WindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, skipped, failed int

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}
		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		key := engineKey(record.Address)
		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != start {
			if metrics := a.flushAccumulator(ctx, acc); metrics != nil {
				batch = append(batch, *metrics)
				windows++
			}
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("engine", record.Address), zap.String("event", record.EventName))
			continue
		}
		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	keys := make([]string, 0, len(a.accumulators))
	for key := range a.accumulators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if metrics := a.flushAccumulator(ctx, a.accumulators[key]); metrics != nil {
			batch = append(batch, *metrics)
			windows++
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
		return err
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState stores a timestamp below every open window, so a resumed run
// rebuilds those windows from scratch.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs--
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

// flushAccumulator finishes a window. Windows without fills are dropped.
func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) *model.WindowMetrics {
	if acc == nil || acc.Trades() == 0 {
		return nil
	}
	pair := acc.Pair

	metrics := &model.WindowMetrics{
		Address:        acc.Address,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		BuyCount:       acc.BuyCount,
		SellCount:      acc.SellCount,
		StockVolume:    formatTokenAmount(acc.StockVolume, pair.StockDecimals),
		MoneyVolume:    formatTokenAmount(acc.MoneyVolume, pair.MoneyDecimals),
		FeeStock:       formatTokenAmount(acc.FeeStock, pair.StockDecimals),
		FeeMoney:       formatTokenAmount(acc.FeeMoney, pair.MoneyDecimals),
		FeeMethod:      feeMethodEstimated,
		TVLMethod:      tvlMethodNone,
	}
	low, high := acc.LowGrid, acc.HighGrid
	metrics.LowGrid, metrics.HighGrid = &low, &high

	price, hasPrice := averagePrice(acc.StockVolume, acc.MoneyVolume, pair.StockDecimals, pair.MoneyDecimals)
	if hasPrice {
		metrics.AvgPrice = stringPtr(price.String())
	}

	tvlStock, tvlMoney, err := a.fetchTVL(ctx, acc)
	if err != nil {
		a.logger.Warn("tvl fetch failed", zap.String("engine", acc.Address), zap.Error(err))
		return metrics
	}
	if tvlStock == nil {
		return metrics
	}

	metrics.TVLMethod = tvlMethodLatest
	metrics.TVLStock = stringPtr(formatTokenAmount(tvlStock, pair.StockDecimals))
	metrics.TVLMoney = stringPtr(formatTokenAmount(tvlMoney, pair.MoneyDecimals))
	metrics.FeeRateStock = computeRate(acc.FeeStock, tvlStock)
	metrics.FeeRateMoney = computeRate(acc.FeeMoney, tvlMoney)
	if hasPrice {
		metrics.APR = computeAPR(
			wholeUnits(acc.FeeStock, pair.StockDecimals),
			wholeUnits(acc.FeeMoney, pair.MoneyDecimals),
			wholeUnits(tvlStock, pair.StockDecimals),
			wholeUnits(tvlMoney, pair.MoneyDecimals),
			price,
			a.cfg.WindowSeconds,
		)
	}
	return metrics
}

// fetchTVL reads the engine's custody balances. It returns nil balances
// when no reader is configured.
func (a *Aggregator) fetchTVL(ctx context.Context, acc *Accumulator) (*big.Int, *big.Int, error) {
	if a.balances == nil {
		return nil, nil, nil
	}
	pair := acc.Pair
	if !common.IsHexAddress(pair.Stock) || !common.IsHexAddress(pair.Money) || !common.IsHexAddress(acc.Address) {
		return nil, nil, fmt.Errorf("invalid address")
	}
	engine := common.HexToAddress(acc.Address)
	stock, err := a.balances.BalanceOf(ctx, common.HexToAddress(pair.Stock), engine)
	if err != nil {
		return nil, nil, fmt.Errorf("stock balance: %w", err)
	}
	money, err := a.balances.BalanceOf(ctx, common.HexToAddress(pair.Money), engine)
	if err != nil {
		return nil, nil, fmt.Errorf("money balance: %w", err)
	}
	return stock, money, nil
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func engineKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var lowest uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if lowest == 0 || entry.WindowStart < lowest {
			lowest = entry.WindowStart
		}
	}
	return lowest
}
