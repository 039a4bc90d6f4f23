// Package runner replays operation scenarios against an engine and streams
// deployed engine logs, journaling both as chain-style log records.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridex/internal/asset"
	"gridex/internal/dex"
	"gridex/internal/gridex"
	"gridex/internal/metrics"
	"gridex/internal/model"
	"gridex/internal/storage"
)

// ErrExpectationFailed is returned when an operation marked expect_error
// succeeds or fails with a different error.
var ErrExpectationFailed = errors.New("expectation failed")

// Config holds runtime settings for a simulation run.
type Config struct {
	RunID   string
	ChainID uint64
	Engine  common.Address
	Params  gridex.Params

	// BatchSize is the number of operations journaled per storage write.
	BatchSize uint64
	// StartTime and OpInterval stamp operation n with StartTime+n*OpInterval.
	StartTime  uint64
	OpInterval uint64

	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	SnapshotChunk     uint64
	StopOnError       bool
}

// Summary describes a finished run.
type Summary struct {
	RunID     string `json:"run_id"`
	Applied   int    `json:"applied"`
	Rejected  int    `json:"rejected"`
	Expected  int    `json:"expected"`
	Skipped   int    `json:"skipped"`
	Logs      int    `json:"logs"`
	Snapshots int    `json:"snapshots"`
	CustodyOK bool   `json:"custody_ok"`
}

// Runner owns a fresh engine backed by an in-memory asset ledger.
type Runner struct {
	cfg        Config
	engine     *gridex.Engine
	ledger     *asset.Ledger
	events     *gridex.EventCollector
	encoder    *dex.Encoder
	storage    storage.Storage
	checkpoint *CheckpointStore
	retry      retryPolicy
	logger     *zap.Logger
}

// NewRunner builds a Runner and initializes its engine with cfg.Params.
func NewRunner(cfg Config, store storage.Storage, recorder *metrics.Recorder, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		return nil, fmt.Errorf("storage is nil")
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if cfg.SnapshotChunk == 0 {
		cfg.SnapshotChunk = 256
	}

	ledger := asset.NewLedger(cfg.Engine)
	events := &gridex.EventCollector{}
	engine := gridex.New(cfg.Engine, ledger,
		gridex.WithLogger(logger.Named("engine")),
		gridex.WithEventSink(events),
		gridex.WithMetrics(recorder),
	)
	if err := engine.Init(cfg.Params); err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	encoder, err := dex.NewEncoder(cfg.Engine)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:        cfg,
		engine:     engine,
		ledger:     ledger,
		events:     events,
		encoder:    encoder,
		storage:    store,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		logger:     logger,
	}, nil
}

// Engine returns the engine the runner drives.
func (r *Runner) Engine() *gridex.Engine { return r.engine }

// Ledger returns the asset ledger backing the engine.
func (r *Runner) Ledger() *asset.Ledger { return r.ledger }

// Run applies ops in order. Operation n has sequence number n+1. On resume
// the operations up to the checkpoint are replayed to rebuild engine state
// but not journaled again.
func (r *Runner) Run(ctx context.Context, ops []Op) (Summary, error) {
	runID, resumeAfter, err := r.resolveRun()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{RunID: runID}

	var pending []model.LogRecord
	pendingOps := uint64(0)
	flush := func(seq uint64) error {
		if pendingOps == 0 {
			return nil
		}
		if err := r.retry.do(ctx, "store logs", func(ctx context.Context) error {
			return r.storage.PutLogBatch(ctx, pending)
		}, zap.Uint64("through_seq", seq)); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		if err := r.checkpoint.Save(runID, seq); err != nil {
			return err
		}
		r.logger.Info("batch complete", zap.Int("logs", len(pending)), zap.Uint64("through_seq", seq))
		summary.Logs += len(pending)
		pending = nil
		pendingOps = 0
		return nil
	}

	lastSeq := uint64(0)
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		seq := uint64(i) + 1
		lastSeq = seq

		r.events.Reset()
		opErr := r.apply(ctx, op)
		switch {
		case op.ExpectError != "":
			if opErr == nil {
				return summary, fmt.Errorf("op %d (%s): %w: want error %q, got success", seq, op.Op, ErrExpectationFailed, op.ExpectError)
			}
			if !strings.Contains(opErr.Error(), op.ExpectError) {
				return summary, fmt.Errorf("op %d (%s): %w: want error %q, got %q", seq, op.Op, ErrExpectationFailed, op.ExpectError, opErr)
			}
			summary.Expected++
		case opErr != nil:
			summary.Rejected++
			r.logger.Warn("operation rejected",
				zap.Uint64("seq", seq),
				zap.String("op", op.Op),
				zap.String("reason", metrics.Reason(opErr)),
				zap.Error(opErr),
			)
			if r.cfg.StopOnError {
				return summary, fmt.Errorf("op %d (%s): %w", seq, op.Op, opErr)
			}
		default:
			summary.Applied++
		}

		if seq <= resumeAfter {
			summary.Skipped++
			continue
		}

		records, err := r.journal(runID, seq, r.events.Events)
		if err != nil {
			return summary, fmt.Errorf("op %d (%s): %w", seq, op.Op, err)
		}
		pending = append(pending, records...)
		pendingOps++
		if pendingOps >= r.cfg.BatchSize {
			if err := flush(seq); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(lastSeq); err != nil {
		return summary, err
	}

	snapshots, err := r.writeSnapshots(ctx, runID)
	if err != nil {
		return summary, err
	}
	summary.Snapshots = snapshots

	ok, err := r.checkCustody(ctx)
	if err != nil {
		return summary, err
	}
	summary.CustodyOK = ok
	if !ok {
		return summary, fmt.Errorf("custody balances do not match pool holdings")
	}

	r.logger.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("expected", summary.Expected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("logs", summary.Logs),
		zap.Int("snapshots", summary.Snapshots),
	)
	return summary, nil
}

// resolveRun picks the run id and the last journaled sequence number. A
// checkpoint of another run is ignored.
func (r *Runner) resolveRun() (string, uint64, error) {
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return "", 0, err
	}
	runID := r.cfg.RunID
	if !ok {
		if runID == "" {
			runID = uuid.NewString()
		}
		return runID, 0, nil
	}
	if runID != "" && cp.RunID != runID {
		r.logger.Warn("checkpoint belongs to another run, starting over",
			zap.String("run_id", runID),
			zap.String("checkpoint_run_id", cp.RunID),
		)
		return runID, 0, nil
	}
	if cp.RunID == "" {
		return "", 0, fmt.Errorf("checkpoint has no run id")
	}
	r.logger.Info("resume from checkpoint", zap.String("run_id", cp.RunID), zap.Uint64("last_processed", cp.LastProcessed))
	return cp.RunID, cp.LastProcessed, nil
}

func (r *Runner) journal(runID string, seq uint64, events []gridex.Event) ([]model.LogRecord, error) {
	if len(events) == 0 {
		return nil, nil
	}
	ts := r.cfg.StartTime + seq*r.cfg.OpInterval
	txHash := operationHash(runID, seq)
	ingestedAt := time.Now().UTC()

	records := make([]model.LogRecord, 0, len(events))
	for i, ev := range events {
		log, err := r.encoder.Encode(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
		}
		log.BlockNumber = seq
		log.TxHash = txHash
		log.Index = uint(i)
		records = append(records, buildLogRecord(runID, r.cfg.ChainID, log, ts, ingestedAt))
	}
	return records, nil
}

func (r *Runner) writeSnapshots(ctx context.Context, runID string) (int, error) {
	grids, err := r.engine.InitializedGrids()
	if err != nil {
		return 0, err
	}
	if len(grids) == 0 {
		return 0, nil
	}
	codec, err := r.engine.Codec()
	if err != nil {
		return 0, err
	}

	chunks, err := SplitRange(0, uint64(len(grids)-1), r.cfg.SnapshotChunk)
	if err != nil {
		return 0, err
	}
	for _, chunk := range chunks {
		snapshots := make([]model.PoolSnapshot, 0, chunk.To-chunk.From+1)
		for _, grid := range grids[chunk.From : chunk.To+1] {
			snap, err := r.snapshot(codec, runID, grid)
			if err != nil {
				return 0, err
			}
			snapshots = append(snapshots, snap)
		}
		if err := r.retry.do(ctx, "store snapshots", func(ctx context.Context) error {
			return r.storage.PutSnapshots(ctx, snapshots)
		}, zap.Int("grids", len(snapshots))); err != nil {
			return 0, fmt.Errorf("store snapshots: %w", err)
		}
	}
	return len(grids), nil
}

func (r *Runner) snapshot(codec *gridex.Codec, runID string, grid int) (model.PoolSnapshot, error) {
	pool, err := r.engine.Pool(grid)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	stock, money, err := r.engine.Holdings(grid)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	price, err := codec.GridToPrice(grid)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	return model.PoolSnapshot{
		RunID:       runID,
		Address:     r.cfg.Engine.Hex(),
		Grid:        grid,
		Price:       gridex.PriceDecimal(price).String(),
		TotalShares: pool.TotalShares.String(),
		TotalStock:  pool.TotalStock.String(),
		SoldRatio:   strconv.FormatUint(pool.SoldRatio, 10),
		Stock:       stock.String(),
		Money:       money.String(),
	}, nil
}

// checkCustody compares the engine's asset balances with the holdings
// attributed to its pools.
func (r *Runner) checkCustody(ctx context.Context) (bool, error) {
	stock, money, err := r.engine.TotalHoldings()
	if err != nil {
		return false, err
	}
	params, err := r.engine.LoadParams()
	if err != nil {
		return false, err
	}

	ok := true
	for _, held := range []struct {
		name       string
		asset      common.Address
		attributed *big.Int
	}{
		{"stock", params.Stock, stock},
		{"money", params.Money, money},
	} {
		bal, err := r.ledger.BalanceOf(ctx, held.asset, r.cfg.Engine)
		if err != nil {
			return false, err
		}
		if bal.Cmp(held.attributed) != 0 {
			ok = false
			r.logger.Error("custody mismatch",
				zap.String("asset", held.name),
				zap.String("balance", bal.String()),
				zap.String("attributed", held.attributed.String()),
			)
		}
	}
	return ok, nil
}

// apply dispatches one operation to the engine.
func (r *Runner) apply(ctx context.Context, op Op) error {
	caller, err := ResolveAccount(op.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}

	switch op.Op {
	case OpMint:
		return r.mint(caller, op)

	case OpInitPool:
		shares, err := parseAmount("shares", op.Shares)
		if err != nil {
			return err
		}
		_, err = r.engine.InitPool(ctx, caller, op.Grid, shares, op.SoldRatio)
		return err

	case OpChangeShares:
		delta, err := parseAmount("shares", op.Shares)
		if err != nil {
			return err
		}
		_, err = r.engine.ChangeShares(ctx, caller, op.Grid, gridex.ShareChange{Delta: delta, SoldRatio: op.SoldRatio})
		return err

	case OpBatchChangeShares, OpArbitrageBatchChangeShares:
		changes, err := shareChanges(op.Changes)
		if err != nil {
			return err
		}
		maxStock, err := parseOptionalAmount("max_stock_in", op.MaxStockIn)
		if err != nil {
			return err
		}
		maxMoney, err := parseOptionalAmount("max_money_in", op.MaxMoneyIn)
		if err != nil {
			return err
		}
		if op.Op == OpBatchChangeShares {
			_, err = r.engine.BatchChangeShares(ctx, caller, op.BeginGrid, changes, maxStock, maxMoney)
			return err
		}
		_, err = r.engine.ArbitrageAndBatchChangeShares(ctx, caller, op.Low, op.Ref, op.High, op.BeginGrid, changes, maxStock, maxMoney)
		return err

	case OpSell, OpBuy:
		amount, err := parseAmount("amount", op.Amount)
		if err != nil {
			return err
		}
		codec, err := r.engine.Codec()
		if err != nil {
			return err
		}
		limit, err := op.priceLimit(codec)
		if err != nil {
			return err
		}
		if op.Op == OpSell {
			_, err = r.engine.SellToPools(ctx, caller, limit, amount, op.StartGrid, op.EndGrid)
			return err
		}
		_, err = r.engine.BuyFromPools(ctx, caller, limit, amount, op.StartGrid, op.EndGrid)
		return err

	case OpBatchTrade:
		sells, err := tradeArgs(op.Sells)
		if err != nil {
			return err
		}
		buys, err := tradeArgs(op.Buys)
		if err != nil {
			return err
		}
		_, err = r.engine.BatchTrade(ctx, caller, sells, buys)
		return err

	case OpArbitrage:
		_, err := r.engine.Arbitrage(ctx, caller, op.Low, op.Ref, op.High)
		return err

	case OpSetFee:
		return r.engine.SetFee(caller, op.Fee)

	case OpSetURI:
		return r.engine.SetURI(caller, op.URI)

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// mint credits the caller with stock, money or any asset address.
func (r *Runner) mint(holder common.Address, op Op) error {
	amount, err := parseAmount("amount", op.Amount)
	if err != nil {
		return err
	}
	params, err := r.engine.LoadParams()
	if err != nil {
		return err
	}

	var token common.Address
	switch strings.ToLower(strings.TrimSpace(op.Asset)) {
	case "stock":
		token = params.Stock
	case "money":
		token = params.Money
	default:
		if !common.IsHexAddress(op.Asset) {
			return fmt.Errorf("invalid asset %q", op.Asset)
		}
		token = common.HexToAddress(op.Asset)
	}
	return r.ledger.Mint(token, holder, amount)
}
