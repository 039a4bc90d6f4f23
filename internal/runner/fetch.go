package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"gridex/internal/dex"
	"gridex/internal/model"
)

// LogSource is the chain view the fetcher reads from. *chain.Client
// satisfies it.
type LogSource interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// LogSink receives fetched log records.
type LogSink interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// FetchConfig holds runtime settings for fetching deployed engine logs.
type FetchConfig struct {
	RunID             string
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Fetcher streams engine logs from a chain into a sink, so deployed engines
// feed the same decode and report pipeline as simulations.
type Fetcher struct {
	cfg        FetchConfig
	source     LogSource
	sink       LogSink
	logger     *zap.Logger
	retry      retryPolicy
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

func NewFetcher(cfg FetchConfig, source LogSource, sink LogSink, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		logger:     logger,
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run fetches [FromBlock, ToBlock] in batches. ToBlock 0 means the latest
// block. Topic0 defaults to the engine event signatures.
func (f *Fetcher) Run(ctx context.Context) error {
	if f.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if f.sink == nil {
		return fmt.Errorf("log sink is nil")
	}
	if f.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(f.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	topics := f.cfg.Topic0
	if len(topics) == 0 {
		var err error
		if topics, err = dex.EventTopics(); err != nil {
			return err
		}
	}

	chainID, err := f.source.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	from := f.cfg.FromBlock
	to := f.cfg.ToBlock
	if to == 0 {
		latest, err := f.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	runID := f.cfg.RunID
	cp, ok, err := f.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		if runID == "" {
			runID = cp.RunID
		}
		if cp.LastProcessed >= from {
			from = cp.LastProcessed + 1
			f.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessed), zap.Uint64("from", from))
		}
	}
	if runID == "" {
		runID = fmt.Sprintf("chain-%d", chainID)
	}

	if from > to {
		f.logger.Info("nothing to fetch", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, f.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}

		f.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := f.filterLogsWithRetry(ctx, blockRange, topics)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if f.isDuplicate(log) {
				continue
			}
			ts, err := f.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			records = append(records, buildLogRecord(runID, chainID, log, ts, ingestedAt))
		}

		if err := f.sink.PutLogBatch(ctx, records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		if err := f.checkpoint.Save(runID, blockRange.To); err != nil {
			return err
		}

		f.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}
	return nil
}

func (f *Fetcher) filterLogsWithRetry(ctx context.Context, r Range, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := f.retry.do(ctx, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = f.source.FilterLogs(ctx, r.From, r.To, f.cfg.Addresses, topics)
		return err
	}, zap.Uint64("from", r.From), zap.Uint64("to", r.To))
	return logs, err
}

func (f *Fetcher) blockTimestampWithRetry(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := f.retry.do(ctx, "block timestamp fetch", func(ctx context.Context) error {
		var err error
		ts, err = f.source.BlockTimestamp(ctx, number)
		return err
	}, zap.Uint64("block_number", number))
	return ts, err
}

func (f *Fetcher) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := f.seen[id]; ok {
		return true
	}
	f.seen[id] = struct{}{}
	return false
}
