package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "gridex",
		Short:        "Grid exchange engine: simulate, journal and report",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Print grid prices or find the grid of a price",
		RunE:  runGrid,
	}
	gridCmd.Flags().Int("granularity", 16, "grids per doubling of price (16, 64 or 256)")
	gridCmd.Flags().Int("from", 0, "first grid to print")
	gridCmd.Flags().Int("to", 0, "last grid to print (inclusive), 0 means from")
	gridCmd.Flags().String("price", "", "price in money per stock; prints its grid instead")
	root.AddCommand(gridCmd)

	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "Resolve engine parameters",
		RunE:  runParams,
	}
	addPairFlags(paramsCmd)
	paramsCmd.Flags().String("rpc", "", "RPC URL for reading token decimals and symbols")
	addLogLevelFlag(paramsCmd)
	root.AddCommand(paramsCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario against a fresh engine and journal its events",
		RunE:  runSimulate,
	}
	addPairFlags(simulateCmd)
	simulateCmd.Flags().String("scenario", "", "scenario JSONL path")
	simulateCmd.Flags().String("run-id", "", "run id, generated when empty")
	simulateCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on journaled logs")
	simulateCmd.Flags().String("engine", "gridex", "engine address or account name")
	simulateCmd.Flags().String("out", "./data/logs.jsonl", "output logs JSONL path")
	simulateCmd.Flags().String("snapshots", "./data/snapshots.jsonl", "output pool snapshots JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the JSONL outputs")
	simulateCmd.Flags().Uint64("batch-size", 100, "operations per journal write")
	simulateCmd.Flags().String("start-time", "", "timestamp of operation zero (unix seconds or RFC3339), default now")
	simulateCmd.Flags().Uint64("op-interval", 12, "seconds between operations")
	simulateCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	simulateCmd.Flags().Bool("checkpoint-enabled", false, "enable checkpointing")
	simulateCmd.Flags().Int("max-retries", 3, "maximum storage retry attempts")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().Uint64("snapshot-chunk", 500, "pool snapshots per storage write")
	simulateCmd.Flags().Bool("stop-on-error", false, "stop at the first rejected operation")
	simulateCmd.Flags().String("metrics-file", "", "write prometheus metrics to this textfile")
	addLogLevelFlag(simulateCmd)
	root.AddCommand(simulateCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch deployed engine logs into the log journal",
		RunE:  runFetch,
	}
	fetchCmd.Flags().String("rpc", "", "RPC URL")
	fetchCmd.Flags().String("run-id", "", "run id stamped on fetched logs, default chain-<id>")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().StringSlice("address", nil, "engine addresses (comma-separated)")
	fetchCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), default all engine events")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path when no Postgres DSN is set")
	fetchCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	fetchCmd.Flags().String("checkpoint", "./data/fetch_checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	addLogLevelFlag(fetchCmd)
	root.AddCommand(fetchCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode journaled logs into typed events",
		RunE:  runDecode,
	}
	addPairFlags(decodeCmd)
	decodeCmd.Flags().String("rpc", "", "RPC URL for reading pair metadata from the engine")
	decodeCmd.Flags().String("in", "", "input logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	addLogLevelFlag(decodeCmd)
	root.AddCommand(decodeCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate typed trade events into window metrics",
		RunE:  runReport,
	}
	reportCmd.Flags().String("rpc", "", "RPC URL for engine balances (TVL)")
	reportCmd.Flags().String("in", "", "input typed events JSONL")
	reportCmd.Flags().String("out", "./data/window_metrics.jsonl", "output JSONL path when no Postgres DSN is set")
	reportCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	reportCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	reportCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	reportCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	addLogLevelFlag(reportCmd)
	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().Int("granularity", 16, "grids per doubling of price (16, 64 or 256)")
	cmd.Flags().String("stock", "", "stock asset address or name")
	cmd.Flags().String("money", "", "money asset address or name")
	cmd.Flags().Int("stock-decimals", 18, "stock decimals")
	cmd.Flags().Int("money-decimals", 18, "money decimals")
	cmd.Flags().Int64("fee", -1, "fee in basis points, -1 means the granularity default")
	cmd.Flags().String("admin", "admin", "admin address or account name")
	cmd.Flags().String("uri", "", "share metadata URI")
}

func addLogLevelFlag(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
