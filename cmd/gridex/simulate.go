package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gridex/internal/config"
	"gridex/internal/metrics"
	"gridex/internal/runner"
	"gridex/internal/storage"
	"gridex/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	ops, err := runner.LoadScenario(cfg.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	engineAddr, err := runner.ResolveAccount(cfg.Engine)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	startTime, err := config.ParseTimestamp(cfg.StartTime)
	if err != nil {
		return fmt.Errorf("parse start-time: %w", err)
	}
	if cfg.StartTime == "" {
		startTime = uint64(time.Now().Unix())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, _, err := resolveParams(ctx, cfg.Pair, nil, logger)
	if err != nil {
		return err
	}

	var store storage.Storage
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
	} else {
		store = storage.NewJsonlStorage(cfg.Out, cfg.Snapshots)
	}

	recorder := metrics.NewRecorder()
	r, err := runner.NewRunner(runner.Config{
		RunID:             cfg.RunID,
		ChainID:           cfg.ChainID,
		Engine:            engineAddr,
		Params:            params,
		BatchSize:         cfg.BatchSize,
		StartTime:         startTime,
		OpInterval:        cfg.OpInterval,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		SnapshotChunk:     cfg.SnapshotChunk,
		StopOnError:       cfg.StopOnError,
	}, store, recorder, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("ops", len(ops)),
		zap.String("engine", engineAddr.Hex()),
		zap.Int("granularity", params.Granularity),
		zap.Uint32("fee", params.Fee),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	summary, runErr := r.Run(ctx, ops)
	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("write metrics failed", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("simulate complete",
		zap.String("run_id", summary.RunID),
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("expected", summary.Expected),
		zap.Int("logs", summary.Logs),
		zap.Int("snapshots", summary.Snapshots),
	)
	return nil
}
