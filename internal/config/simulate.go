package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Pair PairConfig

	Scenario          string
	RunID             string
	ChainID           uint64
	Engine            string
	Out               string
	Snapshots         string
	PGDSN             string
	BatchSize         uint64
	StartTime         string
	OpInterval        uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	SnapshotChunk     uint64
	StopOnError       bool
	MetricsFile       string
	LogLevel          string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(pairDefaults, map[string]interface{}{
		"chain-id":           uint64(31337),
		"engine":             "gridex",
		"out":                "./data/logs.jsonl",
		"snapshots":          "./data/snapshots.jsonl",
		"batch-size":         uint64(100),
		"op-interval":        uint64(12),
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": false,
		"max-retries":        3,
		"retry-backoff":      500 * time.Millisecond,
		"snapshot-chunk":     uint64(500),
		"log-level":          "info",
	}))
	if err != nil {
		return SimulateConfig{}, err
	}
	pair, err := loadPair(v)
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Pair:              pair,
		Scenario:          v.GetString("scenario"),
		RunID:             v.GetString("run-id"),
		ChainID:           v.GetUint64("chain-id"),
		Engine:            v.GetString("engine"),
		Out:               v.GetString("out"),
		Snapshots:         v.GetString("snapshots"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetUint64("batch-size"),
		StartTime:         v.GetString("start-time"),
		OpInterval:        v.GetUint64("op-interval"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		SnapshotChunk:     v.GetUint64("snapshot-chunk"),
		StopOnError:       v.GetBool("stop-on-error"),
		MetricsFile:       v.GetString("metrics-file"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
