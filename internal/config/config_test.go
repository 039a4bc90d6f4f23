package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "1700000000", want: 1700000000},
		{in: "2024-01-01T00:00:00Z", want: 1704067200},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %d, %v", tt.in, got, err)
		}
	}
}

func TestSplitAndClean(t *testing.T) {
	got := splitAndClean(" 0xaa, ,0xbb ")
	if !reflect.DeepEqual(got, []string{"0xaa", "0xbb"}) {
		t.Fatalf("unexpected %v", got)
	}
	if splitAndClean("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestLoadSimulateLayers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gridex.yaml")
	content := "granularity: 64\nstock-decimals: 8\nbatch-size: 7\nscenario: ops.jsonl\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GRIDEX_MONEY_DECIMALS", "6")
	t.Setenv("GRIDEX_FEE", "12")

	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.Uint64("batch-size", 100, "")
	flags.String("scenario", "", "")
	if err := flags.Parse([]string{"--scenario", "other.jsonl"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSimulate(cfgPath, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pair.Granularity != 64 || cfg.Pair.StockDecimals != 8 || cfg.Pair.MoneyDecimals != 6 {
		t.Fatalf("pair mismatch: %+v", cfg.Pair)
	}
	if cfg.Pair.Fee == nil || *cfg.Pair.Fee != 12 {
		t.Fatalf("fee mismatch: %v", cfg.Pair.Fee)
	}
	if cfg.BatchSize != 7 {
		t.Fatalf("config file must override flag default, got %d", cfg.BatchSize)
	}
	if cfg.Scenario != "other.jsonl" {
		t.Fatalf("explicit flag must win, got %q", cfg.Scenario)
	}
	if cfg.ChainID != 31337 || cfg.Pair.Admin != "admin" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
}

func TestLoadParamsDefaultFee(t *testing.T) {
	cfg, err := LoadParams("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pair.Fee != nil {
		t.Fatalf("expected granularity default fee, got %d", *cfg.Pair.Fee)
	}

	t.Setenv("GRIDEX_STOCK_DECIMALS", "300")
	if _, err := LoadParams("", nil); err == nil {
		t.Fatalf("expected range error for decimals")
	}
}

func TestLoadParamsExplicitZeroFee(t *testing.T) {
	t.Setenv("GRIDEX_FEE", "0")
	cfg, err := LoadParams("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pair.Fee == nil || *cfg.Pair.Fee != 0 {
		t.Fatalf("expected explicit zero fee, got %v", cfg.Pair.Fee)
	}
}
