package runner

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap/zaptest"

	"gridex/internal/dex"
	"gridex/internal/gridex"
)

type fakeSource struct {
	latest     uint64
	logs       []types.Log
	ranges     []Range
	topics     []common.Hash
	failFilter int
}

func (f *fakeSource) ChainID(context.Context) (uint64, error) { return 10, nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	if f.failFilter > 0 {
		f.failFilter--
		return nil, errors.New("rpc timeout")
	}
	f.ranges = append(f.ranges, Range{From: from, To: to})
	f.topics = topic0
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	// Providers may repeat a log at a range boundary.
	if len(out) > 0 {
		out = append(out, out[len(out)-1])
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

func feeLog(t *testing.T, block uint64, fee uint32) types.Log {
	t.Helper()
	encoder, err := dex.NewEncoder(testEngine)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	log, err := encoder.Encode(gridex.FeeChanged{Fee: fee})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	log.BlockNumber = block
	log.TxHash = common.BigToHash(common.Big1)
	return log
}

func TestFetcherRun(t *testing.T) {
	source := &fakeSource{
		latest: 105,
		logs:   []types.Log{feeLog(t, 101, 10), feeLog(t, 104, 20)},
	}
	store := &memoryStorage{}
	cfg := FetchConfig{
		FromBlock:         100,
		Addresses:         []common.Address{testEngine},
		BatchSize:         3,
		CheckpointEnabled: true,
		CheckpointPath:    filepath.Join(t.TempDir(), "fetch.json"),
		MaxRetries:        1,
	}
	source.failFilter = 1

	if err := NewFetcher(cfg, source, store, zaptest.NewLogger(t)).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(source.ranges, []Range{{100, 102}, {103, 105}}) {
		t.Fatalf("ranges = %v", source.ranges)
	}
	want, _ := dex.EventTopics()
	if !reflect.DeepEqual(source.topics, want) {
		t.Fatalf("default topics not used")
	}
	if len(store.logs) != 2 {
		t.Fatalf("expected duplicates dropped, got %d logs", len(store.logs))
	}
	first := store.logs[0]
	if first.RunID != "chain-10" || first.ChainID != 10 || first.Seq != 101 || first.Timestamp != 1_700_000_000+101*12 {
		t.Fatalf("record mismatch: %+v", first)
	}
	if names := eventNames(t, store.logs); !reflect.DeepEqual(names, []string{"FeeChanged", "FeeChanged"}) {
		t.Fatalf("events = %v", names)
	}

	source.latest = 107
	source.ranges = nil
	if err := NewFetcher(cfg, source, store, zaptest.NewLogger(t)).Run(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !reflect.DeepEqual(source.ranges, []Range{{106, 107}}) {
		t.Fatalf("resumed ranges = %v", source.ranges)
	}
}

func TestFetcherValidation(t *testing.T) {
	source := &fakeSource{latest: 1}
	tests := []struct {
		name string
		cfg  FetchConfig
	}{
		{name: "no batch size", cfg: FetchConfig{Addresses: []common.Address{testEngine}}},
		{name: "no addresses", cfg: FetchConfig{BatchSize: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewFetcher(tt.cfg, source, &memoryStorage{}, nil).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if err := NewFetcher(FetchConfig{BatchSize: 1, Addresses: []common.Address{testEngine}}, nil, &memoryStorage{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error for nil source")
	}
}
