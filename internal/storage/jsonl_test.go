package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gridex/internal/model"
)

func readLines(t *testing.T, path string) [][]byte {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestJsonlStorageAppends(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out", "logs.jsonl")
	snapPath := filepath.Join(dir, "out", "pools.jsonl")
	store := NewJsonlStorage(logPath, snapPath)
	ctx := context.Background()

	first := []model.LogRecord{{RunID: "r", Seq: 1, Topics: []string{"0x01"}, Data: "0x"}}
	second := []model.LogRecord{{RunID: "r", Seq: 2, LogIndex: 0}, {RunID: "r", Seq: 2, LogIndex: 1}}
	if err := store.PutLogBatch(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.PutLogBatch(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := store.PutLogBatch(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	lines := readLines(t, logPath)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var got model.LogRecord
	if err := json.Unmarshal(lines[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, first[0]) {
		t.Fatalf("record mismatch: %+v != %+v", got, first[0])
	}

	snap := model.PoolSnapshot{RunID: "r", Grid: 785, Price: "1.5", TotalShares: "10", TotalStock: "10", SoldRatio: "0", Stock: "10", Money: "0"}
	if err := store.PutSnapshots(ctx, []model.PoolSnapshot{snap}); err != nil {
		t.Fatalf("put snapshots: %v", err)
	}
	if lines := readLines(t, snapPath); len(lines) != 1 {
		t.Fatalf("expected 1 snapshot line, got %d", len(lines))
	}
}

func TestJsonlStorageWithoutSnapshotPath(t *testing.T) {
	store := NewJsonlStorage(filepath.Join(t.TempDir(), "logs.jsonl"), "")
	if err := store.PutSnapshots(context.Background(), []model.PoolSnapshot{{Grid: 1}}); err != nil {
		t.Fatalf("put snapshots: %v", err)
	}
}

func TestJsonlStorageCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewJsonlStorage(filepath.Join(t.TempDir(), "logs.jsonl"), "")
	if err := store.PutLogBatch(ctx, []model.LogRecord{{Seq: 1}}); err == nil {
		t.Fatalf("expected canceled context error")
	}
}
