package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gridex/internal/model"
)

// JsonlStorage appends log records and pool snapshots to two JSONL files.
type JsonlStorage struct {
	logPath      string
	snapshotPath string
	mu           sync.Mutex
}

func NewJsonlStorage(logPath, snapshotPath string) *JsonlStorage {
	return &JsonlStorage{logPath: logPath, snapshotPath: snapshotPath}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	rows := make([]interface{}, len(logs))
	for i := range logs {
		rows[i] = logs[i]
	}
	return s.append(ctx, s.logPath, rows)
}

// PutSnapshots appends pool snapshots as JSON lines. Without a snapshot
// path they are dropped.
func (s *JsonlStorage) PutSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if s.snapshotPath == "" {
		return nil
	}
	rows := make([]interface{}, len(snapshots))
	for i := range snapshots {
		rows[i] = snapshots[i]
	}
	return s.append(ctx, s.snapshotPath, rows)
}

func (s *JsonlStorage) append(ctx context.Context, path string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := OpenAppend(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, row := range rows {
		if err := WriteJSONLine(writer, row); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// OpenAppend opens path for appending, creating its directory as needed.
func OpenAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return file, nil
}

// WriteJSONLine writes value as one JSON line.
func WriteJSONLine(writer *bufio.Writer, value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// WriteFileAtomic replaces path with data through a temporary file.
func WriteFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
