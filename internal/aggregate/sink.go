package aggregate

import (
	"bufio"
	"context"
	"fmt"

	"gridex/internal/model"
	"gridex/internal/storage"
)

// JsonlSink appends window metrics to a JSONL file.
type JsonlSink struct {
	Path string
}

func (s JsonlSink) UpsertWindowMetrics(ctx context.Context, metrics []model.WindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := storage.OpenAppend(s.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, m := range metrics {
		if err := storage.WriteJSONLine(writer, m); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}
