package storage

import (
	"context"

	"gridex/internal/model"
)

// Storage is the journal sink of a simulation run.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
	PutSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error
}
