package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gridex/internal/model"
)

// Store provides Postgres persistence for journaled logs, pool snapshots,
// window metrics and processing state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PutLogBatch inserts log records, ignoring ones already journaled.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		batch.Queue(`
			INSERT INTO engine_logs (
				run_id, chain_id, seq, log_index, tx_hash, address, topics, data, ts, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (run_id, seq, log_index) DO NOTHING
		`,
			log.RunID,
			int64(log.ChainID),
			int64(log.Seq),
			int64(log.LogIndex),
			log.TxHash,
			log.Address,
			log.Topics,
			log.Data,
			int64(log.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutSnapshots inserts or updates the end-of-run state of pools.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				run_id, address, grid, price, total_shares, total_stock, sold_ratio, stock, money, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (run_id, address, grid)
			DO UPDATE SET
				price = EXCLUDED.price,
				total_shares = EXCLUDED.total_shares,
				total_stock = EXCLUDED.total_stock,
				sold_ratio = EXCLUDED.sold_ratio,
				stock = EXCLUDED.stock,
				money = EXCLUDED.money,
				updated_at = now()
		`,
			snap.RunID,
			snap.Address,
			snap.Grid,
			snap.Price,
			snap.TotalShares,
			snap.TotalStock,
			snap.SoldRatio,
			snap.Stock,
			snap.Money,
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.WindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO engine_window_metrics (
				address, window_size_seconds, window_start_ts, window_end_ts,
				buy_count, sell_count, stock_volume, money_volume, fee_stock, fee_money,
				avg_price, low_grid, high_grid, tvl_stock, tvl_money, fee_rate_stock, fee_rate_money, apr,
				fee_method, tvl_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now(),now())
			ON CONFLICT (address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				stock_volume = EXCLUDED.stock_volume,
				money_volume = EXCLUDED.money_volume,
				fee_stock = EXCLUDED.fee_stock,
				fee_money = EXCLUDED.fee_money,
				avg_price = EXCLUDED.avg_price,
				low_grid = EXCLUDED.low_grid,
				high_grid = EXCLUDED.high_grid,
				tvl_stock = EXCLUDED.tvl_stock,
				tvl_money = EXCLUDED.tvl_money,
				fee_rate_stock = EXCLUDED.fee_rate_stock,
				fee_rate_money = EXCLUDED.fee_rate_money,
				apr = EXCLUDED.apr,
				fee_method = EXCLUDED.fee_method,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			m.Address,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.BuyCount),
			int64(m.SellCount),
			m.StockVolume,
			m.MoneyVolume,
			m.FeeStock,
			m.FeeMoney,
			m.AvgPrice,
			m.LowGrid,
			m.HighGrid,
			m.TVLStock,
			m.TVLMoney,
			m.FeeRateStock,
			m.FeeRateMoney,
			m.APR,
			m.FeeMethod,
			m.TVLMethod,
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the stored position for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var pos int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM processing_state WHERE name=$1`, name)
	if err := row.Scan(&pos); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(pos), true, nil
}

// SaveState upserts the position for a name.
func (s *Store) SaveState(ctx context.Context, name string, pos uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processing_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(pos))
	return err
}
