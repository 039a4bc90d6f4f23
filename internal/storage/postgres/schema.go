package postgres

// Amounts are stored as NUMERIC so 256-bit values survive.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS engine_logs (
		run_id TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		seq BIGINT NOT NULL,
		log_index BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		address TEXT NOT NULL,
		topics TEXT[] NOT NULL,
		data TEXT NOT NULL,
		ts BIGINT NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, seq, log_index)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		run_id TEXT NOT NULL,
		address TEXT NOT NULL,
		grid INTEGER NOT NULL,
		price NUMERIC NOT NULL,
		total_shares NUMERIC NOT NULL,
		total_stock NUMERIC NOT NULL,
		sold_ratio NUMERIC NOT NULL,
		stock NUMERIC NOT NULL,
		money NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, address, grid)
	)`,
	`CREATE TABLE IF NOT EXISTS engine_window_metrics (
		address TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts TIMESTAMPTZ NOT NULL,
		window_end_ts TIMESTAMPTZ NOT NULL,
		buy_count BIGINT NOT NULL,
		sell_count BIGINT NOT NULL,
		stock_volume NUMERIC NOT NULL,
		money_volume NUMERIC NOT NULL,
		fee_stock NUMERIC NOT NULL,
		fee_money NUMERIC NOT NULL,
		avg_price NUMERIC,
		low_grid INTEGER,
		high_grid INTEGER,
		tvl_stock NUMERIC,
		tvl_money NUMERIC,
		fee_rate_stock NUMERIC,
		fee_rate_money NUMERIC,
		apr NUMERIC,
		fee_method TEXT NOT NULL,
		tvl_method TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (address, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS processing_state (
		name TEXT PRIMARY KEY,
		last_processed BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}
