package database

// schema is applied idempotently by EnsureSchema. NAV and index values are
// NUMERIC so they round-trip through shopspring decimals without drift.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trading_calendar (
		trade_date     DATE PRIMARY KEY,
		is_trading_day BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS fund_info (
		code      TEXT PRIMARY KEY,
		name      TEXT NOT NULL DEFAULT '',
		type_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS fund_nav (
		code       TEXT    NOT NULL,
		trade_date DATE    NOT NULL,
		unit_nav   NUMERIC(20, 8),
		adj_nav    NUMERIC(20, 8),
		acc_nav    NUMERIC(20, 8),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (code, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS index_quote (
		index_code TEXT NOT NULL,
		trade_date DATE NOT NULL,
		close      NUMERIC(20, 6) NOT NULL,
		prev_close NUMERIC(20, 6),
		PRIMARY KEY (index_code, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id                UUID PRIMARY KEY,
		mode              TEXT NOT NULL,
		benchmark         TEXT NOT NULL DEFAULT '',
		start_date        DATE NOT NULL,
		end_date          DATE NOT NULL,
		funds             TEXT[] NOT NULL,
		final_unit_nav    NUMERIC(20, 8) NOT NULL,
		final_value       NUMERIC(24, 4) NOT NULL,
		total_return      NUMERIC(12, 4) NOT NULL,
		benchmark_return  NUMERIC(12, 4),
		annualized_return NUMERIC(12, 6),
		max_drawdown      NUMERIC(12, 4) NOT NULL,
		sharpe_ratio      NUMERIC(12, 6),
		trades            INTEGER NOT NULL,
		rejected          INTEGER NOT NULL,
		report            JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at DESC)`,
}
