package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trading_calendar (
    trade_date     TEXT PRIMARY KEY,
    is_trading_day INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS fund_info (
    code      TEXT PRIMARY KEY,
    name      TEXT NOT NULL DEFAULT '',
    type_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fund_nav (
    code       TEXT NOT NULL,
    trade_date TEXT NOT NULL,
    adj_nav    REAL,
    acc_nav    REAL,
    PRIMARY KEY (code, trade_date)
);

CREATE TABLE IF NOT EXISTS index_quote (
    index_code TEXT NOT NULL,
    trade_date TEXT NOT NULL,
    close      REAL NOT NULL,
    PRIMARY KEY (index_code, trade_date)
);
`

// sqliteCodeBatch stays under SQLite's default host parameter limit
const sqliteCodeBatch = 500

// SQLiteSource reads market data from a local SQLite file with the same
// tables as the Postgres store. Dates are stored as YYYY-MM-DD text.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens (or creates) the database at path and applies the schema
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Name returns the name of the data source
func (s *SQLiteSource) Name() string {
	return "sqlite"
}

// Close releases the database handle
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// TradingDates returns the open days in [begin, end]
func (s *SQLiteSource) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_date FROM trading_calendar
		WHERE is_trading_day = 1 AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date`,
		begin.Format(apiDateLayout), end.Format(apiDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query trading calendar: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan trading date: %w", err)
		}
		d, err := time.Parse(apiDateLayout, raw)
		if err != nil {
			return nil, NewDataSourceError("sqlite", ErrCodeInvalidData, "bad calendar date "+raw, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// FundNAV returns NAV points for codes in [begin, end]
func (s *SQLiteSource) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error) {
	column := "adj_nav"
	if navType == NAVTypeAccumulated {
		column = "acc_nav"
	}

	var points []models.NAVPoint
	for start := 0; start < len(codes); start += sqliteCodeBatch {
		batch := codes[start:min(start+sqliteCodeBatch, len(codes))]
		query := fmt.Sprintf(`
			SELECT code, trade_date, %s FROM fund_nav
			WHERE code IN (%s) AND trade_date >= ? AND trade_date <= ? AND %s IS NOT NULL
			ORDER BY code, trade_date`,
			column, placeholders(len(batch)), column)

		args := make([]any, 0, len(batch)+2)
		for _, c := range batch {
			args = append(args, c)
		}
		args = append(args, begin.Format(apiDateLayout), end.Format(apiDateLayout))

		batchPoints, err := s.queryPoints(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query fund nav: %w", err)
		}
		points = append(points, batchPoints...)
	}
	return points, nil
}

// IndexQuotes returns the closing prices of an index in [begin, end]
func (s *SQLiteSource) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	points, err := s.queryPoints(ctx, `
		SELECT index_code, trade_date, close FROM index_quote
		WHERE index_code = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date`,
		indexCode, begin.Format(apiDateLayout), end.Format(apiDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query index quotes: %w", err)
	}
	return points, nil
}

// Instruments returns the fund master data known for codes
func (s *SQLiteSource) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	var out []models.Instrument
	for start := 0; start < len(codes); start += sqliteCodeBatch {
		batch := codes[start:min(start+sqliteCodeBatch, len(codes))]
		args := make([]any, len(batch))
		for i, c := range batch {
			args[i] = c
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT code, name, type_name FROM fund_info WHERE code IN (`+placeholders(len(batch))+`) ORDER BY code`,
			args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query fund info: %w", err)
		}
		for rows.Next() {
			var inst models.Instrument
			var typeName string
			if err := rows.Scan(&inst.Code, &inst.Name, &typeName); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan fund info: %w", err)
			}
			inst.Category = models.CategoryFromTypeName(typeName)
			out = append(out, inst)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ImportNAV upserts NAV points for navType inside one transaction
func (s *SQLiteSource) ImportNAV(ctx context.Context, points []models.NAVPoint, navType NAVType) error {
	column := "adj_nav"
	if navType == NAVTypeAccumulated {
		column = "acc_nav"
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
			INSERT INTO fund_nav (code, trade_date, %s) VALUES (?, ?, ?)
			ON CONFLICT(code, trade_date) DO UPDATE SET %s = excluded.%s`, column, column, column)
		for _, p := range points {
			if _, err := tx.ExecContext(ctx, query, p.Code, p.Date.Format(apiDateLayout), p.Value); err != nil {
				return fmt.Errorf("failed to import nav for %s: %w", p.Code, err)
			}
		}
		return nil
	})
}

// ImportCalendar marks dates as trading days
func (s *SQLiteSource) ImportCalendar(ctx context.Context, dates []time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range dates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trading_calendar (trade_date, is_trading_day) VALUES (?, 1)
				 ON CONFLICT(trade_date) DO UPDATE SET is_trading_day = 1`,
				d.Format(apiDateLayout)); err != nil {
				return fmt.Errorf("failed to import trading date: %w", err)
			}
		}
		return nil
	})
}

// ImportIndex upserts index closing prices
func (s *SQLiteSource) ImportIndex(ctx context.Context, points []models.NAVPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range points {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO index_quote (index_code, trade_date, close) VALUES (?, ?, ?)
				 ON CONFLICT(index_code, trade_date) DO UPDATE SET close = excluded.close`,
				p.Code, p.Date.Format(apiDateLayout), p.Value); err != nil {
				return fmt.Errorf("failed to import index quote: %w", err)
			}
		}
		return nil
	})
}

// ImportInstruments upserts fund master rows. typeNames maps code to the
// first-level fund type name.
func (s *SQLiteSource) ImportInstruments(ctx context.Context, insts []models.Instrument, typeNames map[string]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, inst := range insts {
			typeName := typeNames[inst.Code]
			if typeName == "" && inst.IsMoneyMarket() {
				typeName = models.MoneyMarketTypeName
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fund_info (code, name, type_name) VALUES (?, ?, ?)
				 ON CONFLICT(code) DO UPDATE SET name = excluded.name, type_name = excluded.type_name`,
				inst.Code, inst.Name, typeName); err != nil {
				return fmt.Errorf("failed to import fund info: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteSource) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}

func (s *SQLiteSource) queryPoints(ctx context.Context, query string, args ...any) ([]models.NAVPoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.NAVPoint
	for rows.Next() {
		var (
			p   models.NAVPoint
			raw string
		)
		if err := rows.Scan(&p.Code, &raw, &p.Value); err != nil {
			return nil, err
		}
		if p.Date, err = time.Parse(apiDateLayout, raw); err != nil {
			return nil, NewDataSourceError("sqlite", ErrCodeInvalidData, "bad date "+raw, err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
