package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/fund-backtester/internal/models"
)

// codeBatchSize caps the number of codes bound into a single NAV query
const codeBatchSize = 500

const errScanNAV = "failed to scan fund nav: %w"

// PostgresMarketDataRepository implements MarketDataRepository for PostgreSQL
type PostgresMarketDataRepository struct {
	db Querier
}

// NewPostgresMarketDataRepository creates a new market data repository
func NewPostgresMarketDataRepository(db Querier) MarketDataRepository {
	return &PostgresMarketDataRepository{db: db}
}

// navColumn maps a NAV type onto its fund_nav column
func navColumn(navType string) (string, error) {
	switch navType {
	case "adj":
		return "adj_nav", nil
	case "acc":
		return "acc_nav", nil
	default:
		return "", fmt.Errorf("unknown nav type %q", navType)
	}
}

// batches splits codes into consecutive slices of at most size codes
func batches(codes []string, size int) [][]string {
	if size <= 0 {
		size = codeBatchSize
	}
	var out [][]string
	for len(codes) > size {
		out = append(out, codes[:size:size])
		codes = codes[size:]
	}
	if len(codes) > 0 {
		out = append(out, codes)
	}
	return out
}

// TradingDates returns the open days between begin and end inclusive
func (r *PostgresMarketDataRepository) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	query := `
		SELECT trade_date FROM trading_calendar
		WHERE is_trading_day AND trade_date >= $1 AND trade_date <= $2
		ORDER BY trade_date
	`
	rows, err := r.db.Query(ctx, query, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading calendar: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan trading date: %w", err)
		}
		dates = append(dates, models.TruncateDate(d))
	}
	return dates, rows.Err()
}

// FundNAV returns NAV points for codes in [begin, end]. Rows with a null
// value for the requested NAV type are skipped.
func (r *PostgresMarketDataRepository) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType string) ([]models.NAVPoint, error) {
	column, err := navColumn(navType)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT code, trade_date, %s FROM fund_nav
		WHERE code = ANY($1) AND trade_date >= $2 AND trade_date <= $3 AND %s IS NOT NULL
		ORDER BY code, trade_date
	`, column, column)

	var points []models.NAVPoint
	for _, batch := range batches(codes, codeBatchSize) {
		rows, err := r.db.Query(ctx, query, batch, begin, end)
		if err != nil {
			return nil, fmt.Errorf("failed to query fund nav: %w", err)
		}
		for rows.Next() {
			var (
				p     models.NAVPoint
				value decimal.Decimal
			)
			if err := rows.Scan(&p.Code, &p.Date, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf(errScanNAV, err)
			}
			p.Date = models.TruncateDate(p.Date)
			p.Value = value.InexactFloat64()
			points = append(points, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read fund nav: %w", err)
		}
	}
	return points, nil
}

// IndexQuotes returns closing prices of an index in [begin, end]
func (r *PostgresMarketDataRepository) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	query := `
		SELECT index_code, trade_date, close FROM index_quote
		WHERE index_code = $1 AND trade_date >= $2 AND trade_date <= $3
		ORDER BY trade_date
	`
	rows, err := r.db.Query(ctx, query, indexCode, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query index quotes: %w", err)
	}
	defer rows.Close()

	var points []models.NAVPoint
	for rows.Next() {
		var (
			p          models.NAVPoint
			closePrice decimal.Decimal
		)
		if err := rows.Scan(&p.Code, &p.Date, &closePrice); err != nil {
			return nil, fmt.Errorf("failed to scan index quote: %w", err)
		}
		p.Date = models.TruncateDate(p.Date)
		p.Value = closePrice.InexactFloat64()
		points = append(points, p)
	}
	return points, rows.Err()
}

// Instruments returns fund master data for codes. Codes missing from
// fund_info are not returned.
func (r *PostgresMarketDataRepository) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	query := `SELECT code, name, type_name FROM fund_info WHERE code = ANY($1) ORDER BY code`

	var out []models.Instrument
	for _, batch := range batches(codes, codeBatchSize) {
		rows, err := r.db.Query(ctx, query, batch)
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
			return nil, fmt.Errorf("failed to read fund info: %w", err)
		}
	}
	return out, nil
}

// UpsertNAV writes NAV points into the column for navType
func (r *PostgresMarketDataRepository) UpsertNAV(ctx context.Context, points []models.NAVPoint, navType string) error {
	column, err := navColumn(navType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO fund_nav (code, trade_date, %s) VALUES ($1, $2, $3)
		ON CONFLICT (code, trade_date) DO UPDATE SET %s = EXCLUDED.%s, updated_at = now()
	`, column, column, column)

	for _, p := range points {
		if _, err := r.db.Exec(ctx, query, p.Code, p.Date, decimal.NewFromFloat(p.Value)); err != nil {
			return fmt.Errorf("failed to upsert nav for %s on %s: %w", p.Code, p.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}
