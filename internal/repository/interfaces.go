package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yourusername/fund-backtester/internal/models"
)

// Querier is the subset of a pool or transaction the repositories use
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

// MarketDataRepository reads calendars, fund NAVs and index quotes
type MarketDataRepository interface {
	TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error)
	FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType string) ([]models.NAVPoint, error)
	IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error)
	Instruments(ctx context.Context, codes []string) ([]models.Instrument, error)
	UpsertNAV(ctx context.Context, points []models.NAVPoint, navType string) error
}

// BacktestRunRepository persists run summaries
type BacktestRunRepository interface {
	Save(ctx context.Context, run *models.BacktestRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error)
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error)
}
