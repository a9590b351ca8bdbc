package datasource

import (
	"context"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/repository"
)

// PostgresSource reads market data through the market data repository
type PostgresSource struct {
	repo repository.MarketDataRepository
}

// NewPostgresSource wraps a market data repository as a Source
func NewPostgresSource(repo repository.MarketDataRepository) *PostgresSource {
	return &PostgresSource{repo: repo}
}

// Name returns the name of the data source
func (s *PostgresSource) Name() string {
	return "postgres"
}

// TradingDates returns the open days in [begin, end]
func (s *PostgresSource) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	return s.repo.TradingDates(ctx, begin, end)
}

// FundNAV returns NAV points for codes in [begin, end]
func (s *PostgresSource) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error) {
	return s.repo.FundNAV(ctx, codes, begin, end, string(navType))
}

// IndexQuotes returns the closing prices of an index in [begin, end]
func (s *PostgresSource) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	return s.repo.IndexQuotes(ctx, indexCode, begin, end)
}

// Instruments returns the fund master data known for codes
func (s *PostgresSource) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	return s.repo.Instruments(ctx, codes)
}
