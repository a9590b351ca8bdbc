package datasource

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/config"
	"github.com/yourusername/fund-backtester/internal/database"
	"github.com/yourusername/fund-backtester/internal/repository"
)

// SourceType represents the type of data source
type SourceType string

const (
	// FileSourceType reads CSV files from a directory
	FileSourceType SourceType = "file"
	// HTTPSourceType calls a JSON NAV API
	HTTPSourceType SourceType = "http"
	// SQLiteSourceType reads a local SQLite file
	SQLiteSourceType SourceType = "sqlite"
	// PostgresSourceType reads the Postgres market data tables
	PostgresSourceType SourceType = "postgres"
)

// Factory creates Source implementations based on configuration
type Factory struct {
	logger *logrus.Logger
	db     *database.DB
}

// NewFactory creates a new data source factory. db may be nil unless the
// postgres source is selected.
func NewFactory(db *database.DB, logger *logrus.Logger) *Factory {
	return &Factory{
		logger: logger,
		db:     db,
	}
}

// NewSource creates the configured Source, wrapped in a cache when a TTL is set
func (f *Factory) NewSource(cfg config.DataSourceConfig) (Source, error) {
	source, err := f.create(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTLSeconds > 0 {
		return NewCachedSource(source, time.Duration(cfg.CacheTTLSeconds)*time.Second), nil
	}
	return source, nil
}

func (f *Factory) create(cfg config.DataSourceConfig) (Source, error) {
	switch SourceType(cfg.Type) {
	case FileSourceType:
		return NewFileSource(cfg.Path)

	case SQLiteSourceType:
		return NewSQLiteSource(cfg.Path)

	case PostgresSourceType:
		if f.db == nil {
			return nil, fmt.Errorf("postgres data source requires the database to be enabled")
		}
		return NewPostgresSource(repository.NewPostgresMarketDataRepository(f.db)), nil

	case HTTPSourceType:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http data source requires base_url")
		}
		httpCfg := DefaultHTTPClientConfig()
		if cfg.TimeoutSeconds > 0 {
			httpCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		if cfg.RetryAttempts > 0 {
			httpCfg.MaxRetries = cfg.RetryAttempts
		}
		if cfg.RequestsPerSecond > 0 {
			httpCfg.RateLimit = cfg.RequestsPerSecond
		}
		client := NewRateLimitedHTTPClient(httpCfg, f.logger)
		return NewHTTPSource(client, cfg.BaseURL, cfg.APIKey, f.logger), nil

	default:
		return nil, fmt.Errorf("unknown data source type: %s", cfg.Type)
	}
}
