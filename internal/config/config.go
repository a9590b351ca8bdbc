// Package config provides configuration management for the fund backtester.
package config

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	DataSource DataSourceConfig `mapstructure:"data_source" validate:"required"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Report     ReportConfig     `mapstructure:"report"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	AWS        AWSConfig        `mapstructure:"aws"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration.
// The database is optional; it stores market data and run history.
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
}

// DataSourceConfig selects where calendars and NAV series are read from
type DataSourceConfig struct {
	Type              string  `mapstructure:"type" validate:"required,oneof=file http sqlite postgres"`
	Path              string  `mapstructure:"path" validate:"required_if=Type file,required_if=Type sqlite"`
	BaseURL           string  `mapstructure:"base_url" validate:"required_if=Type http,omitempty,url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	CacheTTLSeconds   int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	Concurrency       int     `mapstructure:"concurrency" validate:"gte=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate                 string   `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate                   string   `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	Funds                     []string `mapstructure:"funds"`
	Benchmark                 string   `mapstructure:"benchmark"`
	NAVType                   string   `mapstructure:"nav_type" validate:"required,navtype"`
	Mode                      string   `mapstructure:"mode" validate:"required,oneof=ledger weights"`
	RedemptionTiming          string   `mapstructure:"redemption_timing" validate:"required,timing"`
	InitialNotional           float64  `mapstructure:"initial_notional" validate:"required,gt=0"`
	FlatFee                   float64  `mapstructure:"flat_fee" validate:"gte=0"`
	PercentageFee             float64  `mapstructure:"percentage_fee" validate:"gte=0,lt=100"`
	NoiseTolerance            float64  `mapstructure:"noise_tolerance" validate:"gte=0"`
	WarnTolerance             float64  `mapstructure:"warn_tolerance" validate:"gte=0"`
	DustThreshold             float64  `mapstructure:"dust_threshold" validate:"gt=0"`
	ContinueOnRedemptionError bool     `mapstructure:"continue_on_redemption_error"`
	AdjustMoneyMarket         bool     `mapstructure:"adjust_money_market"`
	RiskFreeRate              float64  `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	OrdersFile                string   `mapstructure:"orders_file"`
	WeightsFile               string   `mapstructure:"weights_file"`
}

// ReportConfig controls result exports
type ReportConfig struct {
	OutputPath string   `mapstructure:"output_path"`
	Formats    []string `mapstructure:"formats" validate:"dive,oneof=csv json"`
	Frequency  string   `mapstructure:"frequency" validate:"omitempty,oneof=W ME QE"`
	PersistRun bool     `mapstructure:"persist_run"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// ScheduleConfig configures the recurring backtest job
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron" validate:"required_if=Enabled true,omitempty,cronspec"`
	Lookback string `mapstructure:"lookback" validate:"omitempty,lookback"`
}

// AWSConfig names the Secrets Manager secret overlaid on the file config
type AWSConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// DateRange parses the backtest start and end dates
func (b BacktestConfig) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest start_date: %w", err)
	}
	end, err := time.Parse(dateLayout, b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest end_date: %w", err)
	}
	return start, end, nil
}
