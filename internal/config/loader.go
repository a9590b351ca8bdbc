// Package config provides configuration management for the fund backtester.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "FUND_BACKTEST"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Read the configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Unmarshal configuration into Config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	// Read and expand the configuration file if it exists
	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, continue with defaults and environment variables

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// ReloadFromEnv reloads the configuration from FUND_BACKTEST_CONFIG_PATH when set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := LoadWithDefaults(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// FUND_BACKTEST_BACKTEST_START_DATE overrides backtest.start_date
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults fills every optional key. AutomaticEnv
// only resolves keys viper already knows about, so every overridable key
// gets a default here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fund-backtester")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("data_source.type", "file")
	v.SetDefault("data_source.path", "data")
	v.SetDefault("data_source.requests_per_second", 5)
	v.SetDefault("data_source.timeout_seconds", 30)
	v.SetDefault("data_source.retry_attempts", 3)
	v.SetDefault("data_source.cache_ttl_seconds", 3600)
	v.SetDefault("data_source.concurrency", 4)

	v.SetDefault("backtest.benchmark", "809007.EI")
	v.SetDefault("backtest.nav_type", "adj")
	v.SetDefault("backtest.mode", "ledger")
	v.SetDefault("backtest.redemption_timing", "yesterday")
	v.SetDefault("backtest.initial_notional", 1e9)
	v.SetDefault("backtest.flat_fee", 0.0)
	v.SetDefault("backtest.percentage_fee", 0.0)
	v.SetDefault("backtest.noise_tolerance", 10.0)
	v.SetDefault("backtest.warn_tolerance", 1000.0)
	v.SetDefault("backtest.dust_threshold", 1e-4)
	v.SetDefault("backtest.continue_on_redemption_error", false)
	v.SetDefault("backtest.adjust_money_market", true)
	v.SetDefault("backtest.risk_free_rate", 0.02)

	v.SetDefault("report.output_path", "output")
	v.SetDefault("report.formats", []string{"csv"})
	v.SetDefault("report.frequency", "ME")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 30 18 * * 1-5")
	v.SetDefault("schedule.lookback", "1Y")
}
