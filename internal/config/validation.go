// Package config provides configuration management for the fund backtester.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CronParser is the six-field (with seconds) parser shared with the scheduler
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var lookbackPattern = regexp.MustCompile(`^(\d+)([DWMY])$`)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("navtype", validateNAVType)
	_ = v.RegisterValidation("timing", validateTiming)
	_ = v.RegisterValidation("cronspec", validateCronSpec)
	_ = v.RegisterValidation("lookback", validateLookback)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateNAVType accepts adjusted and accumulated NAV series
func validateNAVType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "adj", "acc":
		return true
	default:
		return false
	}
}

func validateTiming(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "yesterday", "today", "next-day", "same-day":
		return true
	default:
		return false
	}
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := CronParser.Parse(fl.Field().String())
	return err == nil
}

func validateLookback(fl validator.FieldLevel) bool {
	_, _, _, err := ParseLookback(fl.Field().String())
	return err == nil
}

// ParseLookback parses windows such as "30D", "6M" or "1Y" into a date offset
func ParseLookback(s string) (years, months, days int, err error) {
	m := lookbackPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, 0, 0, fmt.Errorf("invalid lookback %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return 0, 0, 0, fmt.Errorf("invalid lookback %q", s)
	}
	switch m[2] {
	case "D":
		return 0, 0, n, nil
	case "W":
		return 0, 0, 7 * n, nil
	case "M":
		return 0, n, 0, nil
	default:
		return n, 0, 0, nil
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	// Validate backtest date range
	startDate, endDate, err := cfg.Backtest.DateRange()
	if err != nil {
		return err
	}
	if !startDate.Before(endDate) {
		return fmt.Errorf("backtest start_date must be before end_date")
	}

	if cfg.Backtest.WarnTolerance < cfg.Backtest.NoiseTolerance {
		return fmt.Errorf("warn_tolerance cannot be below noise_tolerance")
	}

	// Validate production environment requirements
	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	// Validate connection pool settings
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.Report.PersistRun && !cfg.Database.Enabled {
		return fmt.Errorf("report.persist_run requires the database to be enabled")
	}
	if cfg.DataSource.Type == "postgres" && !cfg.Database.Enabled {
		return fmt.Errorf("postgres data source requires the database to be enabled")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "datetime":
			errMsg += fmt.Sprintf("- Field '%s' must be a YYYY-MM-DD date, got '%v'\n", field, value)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "navtype":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: adj, acc\n", field)
		case "timing":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: yesterday, today, next-day, same-day\n", field)
		case "cronspec":
			errMsg += fmt.Sprintf("- Field '%s' is not a valid cron expression: '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.Enabled && isTestCredential(cfg.Database.Password) {
		return fmt.Errorf("production environment should not use test database credentials")
	}
	if cfg.IsProduction() && cfg.DataSource.Type == "http" && isTestCredential(cfg.DataSource.APIKey) {
		return fmt.Errorf("production environment should not use a test NAV API key")
	}
	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
