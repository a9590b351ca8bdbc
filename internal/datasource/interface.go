package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// NAVType selects which per-unit value series a source returns
type NAVType string

const (
	// NAVTypeAdjusted is the dividend-adjusted NAV
	NAVTypeAdjusted NAVType = "adj"
	// NAVTypeAccumulated is the accumulated NAV
	NAVTypeAccumulated NAVType = "acc"
)

// ParseNAVType validates a configured NAV type
func ParseNAVType(s string) (NAVType, error) {
	switch NAVType(s) {
	case NAVTypeAdjusted, NAVTypeAccumulated:
		return NAVType(s), nil
	case "":
		return NAVTypeAdjusted, nil
	default:
		return "", fmt.Errorf("unknown nav type %q", s)
	}
}

// DefaultBenchmark is the index used when a run names none
const DefaultBenchmark = "809007.EI"

// Source defines the interface for fetching market data a backtest needs.
// Results need not be sorted; duplicate (code, date) rows keep the last.
type Source interface {
	// TradingDates returns the open days in [begin, end]
	TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error)

	// FundNAV returns NAV points for codes in [begin, end]
	FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error)

	// IndexQuotes returns the closing prices of an index in [begin, end]
	IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error)

	// Instruments returns the fund master data known for codes
	Instruments(ctx context.Context, codes []string) ([]models.Instrument, error)

	// Name returns the name of the data source
	Name() string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error code
func (e DataSourceError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && target == sentinel
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeUnknown              = "unknown"
)

// Error constructors
var (
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("data not found")
	ErrInvalidData          = errors.New("invalid data format")
	ErrNetworkError         = errors.New("network error")
	ErrServerError          = errors.New("server error")
)

var codeSentinels = map[string]error{
	ErrCodeRateLimitExceeded:    ErrRateLimitExceeded,
	ErrCodeAuthenticationFailed: ErrAuthenticationFailed,
	ErrCodeNotFound:             ErrNotFound,
	ErrCodeInvalidData:          ErrInvalidData,
	ErrCodeNetworkError:         ErrNetworkError,
	ErrCodeServerError:          ErrServerError,
}

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
