package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// File names read by FileSource
const (
	CalendarFile    = "calendar.csv"
	FundNAVFile     = "fund_nav.csv"
	IndexQuoteFile  = "index_quote.csv"
	FundInfoFile    = "fund_info.csv"
	fileSourceLabel = "file"
)

// FileSource reads market data from CSV files in one directory.
// fund_info.csv is optional; the other files are required when queried.
type FileSource struct {
	dir string
}

// NewFileSource creates a source over dir
func NewFileSource(dir string) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &FileSource{dir: dir}, nil
}

// Name returns the name of the data source
func (s *FileSource) Name() string {
	return fileSourceLabel
}

func (s *FileSource) open(name string) (*table, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewDataSourceError(fileSourceLabel, ErrCodeNotFound, name+" not found", err)
		}
		return nil, NewDataSourceError(fileSourceLabel, ErrCodeUnknown, "failed to open "+name, err)
	}
	defer f.Close()
	return readTable(name, f)
}

// TradingDates returns the open days in [begin, end]
func (s *FileSource) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	t, err := s.open(CalendarFile)
	if err != nil {
		return nil, err
	}
	if err := t.require("trade_date"); err != nil {
		return nil, err
	}

	var dates []time.Time
	for i, row := range t.rows {
		if t.has("is_trading_day") && !truthy(t.cell(row, "is_trading_day")) {
			continue
		}
		d, err := t.date(row, i+2, "trade_date")
		if err != nil {
			return nil, err
		}
		if inRange(d, begin, end) {
			dates = append(dates, d)
		}
	}
	return dates, ctx.Err()
}

// FundNAV returns NAV points for codes in [begin, end]
func (s *FileSource) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error) {
	t, err := s.open(FundNAVFile)
	if err != nil {
		return nil, err
	}
	column := "adj_nav"
	if navType == NAVTypeAccumulated {
		column = "acc_nav"
	}
	if err := t.require("code", "trade_date", column); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}

	var points []models.NAVPoint
	for i, row := range t.rows {
		code := t.cell(row, "code")
		if !wanted[code] {
			continue
		}
		d, err := t.date(row, i+2, "trade_date")
		if err != nil {
			return nil, err
		}
		if !inRange(d, begin, end) {
			continue
		}
		v, err := t.float(row, i+2, column)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) {
			continue
		}
		points = append(points, models.NAVPoint{Code: code, Date: d, Value: v})
	}
	return points, ctx.Err()
}

// IndexQuotes returns the closing prices of an index in [begin, end]
func (s *FileSource) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	t, err := s.open(IndexQuoteFile)
	if err != nil {
		return nil, err
	}
	if err := t.require("index_code", "trade_date", "close"); err != nil {
		return nil, err
	}

	var points []models.NAVPoint
	for i, row := range t.rows {
		if t.cell(row, "index_code") != indexCode {
			continue
		}
		d, err := t.date(row, i+2, "trade_date")
		if err != nil {
			return nil, err
		}
		if !inRange(d, begin, end) {
			continue
		}
		v, err := t.float(row, i+2, "close")
		if err != nil {
			return nil, err
		}
		if !math.IsNaN(v) {
			points = append(points, models.NAVPoint{Code: indexCode, Date: d, Value: v})
		}
	}
	return points, ctx.Err()
}

// Instruments returns the fund master data known for codes
func (s *FileSource) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	t, err := s.open(FundInfoFile)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := t.require("code"); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}
	var out []models.Instrument
	for _, row := range t.rows {
		code := t.cell(row, "code")
		if !wanted[code] {
			continue
		}
		out = append(out, models.Instrument{
			Code:     code,
			Name:     t.cell(row, "name"),
			Category: models.CategoryFromTypeName(t.cell(row, "type_name")),
		})
	}
	return out, ctx.Err()
}

func inRange(d, begin, end time.Time) bool {
	return (begin.IsZero() || !d.Before(begin)) && (end.IsZero() || !d.After(end))
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "t", "y", "yes":
		return true
	}
	return false
}
