package datasource

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/rebalance"
	"gopkg.in/yaml.v3"
)

// weightsDocument is the YAML layout of a weight schedule:
//
//	rebalances:
//	  - date: 2024-01-02
//	    weights:
//	      "000001": 0.5
//	      "110011": 0.5
type weightsDocument struct {
	Rebalances []struct {
		Date    string             `yaml:"date"`
		Weights map[string]float64 `yaml:"weights"`
	} `yaml:"rebalances"`
}

// ParseWeightsYAML reads a YAML weight schedule
func ParseWeightsYAML(r io.Reader) ([]models.WeightTarget, error) {
	var doc weightsDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, NewDataSourceError("weights", ErrCodeInvalidData, "failed to parse yaml", err)
	}

	var targets []models.WeightTarget
	for i, rb := range doc.Rebalances {
		d, err := parseDate(rb.Date)
		if err != nil {
			return nil, NewDataSourceError("weights", ErrCodeInvalidData, fmt.Sprintf("rebalance %d: bad date %q", i+1, rb.Date), err)
		}
		for code, w := range rb.Weights {
			targets = append(targets, models.WeightTarget{Code: code, Date: d, Weight: w})
		}
	}
	return targets, nil
}

// ParseWeightsCSV reads a weight schedule CSV in either long form
// (code, trade_date, weight per row) or wide form (trade_date followed by
// one column per fund code). Blank wide cells mean weight zero.
func ParseWeightsCSV(r io.Reader) ([]models.WeightTarget, error) {
	t, err := readTable("weights", r)
	if err != nil {
		return nil, err
	}
	if err := t.require("trade_date"); err != nil {
		return nil, err
	}

	var targets []models.WeightTarget
	if t.has("code") && t.has("weight") {
		for i, row := range t.rows {
			d, err := t.date(row, i+2, "trade_date")
			if err != nil {
				return nil, err
			}
			w, err := t.float(row, i+2, "weight")
			if err != nil {
				return nil, err
			}
			if math.IsNaN(w) {
				w = 0
			}
			targets = append(targets, models.WeightTarget{Code: t.cell(row, "code"), Date: d, Weight: w})
		}
		return targets, nil
	}

	dateCol := t.columns["trade_date"]
	for i, row := range t.rows {
		d, err := t.date(row, i+2, "trade_date")
		if err != nil {
			return nil, err
		}
		for col, code := range t.header {
			if col == dateCol || code == "" || col >= len(row) {
				continue
			}
			w, err := parseWeight(row[col])
			if err != nil {
				return nil, NewDataSourceError("weights", ErrCodeInvalidData, fmt.Sprintf("line %d: bad weight for %s", i+2, code), err)
			}
			targets = append(targets, models.WeightTarget{Code: code, Date: d, Weight: w})
		}
	}
	return targets, nil
}

// LoadWeights reads a weight schedule from a .yaml, .yml or .csv file
func LoadWeights(path string) (*rebalance.Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	var targets []models.WeightTarget
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		targets, err = ParseWeightsYAML(f)
	case ".csv":
		targets, err = ParseWeightsCSV(f)
	default:
		return nil, fmt.Errorf("unsupported weights file %s", path)
	}
	if err != nil {
		return nil, err
	}
	return rebalance.NewSchedule(targets)
}

func parseWeight(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
