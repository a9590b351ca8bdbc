package datasource

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/yourusername/fund-backtester/internal/models"
)

// columnAliases maps accepted header spellings onto canonical column names
var columnAliases = map[string]string{
	"code":           "code",
	"fund_code":      "code",
	"基金代码":           "code",
	"index_code":     "index_code",
	"指数代码":           "index_code",
	"date":           "trade_date",
	"trade_date":     "trade_date",
	"交易日期":           "trade_date",
	"日期":             "trade_date",
	"confirm_date":   "confirm_date",
	"确认日期":           "confirm_date",
	"type":           "type",
	"trade_type":     "type",
	"交易类型":           "type",
	"amount":         "amount",
	"金额":             "amount",
	"申购金额":           "amount",
	"units":          "units",
	"份额":             "units",
	"赎回份额":           "units",
	"weight":         "weight",
	"持仓权重":           "weight",
	"权重":             "weight",
	"adj_nav":        "adj_nav",
	"复权净值":           "adj_nav",
	"acc_nav":        "acc_nav",
	"累计净值":           "acc_nav",
	"close":          "close",
	"收盘价":            "close",
	"name":           "name",
	"基金名称":           "name",
	"type_name":      "type_name",
	"基金类型":           "type_name",
	"is_trading_day": "is_trading_day",
	"flat_fee":       "flat_fee",
	"percentage_fee": "percentage_fee",
}

// table is a parsed CSV file addressed by canonical column name
type table struct {
	name    string
	columns map[string]int
	header  []string
	rows    [][]string
}

func readTable(name string, r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, NewDataSourceError(name, ErrCodeInvalidData, "failed to read csv", err)
	}
	if len(records) == 0 {
		return nil, NewDataSourceError(name, ErrCodeInvalidData, "missing header row", nil)
	}

	t := &table{name: name, columns: make(map[string]int), header: records[0]}
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.header[i] = h
		if canonical, ok := columnAliases[strings.ToLower(h)]; ok {
			t.columns[canonical] = i
		}
	}
	t.rows = records[1:]
	return t, nil
}

func (t *table) has(column string) bool {
	_, ok := t.columns[column]
	return ok
}

func (t *table) require(columns ...string) error {
	for _, c := range columns {
		if !t.has(c) {
			return NewDataSourceError(t.name, ErrCodeInvalidData, fmt.Sprintf("missing column %q", c), nil)
		}
	}
	return nil
}

func (t *table) cell(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) date(row []string, line int, column string) (time.Time, error) {
	raw := t.cell(row, column)
	d, err := parseDate(raw)
	if err != nil {
		return time.Time{}, NewDataSourceError(t.name, ErrCodeInvalidData, fmt.Sprintf("line %d: bad %s %q", line, column, raw), err)
	}
	return d, nil
}

// float parses a numeric cell; blank cells are NaN
func (t *table) float(row []string, line int, column string) (float64, error) {
	raw := strings.ReplaceAll(t.cell(row, column), ",", "")
	if raw == "" || strings.EqualFold(raw, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, NewDataSourceError(t.name, ErrCodeInvalidData, fmt.Sprintf("line %d: bad %s %q", line, column, raw), err)
	}
	return v, nil
}

// parseDate accepts 2024-01-02, 2024/01/02, 20240102 and the other layouts
// dateparse recognises, pinned to UTC midnight
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(raw) == 8 {
		if d, err := time.Parse("20060102", raw); err == nil {
			return d, nil
		}
	}
	d, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return models.TruncateDate(d), nil
}
