package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/fund-backtester/internal/config"
	"github.com/yourusername/fund-backtester/internal/models"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

// fakeSource is an in-memory Source counting calls per query
type fakeSource struct {
	dates       []time.Time
	nav         []models.NAVPoint
	quotes      []models.NAVPoint
	instruments []models.Instrument
	calls       atomic.Int32
	err         error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	f.calls.Add(1)
	var out []time.Time
	for _, d := range f.dates {
		if inRange(d, begin, end) {
			out = append(out, d)
		}
	}
	return out, f.err
}

func (f *fakeSource) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error) {
	f.calls.Add(1)
	return f.nav, f.err
}

func (f *fakeSource) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	f.calls.Add(1)
	return f.quotes, f.err
}

func (f *fakeSource) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	f.calls.Add(1)
	return f.instruments, f.err
}

func TestDataSourceErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := error(NewDataSourceError("http", ErrCodeRateLimitExceeded, "slow down", cause))

	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "rate_limit_exceeded")
}

func TestParseNAVType(t *testing.T) {
	tests := []struct {
		in      string
		want    NAVType
		wantErr bool
	}{
		{"adj", NAVTypeAdjusted, false},
		{"acc", NAVTypeAccumulated, false},
		{"", NAVTypeAdjusted, false},
		{"unit", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNAVType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, CalendarFile, "trade_date,is_trading_day\n2024-01-01,0\n2024-01-02,1\n2024/01/03,1\n20240104,1\n")
	writeFile(t, dir, FundNAVFile, "基金代码,交易日期,复权净值,累计净值\n"+
		"000001,2024-01-02,1.00,1.50\n"+
		"000001,2024-01-03,1.01,\n"+
		"000002,2024-01-02,2.00,2.00\n"+
		"000001,2024-02-01,1.10,1.60\n")
	writeFile(t, dir, IndexQuoteFile, "index_code,trade_date,close\n809007.EI,2024-01-02,1000\n000300.SH,2024-01-02,3500\n")
	writeFile(t, dir, FundInfoFile, "code,name,type_name\n000001,Cash Plus,"+models.MoneyMarketTypeName+"\n")

	src, err := NewFileSource(dir)
	require.NoError(t, err)
	ctx := context.Background()

	dates, err := src.TradingDates(ctx, day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-01-02"), day("2024-01-03")}, dates)

	adj, err := src.FundNAV(ctx, []string{"000001"}, day("2024-01-01"), day("2024-01-31"), NAVTypeAdjusted)
	require.NoError(t, err)
	assert.Len(t, adj, 2)

	acc, err := src.FundNAV(ctx, []string{"000001"}, day("2024-01-01"), day("2024-01-31"), NAVTypeAccumulated)
	require.NoError(t, err)
	require.Len(t, acc, 1, "blank accumulated NAV is skipped")
	assert.Equal(t, 1.5, acc[0].Value)

	quotes, err := src.IndexQuotes(ctx, "809007.EI", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 1000.0, quotes[0].Value)

	insts, err := src.Instruments(ctx, []string{"000001", "000002"})
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.True(t, insts[0].IsMoneyMarket())
}

func TestFileSourceMissingFiles(t *testing.T) {
	src, err := NewFileSource(t.TempDir())
	require.NoError(t, err)

	_, err = src.TradingDates(context.Background(), day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, ErrNotFound)

	insts, err := src.Instruments(context.Background(), []string{"A"})
	assert.NoError(t, err, "fund master data is optional")
	assert.Empty(t, insts)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSQLiteSourceImportAndQuery(t *testing.T) {
	src, err := NewSQLiteSource(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	defer src.Close()
	ctx := context.Background()

	require.NoError(t, src.ImportCalendar(ctx, []time.Time{day("2024-01-02"), day("2024-01-03")}))
	require.NoError(t, src.ImportNAV(ctx, []models.NAVPoint{
		{Code: "A", Date: day("2024-01-02"), Value: 1.0},
		{Code: "A", Date: day("2024-01-03"), Value: 1.1},
		{Code: "B", Date: day("2024-01-02"), Value: 2.0},
	}, NAVTypeAdjusted))
	require.NoError(t, src.ImportNAV(ctx, []models.NAVPoint{
		{Code: "A", Date: day("2024-01-03"), Value: 1.2},
	}, NAVTypeAdjusted))
	require.NoError(t, src.ImportIndex(ctx, []models.NAVPoint{{Code: "IDX", Date: day("2024-01-02"), Value: 100}}))
	require.NoError(t, src.ImportInstruments(ctx, []models.Instrument{
		{Code: "M", Name: "Money", Category: models.FundCategoryMoneyMarket},
	}, nil))

	dates, err := src.TradingDates(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-01-02"), day("2024-01-03")}, dates)

	points, err := src.FundNAV(ctx, []string{"A"}, day("2024-01-01"), day("2024-01-31"), NAVTypeAdjusted)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 1.2, points[1].Value, "upsert replaces the value")

	acc, err := src.FundNAV(ctx, []string{"A", "B"}, day("2024-01-01"), day("2024-01-31"), NAVTypeAccumulated)
	require.NoError(t, err)
	assert.Empty(t, acc)

	quotes, err := src.IndexQuotes(ctx, "IDX", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, quotes, 1)

	insts, err := src.Instruments(ctx, []string{"M", "A"})
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.True(t, insts[0].IsMoneyMarket())
}

func newTestHTTPSource(t *testing.T, handler http.Handler) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 1
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = time.Millisecond
	cfg.RateLimit = 0
	return NewHTTPSource(NewRateLimitedHTTPClient(cfg, quietLogger()), srv.URL+"/", "secret", quietLogger())
}

func TestHTTPSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("begin"))
		json.NewEncoder(w).Encode(apiCalendar{Dates: []string{"2024-01-02", "2024-01-03"}})
	})
	mux.HandleFunc("/nav", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acc", r.URL.Query().Get("nav_type"))
		var out []apiPoint
		for _, code := range strings.Split(r.URL.Query().Get("codes"), ",") {
			out = append(out, apiPoint{Code: code, Date: "2024-01-02", Value: 1.5})
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/index/809007.EI", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiPoint{{Date: "2024-01-02", Value: 1000}})
	})
	mux.HandleFunc("/funds", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiFund{{Code: "M", Name: "Money", TypeName: models.MoneyMarketTypeName}})
	})
	src := newTestHTTPSource(t, mux)
	ctx := context.Background()

	dates, err := src.TradingDates(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-01-02"), day("2024-01-03")}, dates)

	codes := make([]string, httpCodeBatch+1)
	for i := range codes {
		codes[i] = string(rune('A'+i%26)) + strings.Repeat("x", i/26)
	}
	points, err := src.FundNAV(ctx, codes, day("2024-01-01"), day("2024-01-31"), NAVTypeAccumulated)
	require.NoError(t, err)
	assert.Len(t, points, len(codes), "codes are split across requests")

	quotes, err := src.IndexQuotes(ctx, "809007.EI", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "809007.EI", quotes[0].Code)

	insts, err := src.Instruments(ctx, []string{"M"})
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.True(t, insts[0].IsMoneyMarket())
}

func TestHTTPSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthenticationFailed},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"bad request", http.StatusBadRequest, ErrServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestHTTPSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			_, err := src.TradingDates(context.Background(), day("2024-01-01"), day("2024-01-31"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	src := newTestHTTPSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(apiCalendar{Dates: []string{"2024-01-02"}})
	}))

	dates, err := src.TradingDates(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, dates, 1)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCircuitBreakerOpensAfterNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 0
	cfg.RateLimit = 0
	cfg.CircuitBreakerMax = 2
	cfg.CircuitCooldown = time.Hour
	client := NewRateLimitedHTTPClient(cfg, quietLogger())

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), url)
		require.Error(t, err)
	}
	assert.True(t, client.IsOpen())

	_, err := client.Get(context.Background(), url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestCachedSource(t *testing.T) {
	inner := &fakeSource{
		dates: []time.Time{day("2024-01-02")},
		nav:   []models.NAVPoint{{Code: "A", Date: day("2024-01-02"), Value: 1}},
	}
	src := NewCachedSource(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := src.TradingDates(ctx, day("2024-01-01"), day("2024-01-31"))
		require.NoError(t, err)
	}
	a, err := src.FundNAV(ctx, []string{"B", "A"}, day("2024-01-01"), day("2024-01-31"), NAVTypeAdjusted)
	require.NoError(t, err)
	a[0].Value = 99
	b, err := src.FundNAV(ctx, []string{"A", "B"}, day("2024-01-01"), day("2024-01-31"), NAVTypeAdjusted)
	require.NoError(t, err)

	assert.Equal(t, 1.0, b[0].Value, "cached slices are copied")
	assert.Equal(t, int32(2), inner.calls.Load())
	hits, misses := src.Stats()
	assert.Equal(t, uint64(3), hits)
	assert.Equal(t, uint64(2), misses)

	src.Flush()
	_, err = src.TradingDates(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	inner := &fakeSource{err: errors.New("down")}
	src := NewCachedSource(inner, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := src.Instruments(context.Background(), []string{"A"})
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestLoaderBuildsMarket(t *testing.T) {
	inner := &fakeSource{
		dates: []time.Time{day("2024-01-02"), day("2024-01-03")},
		nav: []models.NAVPoint{
			{Code: "A", Date: day("2024-01-02"), Value: 1.0},
			{Code: "A", Date: day("2024-01-02"), Value: 1.05},
		},
		quotes: []models.NAVPoint{
			{Code: "IDX", Date: day("2024-01-02"), Value: 200},
			{Code: "IDX", Date: day("2024-01-03"), Value: 210},
		},
		instruments: []models.Instrument{{Code: "M", Name: "Money", Category: models.FundCategoryMoneyMarket}},
	}
	loader := NewLoader(inner, quietLogger())

	market, err := loader.Load(context.Background(), LoadRequest{
		Codes:     []string{"A", "M", "A"},
		Benchmark: "IDX",
		Begin:     day("2024-01-01"),
		End:       day("2024-01-31"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "M"}, market.Codes())
	m, ok := market.Instrument("M")
	require.True(t, ok)
	assert.True(t, m.IsMoneyMarket())
	a, ok := market.Instrument("A")
	require.True(t, ok)
	assert.False(t, a.IsMoneyMarket())

	v, ok := market.Funds.At("A", day("2024-01-02"))
	require.True(t, ok)
	assert.Equal(t, 1.05, v, "duplicate rows keep the last value")

	bench, _, ok := market.Benchmark.AsOf(day("2024-01-03"))
	require.True(t, ok)
	assert.InDelta(t, 1.05, bench, 1e-12)
	assert.Equal(t, 2, market.Calendar.Len())
}

func TestLoaderErrors(t *testing.T) {
	loader := NewLoader(&fakeSource{}, quietLogger())
	_, err := loader.Load(context.Background(), LoadRequest{Begin: day("2024-01-01"), End: day("2024-01-31")})
	assert.Error(t, err)

	_, err = loader.Load(context.Background(), LoadRequest{Codes: []string{"A"}, Begin: day("2024-01-01"), End: day("2024-01-31")})
	assert.ErrorIs(t, err, models.ErrDataUnavailable, "empty calendar")

	failing := NewLoader(&fakeSource{dates: []time.Time{day("2024-01-02")}, err: errors.New("down")}, quietLogger())
	_, err = failing.Load(context.Background(), LoadRequest{Codes: []string{"A"}, Begin: day("2024-01-01"), End: day("2024-01-31")})
	assert.Error(t, err)
}

func TestParseOrders(t *testing.T) {
	csv := "基金代码,交易日期,确认日期,交易类型,金额,份额\n" +
		"000001,2024-01-02,2024-01-03,申购,10000,\n" +
		"000001,2024/01/05,2024/01/08,赎回,,500.5\n"
	orders, err := ParseOrders(strings.NewReader(csv), 0, 0.15)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, models.TradeTypeSubscribe, orders[0].Type)
	assert.Equal(t, 10000.0, orders[0].Amount)
	assert.True(t, math.IsNaN(orders[0].Units))
	assert.Equal(t, 0.15, orders[0].PercentageFee)

	assert.Equal(t, models.TradeTypeRedeem, orders[1].Type)
	assert.True(t, math.IsNaN(orders[1].Amount))
	assert.Equal(t, 500.5, orders[1].Units)
	assert.Equal(t, day("2024-01-08"), orders[1].ConfirmDate)
	assert.NotEqual(t, orders[0].ID, orders[1].ID)
}

func TestParseOrdersFeeColumnsOverride(t *testing.T) {
	csv := "code,trade_date,confirm_date,type,amount,units,flat_fee,percentage_fee\n" +
		"A,2024-01-02,2024-01-03,subscribe,1000,,5,\n"
	orders, err := ParseOrders(strings.NewReader(csv), 1, 0.5)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 5.0, orders[0].FlatFee)
	assert.Equal(t, 0.5, orders[0].PercentageFee)
}

func TestParseOrdersKeepsConfirmDateBeforeTradeDate(t *testing.T) {
	csv := "code,trade_date,confirm_date,type,amount\nA,2024-01-05,2024-01-03,subscribe,1000\n"
	orders, err := ParseOrders(strings.NewReader(csv), 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, day("2024-01-05"), orders[0].TradeDate)
	assert.Equal(t, day("2024-01-03"), orders[0].ConfirmDate)
	assert.Equal(t, 1000.0, orders[0].Amount)
}

func TestParseOrdersRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want error
	}{
		{"unknown type", "code,trade_date,confirm_date,type,amount\nA,2024-01-02,2024-01-03,transfer,1\n", models.ErrInvalidOrderType},
		{"missing column", "code,trade_date,type\nA,2024-01-02,buy\n", ErrInvalidData},
		{"bad amount", "code,trade_date,confirm_date,type,amount\nA,2024-01-02,2024-01-03,buy,lots\n", ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrders(strings.NewReader(tt.csv), 0, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseWeights(t *testing.T) {
	t.Run("long csv", func(t *testing.T) {
		targets, err := ParseWeightsCSV(strings.NewReader("基金代码,交易日期,持仓权重\nA,2024-01-02,0.6\nB,2024-01-02,0.4\n"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []models.WeightTarget{
			{Code: "A", Date: day("2024-01-02"), Weight: 0.6},
			{Code: "B", Date: day("2024-01-02"), Weight: 0.4},
		}, targets)
	})

	t.Run("wide csv", func(t *testing.T) {
		targets, err := ParseWeightsCSV(strings.NewReader("date,A,B\n2024-01-02,0.5,0.5\n2024-02-01,1,\n"))
		require.NoError(t, err)
		require.Len(t, targets, 4)
		assert.Equal(t, models.WeightTarget{Code: "B", Date: day("2024-02-01"), Weight: 0}, targets[3])
	})

	t.Run("yaml", func(t *testing.T) {
		doc := "rebalances:\n  - date: 2024-01-02\n    weights:\n      \"000001\": 0.5\n      \"110011\": 0.5\n"
		targets, err := ParseWeightsYAML(strings.NewReader(doc))
		require.NoError(t, err)
		assert.ElementsMatch(t, []models.WeightTarget{
			{Code: "000001", Date: day("2024-01-02"), Weight: 0.5},
			{Code: "110011", Date: day("2024-01-02"), Weight: 0.5},
		}, targets)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "weights.csv", "date,A\n2024-01-02,1\n")
		schedule, err := LoadWeights(filepath.Join(dir, "weights.csv"))
		require.NoError(t, err)
		assert.Equal(t, day("2024-01-02"), schedule.First())

		_, err = LoadWeights(filepath.Join(dir, "weights.txt"))
		assert.Error(t, err)
	})
}

func TestFactory(t *testing.T) {
	f := NewFactory(nil, quietLogger())

	src, err := f.NewSource(config.DataSourceConfig{Type: "file", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = f.NewSource(config.DataSourceConfig{Type: "http", BaseURL: "http://localhost:1", CacheTTLSeconds: 60})
	require.NoError(t, err)
	assert.IsType(t, &CachedSource{}, src)
	assert.Equal(t, "http", src.Name())

	_, err = f.NewSource(config.DataSourceConfig{Type: "postgres"})
	assert.Error(t, err, "postgres needs a database")

	_, err = f.NewSource(config.DataSourceConfig{Type: "ftp"})
	assert.Error(t, err)
}
