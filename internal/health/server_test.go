package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/fund-backtester/internal/models"
)

type stubRuns struct {
	runs  []*models.BacktestRun
	err   error
	limit int
}

func (s *stubRuns) GetLatest(_ context.Context, limit int) ([]*models.BacktestRun, error) {
	s.limit = limit
	return s.runs, s.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(Config{ServiceName: "fund-backtester", Version: "1.2.3", Logger: quietLogger()})

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestReadyRunsChecks(t *testing.T) {
	s := NewServer(Config{ServiceName: "fund-backtester", Logger: quietLogger()})
	s.AddCheck("database", func(context.Context) error { return nil })

	rec := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not marked ready yet")

	s.SetReady(true)
	rec = get(t, s.Handler(), "/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	s.AddCheck("data_source", func(context.Context) error { return errors.New("circuit open") })
	rec = get(t, s.Handler(), "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "error: circuit open", resp.Checks["data_source"])
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fund_backtest_runs_total 1\n")
	})
	s := NewServer(Config{MetricsPath: "/prom", Metrics: metrics, Logger: quietLogger()})

	rec := get(t, s.Handler(), "/prom")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fund_backtest_runs_total")
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/runs").Code)
}

func TestRuns(t *testing.T) {
	runs := &stubRuns{runs: []*models.BacktestRun{{ID: uuid.New(), Mode: "ledger"}}}
	s := NewServer(Config{Runs: runs, Logger: quietLogger()})

	rec := get(t, s.Handler(), "/runs?limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, runs.limit)

	var got []models.BacktestRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "ledger", got[0].Mode)

	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/runs?limit=x").Code)

	runs.err = errors.New("down")
	assert.Equal(t, http.StatusInternalServerError, get(t, s.Handler(), "/runs").Code)
}
