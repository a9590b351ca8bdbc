package orderbook

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/fund-backtester/internal/ledger"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
)

var (
	d1 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	d2 = d1.AddDate(0, 0, 1)
	d3 = d1.AddDate(0, 0, 2)
)

func setup(t *testing.T, held float64) (*nav.Book, *ledger.Ledger) {
	t.Helper()
	prices := nav.BookFromPoints([]models.NAVPoint{
		{Code: "A", Date: d1, Value: 1.0},
		{Code: "B", Date: d1, Value: 2.0},
	})
	holdings := ledger.New([]time.Time{d1, d2, d3}, []string{"A", "B"}, 1e-4)
	if held > 0 {
		require.NoError(t, holdings.ApplyDelta("A", held, held))
	}
	return prices, holdings
}

func TestReconcileRegimes(t *testing.T) {
	tol := DefaultTolerance()

	tests := []struct {
		name      string
		requested float64
		adj       Adjustment
		exceeded  bool
	}{
		{"below holdings", 400, AdjustmentNone, false},
		{"rounding noise", 1005, AdjustmentNoise, false},
		{"small shortfall", 995, AdjustmentNoise, false},
		{"warn band", 1050, AdjustmentWarn, false},
		{"hard limit", 5000, AdjustmentNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, exceeded := tol.Reconcile(tt.requested, 1000)
			assert.Equal(t, tt.adj, adj)
			assert.Equal(t, tt.exceeded, exceeded)
		})
	}
}

func TestToleranceValidate(t *testing.T) {
	assert.NoError(t, DefaultTolerance().Validate())
	assert.Error(t, Tolerance{Noise: -1, Warn: 10}.Validate())
	assert.Error(t, Tolerance{Noise: 100, Warn: 10}.Validate())
}

func TestProcessSubscription(t *testing.T) {
	prices, holdings := setup(t, 0)
	book := NewBook(DefaultTolerance(), nil)

	book.Add(models.NewSubscription("B", 1000, d1, d2).WithFees(10, 1))
	res, err := book.Process(d1, prices, holdings, 2.0)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)

	exec := res.Accepted[0]
	assert.InDelta(t, (1000.0-10)/2.0/1.01, exec.Units, 1e-9)
	assert.InDelta(t, 500.0, exec.PortfolioUnits, 1e-9)
	assert.Equal(t, 0, book.Pending())
	assert.Equal(t, 1, book.Queued())

	assert.Empty(t, book.Due(d1))
	due := book.Due(d2)
	require.Len(t, due, 1)
	assert.Equal(t, models.OrderStatusApplied, due[0].Status)
	assert.Equal(t, 0, book.Queued())
}

func TestProcessRedemptionProceeds(t *testing.T) {
	prices, holdings := setup(t, 1000)
	book := NewBook(DefaultTolerance(), nil)

	book.Add(models.NewRedemption("A", 400, d1, d3).WithFees(1, 0.5))
	res, err := book.Process(d1, prices, holdings, 1.0)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)

	exec := res.Accepted[0]
	assert.InDelta(t, 400*1.0*0.995-1, exec.Amount, 1e-9)
	assert.InDelta(t, 400.0, exec.PortfolioUnits, 1e-9)
	assert.Equal(t, 1000.0, holdings.CurrentUnits("A"))
}

func TestProcessRedemptionFromAmount(t *testing.T) {
	prices, holdings := setup(t, 1000)
	book := NewBook(DefaultTolerance(), nil)

	order := models.NewRedemption("A", math.NaN(), d1, d2)
	order.Amount = 99
	book.Add(order.WithFees(1, 1))

	res, err := book.Process(d1, prices, holdings, 1.0)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.InDelta(t, 100.0/0.99, res.Accepted[0].Units, 1e-9)
	assert.Equal(t, 99.0, res.Accepted[0].Amount)
}

func TestProcessRedemptionTolerance(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		held      float64
		accepted  bool
		adjusted  Adjustment
	}{
		{"noise is absorbed", 1005, 1005, true, AdjustmentNoise},
		{"warn band clamps holdings", 1050, 1050, true, AdjustmentWarn},
		{"beyond hard limit fails", 5000, 1000, false, AdjustmentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices, holdings := setup(t, 1000)
			book := NewBook(DefaultTolerance(), nil)
			book.Add(models.NewRedemption("A", tt.requested, d1, d2))

			res, err := book.Process(d1, prices, holdings, 1.0)
			require.NoError(t, err)
			assert.InDelta(t, tt.held, holdings.CurrentUnits("A"), 1e-9)
			if tt.accepted {
				require.Len(t, res.Accepted, 1)
				assert.Equal(t, 1, res.Adjusted[tt.adjusted])
				return
			}
			assert.Empty(t, res.Accepted)
			require.Len(t, res.Breaches, 1)
			assert.True(t, errors.Is(res.Breaches[0], models.ErrRedemptionExceedsHoldings))
		})
	}
}

func TestProcessRejectsMissingNAV(t *testing.T) {
	prices, holdings := setup(t, 0)
	book := NewBook(DefaultTolerance(), nil)

	// subscriptions need an exact NAV on the trade date
	book.Add(models.NewSubscription("A", 1000, d2, d3))
	res, err := book.Process(d2, prices, holdings, 1.0)
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "no NAV on trade date", res.Rejected[0].Reason)
	assert.Equal(t, 0, book.Pending(), "rejected orders are not retried")
}

func TestProcessRedemptionUsesAsOfNAV(t *testing.T) {
	prices, holdings := setup(t, 1000)
	book := NewBook(DefaultTolerance(), nil)

	book.Add(models.NewRedemption("A", 100, d2, d3))
	res, err := book.Process(d2, prices, holdings, 1.0)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, 1.0, res.Accepted[0].NAV)

	v, ok := prices.At("A", d2)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestProcessClampsConfirmDate(t *testing.T) {
	prices, holdings := setup(t, 0)
	book := NewBook(DefaultTolerance(), nil)

	book.Add(models.NewSubscription("A", 100, d1, d1.AddDate(0, 0, -3)))
	res, err := book.Process(d1, prices, holdings, 1.0)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, d1, res.Accepted[0].ConfirmDate)
	assert.Len(t, book.Due(d1), 1)
}

func TestProcessInvalidTypeAborts(t *testing.T) {
	prices, holdings := setup(t, 0)
	book := NewBook(DefaultTolerance(), nil)

	bad := models.NewSubscription("A", 100, d1, d2)
	bad.Type = models.TradeType(9)
	book.Add(bad, models.NewSubscription("B", 100, d1, d2))

	_, err := book.Process(d1, prices, holdings, 1.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidOrderType))
	assert.Equal(t, 1, book.Pending())
}

func TestConfirmDatesSorted(t *testing.T) {
	prices, holdings := setup(t, 0)
	book := NewBook(DefaultTolerance(), nil)
	book.Add(
		models.NewSubscription("A", 100, d1, d3),
		models.NewSubscription("B", 100, d1, d2),
	)
	_, err := book.Process(d1, prices, holdings, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d2, d3}, book.ConfirmDates())
}
