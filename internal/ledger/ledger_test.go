package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/fund-backtester/internal/models"
)

var (
	d1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

func flatPrice(v float64) PriceFunc {
	return func(code string, date time.Time) (float64, bool) { return v, true }
}

func newTestLedger() *Ledger {
	return New([]time.Time{d1, d2}, []string{"A", "B"}, 1e-4)
}

func TestApplyDeltaAndSnapshot(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.ApplyDelta("A", 100, 1000))
	require.NoError(t, l.Snapshot(d1, flatPrice(2)))

	assert.Equal(t, 100.0, l.UnitsOn("A", d1))
	assert.Equal(t, 1000.0, l.CostOn("A", d1))
	assert.Equal(t, 200.0, l.Values.At(d1, "A"))
	assert.Equal(t, 0.0, l.UnitsOn("A", d2), "later rows untouched until snapshotted")
}

func TestSnapshotIsIdempotent(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.ApplyDelta("B", 50, 500))

	require.NoError(t, l.Snapshot(d2, flatPrice(1.1)))
	first := append([]float64(nil), l.Units.Values[1]...)
	firstValues := append([]float64(nil), l.Values.Values[1]...)

	require.NoError(t, l.Snapshot(d2, flatPrice(1.1)))
	assert.Equal(t, first, l.Units.Values[1])
	assert.Equal(t, firstValues, l.Values.Values[1])
}

func TestApplyDeltaInsufficientHoldings(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.ApplyDelta("A", 10, 10))

	err := l.ApplyDelta("A", -10.5, -10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientHoldings))
	assert.Equal(t, 10.0, l.CurrentUnits("A"), "failed delta must not mutate state")

	require.NoError(t, l.ApplyDelta("A", -10.00005, -10), "within tolerance")
}

func TestApplyDeltaUnknownFund(t *testing.T) {
	l := newTestLedger()
	assert.Error(t, l.ApplyDelta("Z", 1, 1))
	assert.Error(t, l.SetUnits("Z", 1))
}

func TestClampDust(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.ApplyDelta("A", 0.00005, 0))
	require.NoError(t, l.ApplyDelta("B", 0.5, 0))

	l.ClampDust(1e-4)
	assert.Equal(t, 0.0, l.CurrentUnits("A"))
	assert.Equal(t, 0.5, l.CurrentUnits("B"))
}

func TestMarketValueSkipsUnpriced(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.ApplyDelta("A", 10, 0))
	require.NoError(t, l.ApplyDelta("B", 10, 0))

	price := func(code string, date time.Time) (float64, bool) {
		if code == "A" {
			return 1.5, true
		}
		return 0, false
	}
	assert.Equal(t, 15.0, l.MarketValue(d1, price))
}

func TestMatrixAccessors(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.ApplyDelta("A", 1, 0))
	require.NoError(t, l.ApplyDelta("B", 3, 0))
	require.NoError(t, l.Snapshot(d1, flatPrice(1)))

	assert.Equal(t, 4.0, l.Units.RowSum(d1))
	assert.Equal(t, map[string]float64{"A": 1, "B": 3}, l.Units.Row(d1))
	assert.Equal(t, []float64{3, 0}, l.Units.Column("B"))
	assert.Nil(t, l.Units.Column("Z"))
}
