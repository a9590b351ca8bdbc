package rebalance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
)

type fixedHoldings map[string]float64

func (h fixedHoldings) CurrentUnits(code string) float64 { return h[code] }

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testCalendar(t *testing.T, n int) *nav.Calendar {
	t.Helper()
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i)
	}
	cal, err := nav.NewCalendar(dates)
	require.NoError(t, err)
	return cal
}

func testPrices() *nav.Book {
	var points []models.NAVPoint
	for i := 0; i < 10; i++ {
		points = append(points,
			models.NAVPoint{Code: "A", Date: day(i), Value: 1.0},
			models.NAVPoint{Code: "B", Date: day(i), Value: 2.0},
		)
	}
	return nav.BookFromPoints(points)
}

func testSchedule(t *testing.T, rows ...models.WeightTarget) *Schedule {
	t.Helper()
	s, err := NewSchedule(rows)
	require.NoError(t, err)
	return s
}

func TestScheduleAccessors(t *testing.T) {
	s := testSchedule(t,
		models.WeightTarget{Code: "B", Date: day(5), Weight: 1},
		models.WeightTarget{Code: "A", Date: day(0), Weight: 0.5},
		models.WeightTarget{Code: "B", Date: day(0), Weight: 0.5},
		models.WeightTarget{Code: "B", Date: day(0), Weight: 0.4},
	)

	assert.Equal(t, []time.Time{day(0), day(5)}, s.Dates())
	assert.Equal(t, day(0), s.First())
	assert.Equal(t, day(5), s.Last())
	assert.True(t, s.Has(day(5)))
	assert.False(t, s.Has(day(3)))
	assert.Equal(t, map[string]float64{"A": 0.5, "B": 0.4}, s.Weights(day(0)))
	assert.Nil(t, s.Weights(day(3)))
	assert.Equal(t, []string{"A", "B"}, s.Codes())
}

func TestScheduleRejectsBadRows(t *testing.T) {
	_, err := NewSchedule(nil)
	assert.Error(t, err)

	_, err = NewSchedule([]models.WeightTarget{{Code: "A", Date: day(0), Weight: -0.1}})
	assert.Error(t, err)

	_, err = NewSchedule([]models.WeightTarget{{Date: day(0), Weight: 0.1}})
	assert.Error(t, err)
}

func TestParseTiming(t *testing.T) {
	for in, want := range map[string]Timing{
		"yesterday": NextDay,
		"next-day":  NextDay,
		"":          NextDay,
		"today":     SameDay,
		"Same-Day":  SameDay,
	} {
		got, err := ParseTiming(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTiming("tomorrow")
	assert.Error(t, err)
}

func TestInitialSubscriptionsMatchNotional(t *testing.T) {
	gen, err := NewGenerator(testCalendar(t, 10), testPrices(), []string{"A", "B"}, NextDay, Fees{}, nil)
	require.NoError(t, err)

	orders := gen.Initial(day(0), map[string]float64{"A": 0.5, "B": 0.5}, fixedHoldings{}, 1_000_000)
	require.Len(t, orders, 2)

	total := 0.0
	for _, o := range orders {
		assert.Equal(t, models.TradeTypeSubscribe, o.Type)
		assert.Equal(t, day(0), o.TradeDate)
		assert.Equal(t, day(1), o.ConfirmDate)
		total += o.Amount
	}
	assert.InDelta(t, 1_000_000, total, 1e-6)
}

func TestRebalanceNextDay(t *testing.T) {
	gen, err := NewGenerator(testCalendar(t, 10), testPrices(), []string{"A", "B"}, NextDay, Fees{Flat: 1, Percentage: 0.1}, nil)
	require.NoError(t, err)
	s := testSchedule(t,
		models.WeightTarget{Code: "A", Date: day(0), Weight: 0.5},
		models.WeightTarget{Code: "B", Date: day(0), Weight: 0.5},
		models.WeightTarget{Code: "A", Date: day(4), Weight: 0.2},
		models.WeightTarget{Code: "B", Date: day(4), Weight: 0.8},
	)
	// 500 units of A at 1.0 and 250 of B at 2.0
	held := fixedHoldings{"A": 500, "B": 250}

	assert.Empty(t, gen.Rebalance(day(2), s, held, 1000), "switch date is not scheduled")
	assert.Empty(t, gen.Rebalance(day(4), s, held, 1000), "last schedule date generates nothing")

	orders := gen.Rebalance(day(3), s, held, 1000)
	require.Len(t, orders, 2)

	redeem := orders[0]
	assert.Equal(t, models.TradeTypeRedeem, redeem.Type)
	assert.Equal(t, "A", redeem.Code)
	assert.InDelta(t, 300, redeem.Units, 1e-9)
	assert.Equal(t, day(3), redeem.TradeDate)
	assert.Equal(t, day(4), redeem.ConfirmDate)
	assert.Equal(t, 1.0, redeem.FlatFee)

	sub := orders[1]
	assert.Equal(t, models.TradeTypeSubscribe, sub.Type)
	assert.Equal(t, "B", sub.Code)
	assert.InDelta(t, 300, sub.Amount, 1e-9)
	assert.Equal(t, day(4), sub.TradeDate)
	assert.Equal(t, day(5), sub.ConfirmDate)
	assert.Equal(t, 0.1, sub.PercentageFee)
}

func TestRebalanceSameDay(t *testing.T) {
	gen, err := NewGenerator(testCalendar(t, 10), testPrices(), []string{"A", "B"}, SameDay, Fees{}, nil)
	require.NoError(t, err)
	s := testSchedule(t,
		models.WeightTarget{Code: "A", Date: day(0), Weight: 1},
		models.WeightTarget{Code: "B", Date: day(4), Weight: 1},
	)
	held := fixedHoldings{"A": 1000}

	assert.Empty(t, gen.Rebalance(day(3), s, held, 1000))

	orders := gen.Rebalance(day(4), s, held, 1000)
	require.Len(t, orders, 2)
	assert.Equal(t, "A", orders[0].Code)
	assert.InDelta(t, 1000, orders[0].Units, 1e-9, "missing weight counts as zero")
	assert.Equal(t, day(4), orders[0].ConfirmDate)
	assert.Equal(t, "B", orders[1].Code)
	assert.Equal(t, day(4), orders[1].TradeDate)
	assert.Equal(t, day(5), orders[1].ConfirmDate)
}

func TestRebalanceBeyondCalendarIsSkipped(t *testing.T) {
	gen, err := NewGenerator(testCalendar(t, 5), testPrices(), []string{"A"}, NextDay, Fees{}, nil)
	require.NoError(t, err)
	s := testSchedule(t,
		models.WeightTarget{Code: "A", Date: day(0), Weight: 1},
		models.WeightTarget{Code: "A", Date: day(4), Weight: 0.5},
		models.WeightTarget{Code: "A", Date: day(9), Weight: 0.5},
	)
	assert.Empty(t, gen.Rebalance(day(3), s, fixedHoldings{"A": 100}, 100))
}

func TestSubscriptionValuesUnpricedHoldingsAtPar(t *testing.T) {
	prices := nav.BookFromPoints([]models.NAVPoint{{Code: "A", Date: day(3), Value: 1.5}})
	gen, err := NewGenerator(testCalendar(t, 10), prices, []string{"A", "C"}, SameDay, Fees{}, nil)
	require.NoError(t, err)
	s := testSchedule(t,
		models.WeightTarget{Code: "A", Date: day(0), Weight: 0.5},
		models.WeightTarget{Code: "C", Date: day(1), Weight: 0.5},
	)

	orders := gen.Rebalance(day(1), s, fixedHoldings{"C": 100}, 1000)
	require.Len(t, orders, 1)
	assert.Equal(t, "C", orders[0].Code)
	assert.InDelta(t, 400, orders[0].Amount, 1e-9)
}
