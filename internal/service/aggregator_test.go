package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasury-tracker/internal/types"
)

func window(points ...types.BalanceSnapshot) types.BalanceWindow {
	return types.BalanceWindow{History: points, Status: types.StatusSuccess}
}

func point(date, balance string) types.BalanceSnapshot {
	return types.BalanceSnapshot{Date: date, Balance: balance}
}

func seriesMap(s types.DaySeries) map[string]string {
	out := make(map[string]string, len(s))
	for _, d := range s {
		out[d.Date] = d.Balance
	}
	return out
}

func TestAggregateBalances_SumsBothChains(t *testing.T) {
	today := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	series := AggregateBalances(
		[]types.BalanceWindow{window(point("2024-03-01", "100"))},
		[]types.BalanceWindow{window(point("2024-03-01", "50"))},
		today,
	)

	got := seriesMap(series)
	assert.Equal(t, "150.00", got["2024-03-01"])
	assert.Equal(t, "0.00", got["2024-03-02"])
	assert.Equal(t, "0.00", got["2024-01-01"])
	assert.Equal(t, "0.00", got["2024-03-10"])
}

func TestAggregateBalances_FixedRange(t *testing.T) {
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	series := AggregateBalances(nil, nil, today)

	// 31 (Jan) + 29 (Feb, leap year) + 10 (Mar)
	require.Len(t, series, 70)
	assert.Equal(t, "2024-01-01", series[0].Date)
	assert.Equal(t, "2024-03-10", series[len(series)-1].Date)
	for _, d := range series {
		assert.Equal(t, "0.00", d.Balance)
	}
}

func TestAggregateBalances_DropsInactiveWindows(t *testing.T) {
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	native := []types.BalanceWindow{
		// latest point is zero: whole window ignored, including the older non-zero point
		window(point("2024-02-01", "500"), point("2024-02-02", "0")),
		// no history at all
		{History: nil, Status: types.StatusSuccess},
		window(point("2024-02-05", "10")),
	}

	got := seriesMap(AggregateBalances(native, nil, today))
	assert.Equal(t, "0.00", got["2024-02-01"])
	assert.Equal(t, "0.00", got["2024-02-02"])
	assert.Equal(t, "10.00", got["2024-02-05"])
}

func TestAggregateBalances_UsesLatestBalanceForEveryPoint(t *testing.T) {
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	// points deliberately out of order; latest (03-03) balance is 30
	native := []types.BalanceWindow{
		window(point("2024-03-01", "10"), point("2024-03-03", "30"), point("2024-03-02", "20")),
	}

	got := seriesMap(AggregateBalances(native, nil, today))
	assert.Equal(t, "30.00", got["2024-03-01"])
	assert.Equal(t, "30.00", got["2024-03-02"])
	assert.Equal(t, "30.00", got["2024-03-03"])
}

func TestAggregateBalances_IgnoresDaysOutsideRange(t *testing.T) {
	today := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)

	native := []types.BalanceWindow{
		window(point("2023-12-31", "7"), point("2024-01-05", "7")),
	}

	series := AggregateBalances(native, nil, today)
	require.Len(t, series, 3)
	for _, d := range series {
		assert.Equal(t, "0.00", d.Balance)
	}
}

func TestAggregateBalances_DecimalPrecision(t *testing.T) {
	today := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

	got := seriesMap(AggregateBalances(
		[]types.BalanceWindow{window(point("2024-01-02", "0.1"))},
		[]types.BalanceWindow{window(point("2024-01-02T08:00:00Z", "0.2"))},
		today,
	))
	assert.Equal(t, "0.30", got["2024-01-02"])
}

func TestLatestBalance(t *testing.T) {
	assert.True(t, latestBalance(nil).IsZero())
	assert.Equal(t, "5", latestBalance([]types.BalanceSnapshot{
		point("bogus", "99"),
		point("2024-01-01", "5"),
	}).String())
	assert.True(t, parseBalance("not-a-number").IsZero())
}
