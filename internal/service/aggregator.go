package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/treasury-tracker/internal/types"
)

// HistoryEpoch is the first day of every aggregated treasury series
var HistoryEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// parseBalance treats anything unparseable as zero
func parseBalance(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// latestBalance returns the balance of the most recent point in history.
// Points with unparseable dates sort last.
func latestBalance(history []types.BalanceSnapshot) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}

	sorted := make([]types.BalanceSnapshot, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, okI := types.ParseDay(sorted[i].Date)
		dj, okJ := types.ParseDay(sorted[j].Date)
		if okI != okJ {
			return okI
		}
		return di.After(dj)
	})
	return parseBalance(sorted[0].Balance)
}

// activeWindows drops windows with no history or a non-positive latest balance
func activeWindows(windows []types.BalanceWindow) []types.BalanceWindow {
	out := make([]types.BalanceWindow, 0, len(windows))
	for _, w := range windows {
		if len(w.History) == 0 {
			continue
		}
		if latestBalance(w.History).IsPositive() {
			out = append(out, w)
		}
	}
	return out
}

// AggregateBalances merges the relay chain and asset hub histories into one
// daily series covering HistoryEpoch through today.
//
// Every day a window has a point for is credited with that window's latest
// balance, and contributions from all active windows of both chains are summed.
// Days nobody touched are "0.00".
func AggregateBalances(native, assetHub []types.BalanceWindow, today time.Time) types.DaySeries {
	combined := make(map[string]decimal.Decimal)

	for _, windows := range [][]types.BalanceWindow{native, assetHub} {
		for _, w := range activeWindows(windows) {
			balance := latestBalance(w.History)
			for _, point := range w.History {
				day, ok := types.ParseDay(point.Date)
				if !ok {
					continue
				}
				key := day.Format(types.DateLayout)
				combined[key] = combined[key].Add(balance)
			}
		}
	}

	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if today.Before(HistoryEpoch) {
		return types.DaySeries{}
	}

	series := make(types.DaySeries, 0, int(today.Sub(HistoryEpoch).Hours()/24)+1)
	for day := HistoryEpoch; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(types.DateLayout)
		series = append(series, types.DayBalance{
			Date:    key,
			Balance: combined[key].StringFixed(2),
		})
	}
	return series
}
