package service

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/treasury-tracker/internal/types"
)

func TestAggregateBalancesProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// today anywhere between the epoch and roughly three years later
	todayGen := gen.IntRange(0, 3*366).Map(func(offset int) time.Time {
		return HistoryEpoch.AddDate(0, 0, offset)
	})

	properties.Property("one entry per day from the epoch through today", prop.ForAll(
		func(today time.Time) bool {
			series := AggregateBalances(nil, nil, today)
			want := int(today.Sub(HistoryEpoch).Hours()/24) + 1
			if len(series) != want {
				return false
			}
			seen := make(map[string]bool, len(series))
			for i, d := range series {
				if seen[d.Date] {
					return false
				}
				seen[d.Date] = true
				if d.Date != HistoryEpoch.AddDate(0, 0, i).Format(types.DateLayout) {
					return false
				}
			}
			return true
		},
		todayGen,
	))

	properties.Property("untouched days are 0.00", prop.ForAll(
		func(today time.Time, balance uint32) bool {
			touched := today.Format(types.DateLayout)
			native := []types.BalanceWindow{{
				History: []types.BalanceSnapshot{{Date: touched, Balance: strconv.FormatUint(uint64(balance), 10)}},
			}}
			for _, d := range AggregateBalances(native, nil, today) {
				if d.Date != touched && d.Balance != "0.00" {
					return false
				}
			}
			return true
		},
		todayGen,
		gen.UInt32(),
	))

	properties.Property("chain order does not matter", prop.ForAll(
		func(a, b uint16) bool {
			today := HistoryEpoch.AddDate(0, 2, 0)
			day := HistoryEpoch.AddDate(0, 1, 3).Format(types.DateLayout)
			wa := []types.BalanceWindow{{History: []types.BalanceSnapshot{{Date: day, Balance: strconv.Itoa(int(a))}}}}
			wb := []types.BalanceWindow{{History: []types.BalanceSnapshot{{Date: day, Balance: strconv.Itoa(int(b))}}}}

			left := AggregateBalances(wa, wb, today)
			right := AggregateBalances(wb, wa, today)
			for i := range left {
				if left[i] != right[i] {
					return false
				}
			}
			return true
		},
		gen.UInt16(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}

