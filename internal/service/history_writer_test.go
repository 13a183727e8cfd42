package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasury-tracker/internal/types"
)

func TestHistoryWriter_SkipsFirstOfMonth(t *testing.T) {
	store := newMemoryHistoryStore()
	writer := NewHistoryWriter(store, 4)

	series := AggregateBalances(
		[]types.BalanceWindow{window(point("2024-02-01", "9"), point("2024-02-02", "9"))},
		nil,
		time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
	)
	writer.Persist(context.Background(), "polkadot", series)

	docs := store.snapshot("polkadot")
	// 65 days minus Jan 1, Feb 1 and Mar 1
	assert.Len(t, docs, len(series)-3)
	for date := range docs {
		day, ok := types.ParseDay(date)
		require.True(t, ok)
		assert.NotEqual(t, 1, day.Day(), date)
	}
	assert.Equal(t, "9.00", docs["2024-02-02"])
}

func TestHistoryWriter_Idempotent(t *testing.T) {
	store := newMemoryHistoryStore()
	writer := NewHistoryWriter(store, 2)
	series := AggregateBalances(
		[]types.BalanceWindow{window(point("2024-01-05", "3"))},
		nil,
		time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
	)

	writer.Persist(context.Background(), "kusama", series)
	first := store.snapshot("kusama")
	writer.Persist(context.Background(), "kusama", series)
	second := store.snapshot("kusama")

	assert.Equal(t, first, second)
	assert.Len(t, second, 9)
	assert.Equal(t, 2, store.commits)
}

func TestHistoryWriter_PlanMarksExisting(t *testing.T) {
	store := newMemoryHistoryStore()
	ctx := context.Background()
	writer := NewHistoryWriter(store, 0)

	series := types.DaySeries{
		{Date: "2024-01-02", Balance: "1.00"},
		{Date: "2024-01-03", Balance: "2.00"},
	}
	writer.Persist(ctx, "polkadot", series[:1])

	writes, err := writer.plan(ctx, "polkadot", series)
	require.NoError(t, err)
	require.Len(t, writes, 2)
	assert.True(t, writes[0].Exists)
	assert.False(t, writes[1].Exists)
}

func TestHistoryWriter_ExistenceCheckFailureAbortsBatch(t *testing.T) {
	store := newMemoryHistoryStore()
	store.failExist = errors.New("store unavailable")
	writer := NewHistoryWriter(store, 4)

	writer.Persist(context.Background(), "polkadot", types.DaySeries{{Date: "2024-01-02", Balance: "1.00"}})

	assert.Zero(t, store.commits)
	assert.Empty(t, store.snapshot("polkadot"))
}

func TestHistoryWriter_OnlyFirstOfMonth(t *testing.T) {
	store := newMemoryHistoryStore()
	NewHistoryWriter(store, 1).Persist(context.Background(), "polkadot", types.DaySeries{{Date: "2024-01-01", Balance: "1.00"}})
	assert.Zero(t, store.commits)
}
