package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"

	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
)

// TreasuryHistoryStore is the document store behind the persisted treasury history
type TreasuryHistoryStore interface {
	Exists(ctx context.Context, network, date string) (bool, error)
	CommitBatch(ctx context.Context, network string, writes []storage.HistoryWrite) error
	List(ctx context.Context, network string) ([]types.TreasuryHistoryDoc, error)
}

// HistoryWriter upserts aggregated day balances into the treasury history store
type HistoryWriter struct {
	store   TreasuryHistoryStore
	workers int
}

// NewHistoryWriter creates a writer that runs at most workers existence checks at once
func NewHistoryWriter(store TreasuryHistoryStore, workers int) *HistoryWriter {
	if workers <= 0 {
		workers = 1
	}
	return &HistoryWriter{store: store, workers: workers}
}

// Persist writes every day of series except the first of each month.
// Existing days are updated, missing days inserted, all in one atomic batch.
// Failures are logged and never returned: persistence is not part of the caller's success path.
func (w *HistoryWriter) Persist(ctx context.Context, network string, series types.DaySeries) {
	logger := logging.FromContext(ctx).WithComponent("history_writer").WithField("network", network)

	writes, err := w.plan(ctx, network, series)
	if err != nil {
		logger.WithError(err).Error("Error checking treasury history documents")
		return
	}
	if len(writes) == 0 {
		return
	}

	if err := w.store.CommitBatch(ctx, network, writes); err != nil {
		logger.WithError(err).Error("Error writing treasury history batch")
		return
	}

	logger.WithField("days", len(writes)).Info("Treasury history persisted")
}

// plan resolves insert-vs-update for each persistable day with concurrent existence checks
func (w *HistoryWriter) plan(ctx context.Context, network string, series types.DaySeries) ([]storage.HistoryWrite, error) {
	writes := make([]storage.HistoryWrite, 0, len(series))
	for _, day := range series {
		parsed, ok := types.ParseDay(day.Date)
		if !ok || parsed.Day() == 1 {
			continue
		}
		writes = append(writes, storage.HistoryWrite{Date: day.Date, Balance: day.Balance})
	}
	if len(writes) == 0 {
		return nil, nil
	}

	pool := pond.NewPool(w.workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := range writes {
		i := i
		group.SubmitErr(func() error {
			exists, err := w.store.Exists(groupCtx, network, writes[i].Date)
			if err != nil {
				return fmt.Errorf("exists %s: %w", writes[i].Date, err)
			}
			writes[i].Exists = exists
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return writes, nil
}
