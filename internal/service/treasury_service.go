package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/network"
	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
)

// BalanceFetcher retrieves the month-windowed balance history of one account
type BalanceFetcher interface {
	FetchBalanceHistory(ctx context.Context, address, apiURL string) ([]types.BalanceWindow, error)
}

// BalanceArchiver stores raw fetched balance points
type BalanceArchiver interface {
	Archive(ctx context.Context, rows []storage.ArchivedBalance) error
	History(ctx context.Context, network string, chain types.ChainKind, from, to time.Time) ([]storage.ArchivedBalance, error)
}

// CombinedBalances is the result of one aggregation run.
// Error is the flat message surfaced to callers; Err keeps the categorized cause.
type CombinedBalances struct {
	Data  []types.BalanceWindow `json:"data"`
	Error *string               `json:"error"`
	Err   error                 `json:"-"`
}

func failed(err error) *CombinedBalances {
	msg := err.Error()
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		msg = catErr.Message
	}
	return &CombinedBalances{Err: err, Error: &msg}
}

// TreasuryService fetches, aggregates and persists treasury balances
type TreasuryService struct {
	registry *network.Registry
	fetcher  BalanceFetcher
	store    TreasuryHistoryStore
	writer   *HistoryWriter
	archiver BalanceArchiver
	now      func() time.Time
}

// TreasuryServiceOption configures a TreasuryService
type TreasuryServiceOption func(*TreasuryService)

// WithArchiver enables the raw balance archive
func WithArchiver(a BalanceArchiver) TreasuryServiceOption {
	return func(s *TreasuryService) {
		s.archiver = a
	}
}

// WithServiceClock overrides the clock used to decide "today"
func WithServiceClock(now func() time.Time) TreasuryServiceOption {
	return func(s *TreasuryService) {
		s.now = now
	}
}

// NewTreasuryService creates a new treasury service
func NewTreasuryService(
	registry *network.Registry,
	fetcher BalanceFetcher,
	store TreasuryHistoryStore,
	persistWorkers int,
	opts ...TreasuryServiceOption,
) *TreasuryService {
	s := &TreasuryService{
		registry: registry,
		fetcher:  fetcher,
		store:    store,
		writer:   NewHistoryWriter(store, persistWorkers),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type chainResult struct {
	windows []types.BalanceWindow
	err     error
}

// GetCombinedBalances fetches both treasury accounts of a network, merges them
// into a daily series, persists it and returns it in window form.
// A chain that failed to fetch contributes nothing to the series.
func (s *TreasuryService) GetCombinedBalances(ctx context.Context, networkName string) *CombinedBalances {
	logger := logging.FromContext(ctx).WithComponent("treasury_service").WithFields(map[string]interface{}{
		"network": networkName,
		"run_id":  uuid.NewString(),
	})

	props, ok := s.registry.Get(networkName)
	nativeURL := network.BalanceHistoryURL(props.ExternalLinks)
	assetHubURL := network.BalanceHistoryURL(props.AssetHubExternalLinks)
	if !ok || props.TreasuryAddress == "" || props.AssetHubTreasuryAddress == "" || nativeURL == "" || assetHubURL == "" {
		logger.Warn("Treasury address or balance API missing")
		return failed(apperrors.NewMissingNetworkConfigError(networkName))
	}

	var (
		wg       sync.WaitGroup
		native   chainResult
		assetHub chainResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		native.windows, native.err = s.fetcher.FetchBalanceHistory(ctx, props.TreasuryAddress, nativeURL)
	}()
	go func() {
		defer wg.Done()
		assetHub.windows, assetHub.err = s.fetcher.FetchBalanceHistory(ctx, props.AssetHubTreasuryAddress, assetHubURL)
	}()
	wg.Wait()

	series := AggregateBalances(native.windows, assetHub.windows, s.now())

	ctx = logging.WithLogger(ctx, logger)
	s.writer.Persist(ctx, networkName, series)
	s.archive(ctx, networkName, props, native.windows, assetHub.windows)

	result := &CombinedBalances{Data: series.Windows()}
	// the asset hub failure is reported when both chains fail
	if err := firstErr(assetHub.err, native.err); err != nil {
		logger.WithError(err).Warn("Treasury balance fetch failed")
		failure := failed(err)
		result.Error = failure.Error
		result.Err = failure.Err
		return result
	}

	logger.WithField("days", len(series)).Info("Treasury balances aggregated")
	return result
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *TreasuryService) archive(ctx context.Context, networkName string, props network.Properties, native, assetHub []types.BalanceWindow) {
	if s.archiver == nil {
		return
	}
	fetchedAt := s.now()
	rows := storage.FlattenWindows(networkName, types.ChainNative, props.TreasuryAddress, native, fetchedAt)
	rows = append(rows, storage.FlattenWindows(networkName, types.ChainAssetHub, props.AssetHubTreasuryAddress, assetHub, fetchedAt)...)

	if err := s.archiver.Archive(ctx, rows); err != nil {
		logging.FromContext(ctx).WithError(err).Error("Error archiving raw treasury balances")
	}
}

// GetTreasuryHistory returns the persisted daily history of a network
func (s *TreasuryService) GetTreasuryHistory(ctx context.Context, networkName string) ([]types.DayBalance, error) {
	if !s.registry.IsValid(networkName) {
		return nil, apperrors.NewInvalidNetworkError(networkName)
	}

	docs, err := s.store.List(ctx, networkName)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list treasury history", err)
	}
	if len(docs) == 0 {
		return nil, apperrors.NewNotFoundError("No treasury history found for this network")
	}

	history := make([]types.DayBalance, 0, len(docs))
	for _, doc := range docs {
		history = append(history, types.DayBalance{Date: doc.Date, Balance: doc.Balance})
	}
	return history, nil
}

// GetArchivedBalances returns the raw points archived for one chain of a network.
// from and to are calendar days; empty values default to the history epoch and today.
func (s *TreasuryService) GetArchivedBalances(ctx context.Context, networkName, chain, from, to string) ([]storage.ArchivedBalance, error) {
	if !s.registry.IsValid(networkName) {
		return nil, apperrors.NewInvalidNetworkError(networkName)
	}
	if s.archiver == nil {
		return nil, apperrors.NewNotFoundError("Balance archive is not enabled")
	}

	kind := types.ChainKind(chain)
	if kind != types.ChainNative && kind != types.ChainAssetHub {
		return nil, apperrors.NewInvalidParameterError("chain", "must be native or assethub")
	}

	start, end := HistoryEpoch, s.now().UTC()
	if from != "" {
		day, ok := types.ParseDay(from)
		if !ok {
			return nil, apperrors.NewInvalidParameterError("from", "must be a YYYY-MM-DD date")
		}
		start = day
	}
	if to != "" {
		day, ok := types.ParseDay(to)
		if !ok {
			return nil, apperrors.NewInvalidParameterError("to", "must be a YYYY-MM-DD date")
		}
		end = day
	}
	if start.After(end) {
		return nil, apperrors.NewInvalidParameterError("from", "must not be after to")
	}

	rows, err := s.archiver.History(ctx, networkName, kind, start, end)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query balance archive", err)
	}
	if rows == nil {
		rows = []storage.ArchivedBalance{}
	}
	return rows, nil
}

// RefreshAll runs GetCombinedBalances for each network in turn and reports how many failed
func (s *TreasuryService) RefreshAll(ctx context.Context, networks []string) int {
	logger := logging.FromContext(ctx).WithComponent("treasury_service")

	failures := 0
	for _, name := range networks {
		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("Treasury refresh interrupted")
			return failures + 1
		}
		start := time.Now()
		res := s.GetCombinedBalances(ctx, name)
		entry := logger.WithFields(map[string]interface{}{
			"network":  name,
			"duration": time.Since(start).String(),
		})
		if res.Err != nil {
			failures++
			entry.WithError(res.Err).Error("Treasury refresh failed")
			continue
		}
		entry.Info("Treasury refresh completed")
	}
	return failures
}
