package service

import (
	"context"
	"encoding/json"

	"github.com/treasury-tracker/internal/adapter"
	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/network"
)

// ActivityFetcher performs the uncached latest activity fetch
type ActivityFetcher interface {
	FetchLatestActivity(ctx context.Context, props network.Properties) (*adapter.LatestActivity, error)
}

// ListingStore is the key-value store behind the listing cache
type ListingStore interface {
	Get(ctx context.Context, network string) (string, bool, error)
	Set(ctx context.Context, network, payload string) error
	Invalidate(ctx context.Context, network string) error
}

// Listing is a serialized latest activity listing.
// Error mirrors the payload's error field.
type Listing struct {
	Payload json.RawMessage
	Error   string
	Cached  bool
}

// ListingService serves the latest activity listing through a read-through cache
type ListingService struct {
	registry *network.Registry
	fetcher  ActivityFetcher
	store    ListingStore
	enabled  bool
}

// NewListingService creates a listing service. When enabled is false the store is never touched.
func NewListingService(registry *network.Registry, fetcher ActivityFetcher, store ListingStore, enabled bool) *ListingService {
	return &ListingService{
		registry: registry,
		fetcher:  fetcher,
		store:    store,
		enabled:  enabled && store != nil,
	}
}

// payloadError extracts the embedded error field of a serialized listing
func payloadError(raw []byte) (string, bool) {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", false
	}
	return envelope.Error, true
}

// Load returns the latest activity listing for a network.
// A cached listing without an error is served as-is. Otherwise the listing is
// fetched and, when caching is enabled, written back whether or not it carries an error.
func (s *ListingService) Load(ctx context.Context, networkName string) (*Listing, error) {
	props, ok := s.registry.Get(networkName)
	if !ok {
		return nil, apperrors.NewInvalidNetworkError(networkName)
	}

	logger := logging.FromContext(ctx).WithComponent("listing_service").WithField("network", networkName)

	if s.enabled {
		raw, found, err := s.store.Get(ctx, networkName)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Listing cache read failed")
		case found:
			if msg, valid := payloadError([]byte(raw)); valid && msg == "" {
				logger.Debug("Listing served from cache")
				return &Listing{Payload: json.RawMessage(raw), Cached: true}, nil
			}
		}
	}

	activity, err := s.fetcher.FetchLatestActivity(ctx, props)
	if err != nil {
		return nil, apperrors.NewProviderError("indexer", err)
	}
	payload, err := json.Marshal(activity)
	if err != nil {
		return nil, apperrors.NewInternalError("encode listing", err)
	}

	// listings of networks without OpenGov are never cached
	if s.enabled && activity.Error != adapter.MsgOpenGovUnsupported {
		if err := s.store.Set(ctx, networkName, string(payload)); err != nil {
			logger.WithError(err).Warn("Listing cache write failed")
		}
	}

	return &Listing{Payload: payload, Error: activity.Error}, nil
}

// Invalidate drops the cached listing of a network so the next Load refetches it.
// It is a no-op when caching is disabled.
func (s *ListingService) Invalidate(ctx context.Context, networkName string) error {
	if !s.registry.IsValid(networkName) {
		return apperrors.NewInvalidNetworkError(networkName)
	}
	if !s.enabled {
		return nil
	}
	if err := s.store.Invalidate(ctx, networkName); err != nil {
		return apperrors.NewCacheError("invalidate listing", err)
	}
	logging.FromContext(ctx).WithComponent("listing_service").WithField("network", networkName).Info("Listing cache invalidated")
	return nil
}
