package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasury-tracker/internal/adapter"
	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/network"
	"github.com/treasury-tracker/internal/storage"
)

type fakeActivityFetcher struct {
	calls  atomic.Int32
	result *adapter.LatestActivity
	err    error
}

func (f *fakeActivityFetcher) FetchLatestActivity(_ context.Context, props network.Properties) (*adapter.LatestActivity, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	out.Network = props.Name
	return &out, nil
}

func healthyActivity() *adapter.LatestActivity {
	return &adapter.LatestActivity{
		Gov2LatestPosts: map[string]adapter.PostsResult{
			adapter.KeyAllGov2Posts: {Data: &adapter.PostsPage{Count: 1, Posts: []adapter.LatestPost{{PostID: 7}}}},
		},
	}
}

func setupListingService(t *testing.T, fetcher ActivityFetcher, enabled bool) (*ListingService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := storage.NewListingCache(storage.NewRedisCacheFromClient(client), 0)
	return NewListingService(testRegistry(), fetcher, cache, enabled), mr
}

func TestListingService_SecondCallServedFromCache(t *testing.T) {
	fetcher := &fakeActivityFetcher{result: healthyActivity()}
	svc, mr := setupListingService(t, fetcher, true)
	ctx := context.Background()

	first, err := svc.Load(ctx, "polkadot")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, mr.Exists("polkadot_latestActivity_OpenGov"))

	second, err := svc.Load(ctx, "polkadot")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, string(first.Payload), string(second.Payload))
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestListingService_ErrorsAreCachedButNotServed(t *testing.T) {
	failing := &adapter.LatestActivity{Error: apperrors.MsgAPIFetchError}
	fetcher := &fakeActivityFetcher{result: failing}
	svc, mr := setupListingService(t, fetcher, true)
	ctx := context.Background()

	first, err := svc.Load(ctx, "polkadot")
	require.NoError(t, err)
	assert.Equal(t, apperrors.MsgAPIFetchError, first.Error)

	cached, err := mr.Get("polkadot_latestActivity_OpenGov")
	require.NoError(t, err)
	assert.Contains(t, cached, apperrors.MsgAPIFetchError)

	// the cached error does not block a refetch, and the fresh result overwrites it
	fetcher.result = healthyActivity()
	second, err := svc.Load(ctx, "polkadot")
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Empty(t, second.Error)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	cached, err = mr.Get("polkadot_latestActivity_OpenGov")
	require.NoError(t, err)
	assert.Equal(t, string(second.Payload), cached)
}

func TestListingService_Disabled(t *testing.T) {
	fetcher := &fakeActivityFetcher{result: healthyActivity()}
	svc, mr := setupListingService(t, fetcher, false)

	for i := 0; i < 2; i++ {
		_, err := svc.Load(context.Background(), "polkadot")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestListingService_UnsupportedNetworkNotCached(t *testing.T) {
	fetcher := &fakeActivityFetcher{result: &adapter.LatestActivity{Error: adapter.MsgOpenGovUnsupported}}
	svc, mr := setupListingService(t, fetcher, true)

	listing, err := svc.Load(context.Background(), "kusama")
	require.NoError(t, err)
	assert.Equal(t, adapter.MsgOpenGovUnsupported, listing.Error)
	assert.False(t, mr.Exists("kusama_latestActivity_OpenGov"))
}

func TestListingService_CacheFailureFallsBackToFetch(t *testing.T) {
	fetcher := &fakeActivityFetcher{result: healthyActivity()}
	svc, mr := setupListingService(t, fetcher, true)
	mr.SetError("LOADING")

	listing, err := svc.Load(context.Background(), "polkadot")
	require.NoError(t, err)
	assert.Empty(t, listing.Error)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestListingService_CorruptCacheEntryIsAMiss(t *testing.T) {
	fetcher := &fakeActivityFetcher{result: healthyActivity()}
	svc, mr := setupListingService(t, fetcher, true)
	require.NoError(t, mr.Set("polkadot_latestActivity_OpenGov", "not json"))

	listing, err := svc.Load(context.Background(), "polkadot")
	require.NoError(t, err)
	assert.False(t, listing.Cached)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestListingService_Errors(t *testing.T) {
	fetcher := &fakeActivityFetcher{err: errors.New("boom")}
	svc, _ := setupListingService(t, fetcher, true)

	_, err := svc.Load(context.Background(), "unknown")
	assert.Equal(t, apperrors.CodeInvalidNetwork, apperrors.Categorize(err).Code)

	_, err = svc.Load(context.Background(), "polkadot")
	assert.Equal(t, apperrors.CodeProviderError, apperrors.Categorize(err).Code)
}

func TestListingService_Invalidate(t *testing.T) {
	fetcher := &fakeActivityFetcher{result: healthyActivity()}
	svc, mr := setupListingService(t, fetcher, true)
	ctx := context.Background()

	_, err := svc.Load(ctx, "polkadot")
	require.NoError(t, err)
	require.True(t, mr.Exists("polkadot_latestActivity_OpenGov"))

	require.NoError(t, svc.Invalidate(ctx, "polkadot"))
	assert.False(t, mr.Exists("polkadot_latestActivity_OpenGov"))

	listing, err := svc.Load(ctx, "polkadot")
	require.NoError(t, err)
	assert.False(t, listing.Cached)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	err = svc.Invalidate(ctx, "unknown")
	assert.Equal(t, apperrors.CodeInvalidNetwork, apperrors.Categorize(err).Code)

	mr.SetError("READONLY")
	err = svc.Invalidate(ctx, "polkadot")
	assert.Equal(t, apperrors.CodeCacheError, apperrors.Categorize(err).Code)
}

func TestListingService_InvalidateDisabled(t *testing.T) {
	svc, mr := setupListingService(t, &fakeActivityFetcher{result: healthyActivity()}, false)
	require.NoError(t, mr.Set("polkadot_latestActivity_OpenGov", `{"error":""}`))

	require.NoError(t, svc.Invalidate(context.Background(), "polkadot"))
	assert.True(t, mr.Exists("polkadot_latestActivity_OpenGov"))
}
