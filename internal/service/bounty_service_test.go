package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasury-tracker/internal/adapter"
	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/network"
)

type fakeBountyFetcher struct {
	mu         sync.Mutex
	page       *adapter.BountyPage
	err        error
	children   map[int][]adapter.ChildBounty
	childErrs  map[int]error
	lastOffset int
}

func (f *fakeBountyFetcher) FetchBounties(_ context.Context, _ network.Properties, limit, offset int) (*adapter.BountyPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOffset = offset
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeBountyFetcher) FetchChildBounties(_ context.Context, _ network.Properties, parentIndex int) (*adapter.ChildBountyPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.childErrs[parentIndex]; err != nil {
		return nil, err
	}
	children := f.children[parentIndex]
	return &adapter.ChildBountyPage{ChildBounties: children, TotalCount: len(children)}, nil
}

func TestClaimedAmount(t *testing.T) {
	tests := []struct {
		name     string
		children []adapter.ChildBounty
		want     string
	}{
		{name: "no children", children: nil, want: "0"},
		{
			name: "claimed and awarded are summed",
			children: []adapter.ChildBounty{
				{Status: adapter.BountyStatusClaimed, Reward: "100"},
				{Status: adapter.BountyStatusAwarded, Reward: "50"},
				{Status: "Added", Reward: "1000"},
				{Status: "Active", Reward: "1000"},
			},
			want: "150",
		},
		{
			name: "empty reward counts as zero",
			children: []adapter.ChildBounty{
				{Status: adapter.BountyStatusClaimed, Reward: ""},
				{Status: adapter.BountyStatusClaimed, Reward: "7"},
			},
			want: "7",
		},
		{
			name: "malformed reward counts as zero",
			children: []adapter.ChildBounty{
				{Status: adapter.BountyStatusAwarded, Reward: "lots"},
			},
			want: "0",
		},
		{
			name: "amounts beyond 64 bits keep full precision",
			children: []adapter.ChildBounty{
				{Status: adapter.BountyStatusClaimed, Reward: "340282366920938463463374607431768211456"},
				{Status: adapter.BountyStatusAwarded, Reward: "1"},
			},
			want: "340282366920938463463374607431768211457",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClaimedAmount(tt.children).String())
		})
	}
}

func TestListBounties(t *testing.T) {
	fetcher := &fakeBountyFetcher{
		page: &adapter.BountyPage{
			TotalCount: 23,
			Bounties: []adapter.Bounty{
				{Index: 12, Proposer: "alice", Status: "Active", Reward: "900", Curator: "carol"},
				{Index: 11, Proposer: "bob", Status: "Active", Reward: "500"},
				{Index: 10, Proposer: "eve", Status: "Proposed", Reward: "300"},
			},
		},
		children: map[int][]adapter.ChildBounty{
			12: {
				{Index: 1, Status: adapter.BountyStatusClaimed, Reward: "100"},
				{Index: 2, Status: adapter.BountyStatusAwarded, Reward: ""},
				{Index: 3, Status: "Added", Reward: "400"},
			},
		},
		childErrs: map[int]error{11: errors.New("indexer timeout")},
	}
	svc := NewBountyService(testRegistry(), fetcher, 2)

	listing, err := svc.ListBounties(context.Background(), "polkadot", 3)
	require.NoError(t, err)
	assert.Equal(t, 20, fetcher.lastOffset)

	assert.True(t, listing.Found)
	assert.Equal(t, 23, listing.TotalBountiesCount)
	require.Len(t, listing.Bounties, 2)

	first := listing.Bounties[0]
	assert.Equal(t, 12, first.Index)
	assert.Equal(t, "100", first.ClaimedAmount)
	assert.Equal(t, 3, first.TotalChildBountiesCount)
	assert.Equal(t, "carol", first.Curator)
	assert.Equal(t, "900", first.Reward)
	assert.NotNil(t, first.Categories)

	// bounty 11 failed to load its children and is left out
	assert.Equal(t, 10, listing.Bounties[1].Index)
	assert.Equal(t, "0", listing.Bounties[1].ClaimedAmount)
	assert.Zero(t, listing.Bounties[1].TotalChildBountiesCount)
}

func TestListBounties_EmptyPage(t *testing.T) {
	fetcher := &fakeBountyFetcher{page: &adapter.BountyPage{TotalCount: 5}}
	listing, err := NewBountyService(testRegistry(), fetcher, 2).ListBounties(context.Background(), "polkadot", 9)
	require.NoError(t, err)
	assert.False(t, listing.Found)
	assert.Empty(t, listing.Bounties)
}

func TestListBounties_Errors(t *testing.T) {
	fetcher := &fakeBountyFetcher{err: errors.New("indexer down")}
	svc := NewBountyService(testRegistry(), fetcher, 2)
	ctx := context.Background()

	_, err := svc.ListBounties(ctx, "nowhere", 1)
	assert.Equal(t, apperrors.CodeInvalidNetwork, apperrors.Categorize(err).Code)

	_, err = svc.ListBounties(ctx, "polkadot", 0)
	assert.Equal(t, apperrors.CodeInvalidParameter, apperrors.Categorize(err).Code)

	_, err = svc.ListBounties(ctx, "polkadot", 1)
	assert.Equal(t, apperrors.CodeProviderError, apperrors.Categorize(err).Code)
}
