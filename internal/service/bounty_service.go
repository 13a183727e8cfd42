package service

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/shopspring/decimal"

	"github.com/treasury-tracker/internal/adapter"
	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/network"
)

// BountiesPageSize is the number of bounties per dashboard page
const BountiesPageSize = 10

// MsgNoBounties is returned instead of a listing when a page has no bounties
const MsgNoBounties = "No bounty data found"

// BountyFetcher reads bounties and their children from the governance indexer
type BountyFetcher interface {
	FetchBounties(ctx context.Context, props network.Properties, limit, offset int) (*adapter.BountyPage, error)
	FetchChildBounties(ctx context.Context, props network.Properties, parentIndex int) (*adapter.ChildBountyPage, error)
}

// BountySummary is one row of the bounty dashboard
type BountySummary struct {
	Proposer                string   `json:"proposer"`
	Index                   int      `json:"index"`
	Status                  string   `json:"status"`
	Reward                  string   `json:"reward"`
	Payee                   string   `json:"payee"`
	Title                   string   `json:"title"`
	Curator                 string   `json:"curator"`
	TotalChildBountiesCount int      `json:"totalChildBountiesCount"`
	ClaimedAmount           string   `json:"claimedAmount"`
	Categories              []string `json:"categories"`
}

// BountyListing is one page of the bounty dashboard.
// Found is false when the page held no bounties at all.
type BountyListing struct {
	Bounties           []BountySummary `json:"bounties"`
	TotalBountiesCount int             `json:"totalBountiesCount"`
	Found              bool            `json:"-"`
}

// BountyService builds the bounty dashboard
type BountyService struct {
	registry *network.Registry
	fetcher  BountyFetcher
	workers  int
}

// NewBountyService creates a bounty service that fetches at most workers child bounty lists at once
func NewBountyService(registry *network.Registry, fetcher BountyFetcher, workers int) *BountyService {
	if workers <= 0 {
		workers = 1
	}
	return &BountyService{registry: registry, fetcher: fetcher, workers: workers}
}

// ClaimedAmount sums the rewards of claimed or awarded child bounties.
// Missing or malformed rewards count as zero.
func ClaimedAmount(children []adapter.ChildBounty) decimal.Decimal {
	total := decimal.Zero
	for _, child := range children {
		if child.Status != adapter.BountyStatusClaimed && child.Status != adapter.BountyStatusAwarded {
			continue
		}
		total = total.Add(parseBalance(child.Reward))
	}
	return total
}

// ListBounties returns one page of bounties with their child bounty totals.
// A bounty whose children could not be fetched is left out of the page.
func (s *BountyService) ListBounties(ctx context.Context, networkName string, page int) (*BountyListing, error) {
	props, ok := s.registry.Get(networkName)
	if !ok {
		return nil, apperrors.NewInvalidNetworkError(networkName)
	}
	if page < 1 {
		return nil, apperrors.NewInvalidParameterError("page", "must be a positive integer")
	}

	logger := logging.FromContext(ctx).WithComponent("bounty_service").WithFields(map[string]interface{}{
		"network": networkName,
		"page":    page,
	})

	bounties, err := s.fetcher.FetchBounties(ctx, props, BountiesPageSize, BountiesPageSize*(page-1))
	if err != nil {
		return nil, apperrors.NewProviderError("indexer", err)
	}
	if len(bounties.Bounties) == 0 {
		return &BountyListing{Bounties: []BountySummary{}, TotalBountiesCount: bounties.TotalCount}, nil
	}

	summaries := make([]*BountySummary, len(bounties.Bounties))

	pool := pond.NewPool(s.workers)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for i := range bounties.Bounties {
		i := i
		group.Submit(func() {
			bounty := bounties.Bounties[i]
			children, err := s.fetcher.FetchChildBounties(ctx, props, bounty.Index)
			if err != nil {
				logger.WithError(err).WithField("bounty", bounty.Index).Warn("Child bounty fetch failed")
				return
			}
			summaries[i] = summarize(bounty, children)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, apperrors.NewInternalError("list bounties", err)
	}

	listing := &BountyListing{
		Bounties:           make([]BountySummary, 0, len(summaries)),
		TotalBountiesCount: bounties.TotalCount,
		Found:              true,
	}
	for _, summary := range summaries {
		if summary != nil {
			listing.Bounties = append(listing.Bounties, *summary)
		}
	}

	logger.WithFields(map[string]interface{}{
		"bounties": len(listing.Bounties),
		"dropped":  len(summaries) - len(listing.Bounties),
	}).Debug("Bounty page built")
	return listing, nil
}

func summarize(bounty adapter.Bounty, children *adapter.ChildBountyPage) *BountySummary {
	return &BountySummary{
		Proposer:                bounty.Proposer,
		Index:                   bounty.Index,
		Status:                  bounty.Status,
		Reward:                  bounty.Reward,
		Payee:                   bounty.Payee,
		Curator:                 bounty.Curator,
		TotalChildBountiesCount: children.TotalCount,
		ClaimedAmount:           ClaimedAmount(children.ChildBounties).String(),
		Categories:              []string{},
	}
}
