package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/treasury-tracker/internal/network"
)

// Bounty statuses whose child bounty rewards count as paid out
const (
	BountyStatusClaimed = "Claimed"
	BountyStatusAwarded = "Awarded"
)

// ErrNoIndexer is returned for networks without a governance indexer
var ErrNoIndexer = errors.New("network has no indexer configured")

const bountiesQuery = `query AllBounties($limit: Int!, $offset: Int!) {
  bounties: proposals(limit: $limit, offset: $offset, orderBy: index_DESC, where: {type_eq: Bounty}) {
    proposer index status reward payee curator
  }
  totalBounties: proposalsConnection(orderBy: id_ASC, where: {type_eq: Bounty}) { totalCount }
}`

const childBountiesQuery = `query ChildBountiesByParent($parentBountyIndex_eq: Int!) {
  proposals(orderBy: index_DESC, where: {type_eq: ChildBounty, parentBountyIndex_eq: $parentBountyIndex_eq}) {
    index status reward
  }
  proposalsConnection(orderBy: id_ASC, where: {type_eq: ChildBounty, parentBountyIndex_eq: $parentBountyIndex_eq}) { totalCount }
}`

// Bounty is a parent bounty as indexed on chain. Reward is in planck.
type Bounty struct {
	Index    int
	Proposer string
	Status   string
	Reward   string
	Payee    string
	Curator  string
}

// BountyPage is one page of bounties plus the number of bounties on the network
type BountyPage struct {
	Bounties   []Bounty
	TotalCount int
}

// ChildBounty is one child of a parent bounty
type ChildBounty struct {
	Index  int
	Status string
	Reward string
}

// ChildBountyPage lists every child of a parent bounty
type ChildBountyPage struct {
	ChildBounties []ChildBounty
	TotalCount    int
}

// amount accepts a big integer encoded as a JSON string, a JSON number or null
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid amount %s: %w", string(b), err)
		}
		*a = amount(n)
	}
	return nil
}

type bountyNode struct {
	Index    int    `json:"index"`
	Proposer string `json:"proposer"`
	Status   string `json:"status"`
	Reward   amount `json:"reward"`
	Payee    string `json:"payee"`
	Curator  string `json:"curator"`
}

type bountiesData struct {
	Bounties      []bountyNode `json:"bounties"`
	TotalBounties totalCount   `json:"totalBounties"`
}

type childBountyNode struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Reward amount `json:"reward"`
}

type childBountiesData struct {
	Proposals           []childBountyNode `json:"proposals"`
	ProposalsConnection totalCount        `json:"proposalsConnection"`
}

// FetchBounties returns up to limit bounties, newest first, skipping offset
func (c *IndexerClient) FetchBounties(ctx context.Context, props network.Properties, limit, offset int) (*BountyPage, error) {
	if props.IndexerURL == "" {
		return nil, ErrNoIndexer
	}

	var data bountiesData
	variables := map[string]interface{}{"limit": limit, "offset": offset}
	if err := c.query(ctx, props.IndexerURL, bountiesQuery, variables, &data); err != nil {
		return nil, err
	}

	page := &BountyPage{
		Bounties:   make([]Bounty, 0, len(data.Bounties)),
		TotalCount: data.TotalBounties.TotalCount,
	}
	for _, b := range data.Bounties {
		page.Bounties = append(page.Bounties, Bounty{
			Index:    b.Index,
			Proposer: b.Proposer,
			Status:   b.Status,
			Reward:   string(b.Reward),
			Payee:    b.Payee,
			Curator:  b.Curator,
		})
	}
	return page, nil
}

// FetchChildBounties returns every child bounty of the given parent
func (c *IndexerClient) FetchChildBounties(ctx context.Context, props network.Properties, parentIndex int) (*ChildBountyPage, error) {
	if props.IndexerURL == "" {
		return nil, ErrNoIndexer
	}

	var data childBountiesData
	variables := map[string]interface{}{"parentBountyIndex_eq": parentIndex}
	if err := c.query(ctx, props.IndexerURL, childBountiesQuery, variables, &data); err != nil {
		return nil, err
	}

	page := &ChildBountyPage{
		ChildBounties: make([]ChildBounty, 0, len(data.Proposals)),
		TotalCount:    data.ProposalsConnection.TotalCount,
	}
	for _, child := range data.Proposals {
		page.ChildBounties = append(page.ChildBounties, ChildBounty{
			Index:  child.Index,
			Status: child.Status,
			Reward: string(child.Reward),
		})
	}
	return page, nil
}
