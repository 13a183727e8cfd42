package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"

	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/network"
)

// MsgOpenGovUnsupported is the listing error for networks without referendum tracks
const MsgOpenGovUnsupported = "Network does not support OpenGov yet."

// Listing keys that are always present next to the per-track keys
const (
	KeyAllGov2Posts    = "allGov2Posts"
	KeyDiscussionPosts = "discussionPosts"
)

// Proposal types queried on the indexer
const (
	proposalTypeOpenGov    = "ReferendumV2"
	proposalTypeFellowship = "FellowshipReferendum"
)

const proposalsQuery = `query LatestProposals($limit: Int!, $type: ProposalType!) {
  proposals(limit: $limit, orderBy: createdAt_DESC, where: {type_eq: $type}) {
    index hash proposer status trackNumber type createdAt
  }
  proposalsConnection(orderBy: id_ASC, where: {type_eq: $type}) { totalCount }
}`

const trackProposalsQuery = `query LatestTrackProposals($limit: Int!, $type: ProposalType!, $trackNo: Int!) {
  proposals(limit: $limit, orderBy: createdAt_DESC, where: {type_eq: $type, trackNumber_eq: $trackNo}) {
    index hash proposer status trackNumber type createdAt
  }
  proposalsConnection(orderBy: id_ASC, where: {type_eq: $type, trackNumber_eq: $trackNo}) { totalCount }
}`

const discussionsQuery = `query LatestDiscussions($limit: Int!) {
  proposals: discussions(limit: $limit, orderBy: createdAt_DESC) {
    index proposer createdAt
  }
  proposalsConnection: discussionsConnection(orderBy: id_ASC) { totalCount }
}`

// LatestPost is one entry of a latest activity list
type LatestPost struct {
	PostID      int       `json:"post_id"`
	Hash        string    `json:"hash,omitempty"`
	Proposer    string    `json:"proposer,omitempty"`
	Status      string    `json:"status,omitempty"`
	TrackNumber *int      `json:"track_no,omitempty"`
	Type        string    `json:"type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostsPage is one list of latest posts plus the total available
type PostsPage struct {
	Count int          `json:"count"`
	Posts []LatestPost `json:"posts"`
}

// PostsResult is one listing entry; a failed fetch carries Error instead of Data
type PostsResult struct {
	Data  *PostsPage `json:"data"`
	Error string     `json:"error,omitempty"`
}

// SocialsData wraps a network's links the way the feed page expects them
type SocialsData struct {
	Data network.Socials `json:"data"`
}

// LatestActivity is the OpenGov latest activity listing for a network
type LatestActivity struct {
	Error              string                 `json:"error"`
	Network            string                 `json:"network,omitempty"`
	Gov2LatestPosts    map[string]PostsResult `json:"gov2LatestPosts,omitempty"`
	NetworkSocialsData *SocialsData           `json:"networkSocialsData,omitempty"`
}

// IndexerClient queries a network's GraphQL indexer for governance listings
type IndexerClient struct {
	httpClient *http.Client
	limit      int
	workers    int
}

// NewIndexerClient creates an indexer client that fetches listings of up to limit posts
// using at most workers concurrent requests
func NewIndexerClient(timeout time.Duration, limit, workers int) *IndexerClient {
	if workers <= 0 {
		workers = 1
	}
	return &IndexerClient{
		httpClient: &http.Client{Timeout: timeout},
		limit:      limit,
		workers:    workers,
	}
}

type listingFetch struct {
	key       string
	query     string
	variables map[string]interface{}
}

// FetchLatestActivity fetches the all-posts list, the discussions list and one list per
// track concurrently. A failed list is reported inside its entry; the listing as a whole
// only carries an error when every list failed or the network has no tracks.
func (c *IndexerClient) FetchLatestActivity(ctx context.Context, props network.Properties) (*LatestActivity, error) {
	if len(props.Tracks) == 0 || props.IndexerURL == "" {
		return &LatestActivity{Error: MsgOpenGovUnsupported}, nil
	}

	logger := logging.FromContext(ctx).WithComponent("indexer_client").WithField("network", props.Name)

	fetches := []listingFetch{
		{key: KeyAllGov2Posts, query: proposalsQuery, variables: map[string]interface{}{"limit": c.limit, "type": proposalTypeOpenGov}},
		{key: KeyDiscussionPosts, query: discussionsQuery, variables: map[string]interface{}{"limit": c.limit}},
	}
	for _, track := range props.Tracks {
		proposalType := proposalTypeOpenGov
		if track.FellowshipOrigin {
			proposalType = proposalTypeFellowship
		}
		fetches = append(fetches, listingFetch{
			key:   track.Name,
			query: trackProposalsQuery,
			variables: map[string]interface{}{
				"limit":   c.limit,
				"type":    proposalType,
				"trackNo": track.TrackID,
			},
		})
	}

	results := make([]PostsResult, len(fetches))

	pool := pond.NewPool(c.workers)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for i := range fetches {
		i := i
		group.Submit(func() {
			page, err := c.fetchPosts(ctx, props.IndexerURL, fetches[i])
			if err != nil {
				logger.WithError(err).WithField("list", fetches[i].key).Warn("Latest activity list fetch failed")
				results[i] = PostsResult{Error: apperrors.MsgAPIFetchError}
				return
			}
			results[i] = PostsResult{Data: page}
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	activity := &LatestActivity{
		Network:         props.Name,
		Gov2LatestPosts: make(map[string]PostsResult, len(fetches)),
	}
	if !props.Socials.IsZero() {
		activity.NetworkSocialsData = &SocialsData{Data: props.Socials}
	}
	failures := 0
	for i, f := range fetches {
		activity.Gov2LatestPosts[f.key] = results[i]
		if results[i].Error != "" {
			failures++
		}
	}
	if failures == len(fetches) {
		activity.Error = apperrors.MsgAPIFetchError
	}

	logger.WithFields(map[string]interface{}{
		"lists":    len(fetches),
		"failures": failures,
	}).Debug("Latest activity fetched")
	return activity, nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type proposalNode struct {
	Index       int       `json:"index"`
	Hash        string    `json:"hash"`
	Proposer    string    `json:"proposer"`
	Status      string    `json:"status"`
	TrackNumber *int      `json:"trackNumber"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type totalCount struct {
	TotalCount int `json:"totalCount"`
}

type proposalsData struct {
	Proposals           []proposalNode `json:"proposals"`
	ProposalsConnection totalCount     `json:"proposalsConnection"`
}

// query posts one GraphQL request and decodes its data object into out
func (c *IndexerClient) query(ctx context.Context, url, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query indexer: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("indexer error: status=%d, body=%s", resp.StatusCode, string(raw))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to parse indexer response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("indexer query error: %s", envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("indexer returned no data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode indexer data: %w", err)
	}
	return nil
}

func (c *IndexerClient) fetchPosts(ctx context.Context, url string, f listingFetch) (*PostsPage, error) {
	var data proposalsData
	if err := c.query(ctx, url, f.query, f.variables, &data); err != nil {
		return nil, err
	}

	page := &PostsPage{
		Count: data.ProposalsConnection.TotalCount,
		Posts: make([]LatestPost, 0, len(data.Proposals)),
	}
	for _, p := range data.Proposals {
		page.Posts = append(page.Posts, LatestPost{
			PostID:      p.Index,
			Hash:        p.Hash,
			Proposer:    p.Proposer,
			Status:      p.Status,
			TrackNumber: p.TrackNumber,
			Type:        p.Type,
			CreatedAt:   p.CreatedAt,
		})
	}
	return page, nil
}
