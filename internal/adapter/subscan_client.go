// Package adapter provides clients for the external data providers the tracker reads from.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/types"
)

// HistoryMonths is the number of consecutive month windows fetched per account
const HistoryMonths = 7

// SubscanClient fetches account balance history from a Subscan-compatible API
type SubscanClient struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// SubscanOption configures a SubscanClient
type SubscanOption func(*SubscanClient)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) SubscanOption {
	return func(s *SubscanClient) { s.httpClient = c }
}

// WithClock overrides the time source used to compute month windows
func WithClock(now func() time.Time) SubscanOption {
	return func(s *SubscanClient) { s.now = now }
}

// NewSubscanClient creates a balance history client.
// requestsPerSecond <= 0 disables pacing.
func NewSubscanClient(apiKey string, requestsPerSecond int, timeout time.Duration, opts ...SubscanOption) *SubscanClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	c := &SubscanClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// balanceHistoryRequest is the POST body for the balance history endpoint
type balanceHistoryRequest struct {
	Address string `json:"address"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// balanceHistoryResponse is the envelope returned by the balance history endpoint
type balanceHistoryResponse struct {
	Code    int                  `json:"code"`
	Message string               `json:"message"`
	Data    *types.BalanceWindow `json:"data"`
}

// MonthWindow is an inclusive [Start, End] date range, formatted YYYY-MM-DD
type MonthWindow struct {
	Start string
	End   string
}

// MonthRange returns the window for the month monthsAgo months before today.
// The current month's window ends today; earlier windows end on their last day.
func MonthRange(today time.Time, monthsAgo int) MonthWindow {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(today.Year(), today.Month()-time.Month(monthsAgo), 1, 0, 0, 0, 0, time.UTC)
	if start.After(today) {
		start = time.Date(today.Year(), today.Month()-time.Month(monthsAgo+1), 1, 0, 0, 0, 0, time.UTC)
	}

	next := start.AddDate(0, 1, 0)
	end := next.AddDate(0, 0, -1)
	if today.Before(next) {
		end = today
	}

	return MonthWindow{Start: start.Format(types.DateLayout), End: end.Format(types.DateLayout)}
}

// FetchBalanceHistory fetches HistoryMonths month windows for address, newest first.
// Windows are requested one after another; the first failure aborts the run and
// no partial windows are returned.
func (c *SubscanClient) FetchBalanceHistory(ctx context.Context, address, apiURL string) ([]types.BalanceWindow, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"address": address,
		"url":     apiURL,
	})

	today := c.now().UTC()
	windows := make([]types.BalanceWindow, 0, HistoryMonths)

	for i := 0; i < HistoryMonths; i++ {
		month := MonthRange(today, i)

		window, err := c.fetchWindow(ctx, apiURL, balanceHistoryRequest{
			Address: address,
			Start:   month.Start,
			End:     month.End,
		})
		if err != nil {
			logger.WithError(err).WithField("window", i).Warn("Balance history fetch aborted")
			return nil, apperrors.NewProviderError("subscan", err)
		}

		if window.History == nil {
			window.History = []types.BalanceSnapshot{{Date: month.Start, Balance: "0"}}
		}
		windows = append(windows, *window)
	}

	logger.WithField("windows", len(windows)).Debug("Balance history fetched")
	return windows, nil
}

func (c *SubscanClient) fetchWindow(ctx context.Context, apiURL string, body balanceHistoryRequest) (*types.BalanceWindow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance history: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("balance history API error: status=%d, body=%s", resp.StatusCode, string(raw))
	}

	var envelope balanceHistoryResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse balance history response: %w", err)
	}

	if envelope.Message != types.StatusSuccess {
		return nil, fmt.Errorf("balance history API returned message %q", envelope.Message)
	}
	if envelope.Data == nil {
		envelope.Data = &types.BalanceWindow{Status: types.StatusSuccess}
	}

	return envelope.Data, nil
}
