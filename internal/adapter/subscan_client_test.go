package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/treasury-tracker/internal/errors"
)

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 15, 4, 5, 0, time.UTC) }
}

func TestMonthRange(t *testing.T) {
	today := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		monthsAgo int
		want      MonthWindow
	}{
		{0, MonthWindow{Start: "2024-03-01", End: "2024-03-15"}},
		{1, MonthWindow{Start: "2024-02-01", End: "2024-02-29"}},
		{2, MonthWindow{Start: "2024-01-01", End: "2024-01-31"}},
		{3, MonthWindow{Start: "2023-12-01", End: "2023-12-31"}},
		{6, MonthWindow{Start: "2023-09-01", End: "2023-09-30"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MonthRange(today, tt.monthsAgo), "monthsAgo=%d", tt.monthsAgo)
	}
}

type historyHandler struct {
	calls    atomic.Int32
	failAt   int32 // 1-based call that answers with a non-Success message, 0 = never
	mu       sync.Mutex
	requests []balanceHistoryRequest
}

func (h *historyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.calls.Add(1)

	var req balanceHistoryRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if h.failAt != 0 && n == h.failAt {
		_, _ = w.Write([]byte(`{"code":10004,"message":"API rate limit exceeded","data":null}`))
		return
	}
	if req.Start == "2024-01-01" {
		_, _ = w.Write([]byte(`{"code":0,"message":"Success","data":{"history":null,"status":"Success"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"code":0,"message":"Success","data":{"history":[{"date":"` + req.End + `","balance":"100"}],"status":"Success"}}`))
}

func TestFetchBalanceHistory_AllWindows(t *testing.T) {
	h := &historyHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	client := NewSubscanClient("key", 0, time.Second, WithClock(fixedClock(2024, time.March, 15)))
	windows, err := client.FetchBalanceHistory(context.Background(), "addr", srv.URL)
	require.NoError(t, err)

	require.Len(t, windows, HistoryMonths)
	assert.Equal(t, int32(HistoryMonths), h.calls.Load())

	// Newest window first, requests carry the address and the window bounds
	assert.Equal(t, balanceHistoryRequest{Address: "addr", Start: "2024-03-01", End: "2024-03-15"}, h.requests[0])
	assert.Equal(t, "2024-03-15", windows[0].History[0].Date)

	// A null history becomes a single zero point at the window start
	assert.Equal(t, "2024-01-01", windows[2].History[0].Date)
	assert.Equal(t, "0", windows[2].History[0].Balance)
}

func TestFetchBalanceHistory_NonSuccessDiscardsPartialResults(t *testing.T) {
	h := &historyHandler{failAt: 3}
	srv := httptest.NewServer(h)
	defer srv.Close()

	client := NewSubscanClient("", 0, time.Second, WithClock(fixedClock(2024, time.March, 15)))
	windows, err := client.FetchBalanceHistory(context.Background(), "addr", srv.URL)

	require.Error(t, err)
	assert.Nil(t, windows)
	assert.Equal(t, int32(3), h.calls.Load(), "fetch must stop at the failing window")
	assert.Equal(t, apperrors.MsgAPIFetchError, apperrors.Message(err))
}

func TestFetchBalanceHistory_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewSubscanClient("", 0, time.Second)
	windows, err := client.FetchBalanceHistory(context.Background(), "addr", srv.URL)

	require.Error(t, err)
	assert.Nil(t, windows)
	assert.Equal(t, apperrors.CodeProviderError, apperrors.Categorize(err).Code)
}

func TestFetchBalanceHistory_SendsAPIKey(t *testing.T) {
	var gotKey, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"message":"Success","data":{"history":[],"status":"Success"}}`))
	}))
	defer srv.Close()

	client := NewSubscanClient("secret", 0, time.Second)
	_, err := client.FetchBalanceHistory(context.Background(), "addr", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "application/json", gotContentType)
}
