// Package types provides common type definitions for the treasury tracker.
package types

import "time"

// DateLayout is the calendar-day format used for every date on the wire and in storage
const DateLayout = "2006-01-02"

// ParseDay normalizes a snapshot date (YYYY-MM-DD or an RFC3339 timestamp) to a UTC calendar day
func ParseDay(raw string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// ChainKind identifies which treasury account a balance history belongs to
type ChainKind string

const (
	// ChainNative represents the relay chain treasury account
	ChainNative ChainKind = "native"
	// ChainAssetHub represents the treasury account on the asset hub chain
	ChainAssetHub ChainKind = "assethub"
)

// StatusSuccess is the status string the balance history API uses for a good response
const StatusSuccess = "Success"

// BalanceSnapshot is one dated balance point returned by the balance history API
type BalanceSnapshot struct {
	Date    string `json:"date"`
	Balance string `json:"balance"`
}

// BalanceWindow is the balance history returned for one month window
type BalanceWindow struct {
	History []BalanceSnapshot `json:"history"`
	Status  string            `json:"status"`
}

// DayBalance is the aggregated treasury balance for a single calendar day
type DayBalance struct {
	Date    string `json:"date"`
	Balance string `json:"balance"`
}

// DaySeries is an ascending, gap-free list of day balances
type DaySeries []DayBalance

// Windows converts the series to the one-point-per-window shape the API exposes
func (s DaySeries) Windows() []BalanceWindow {
	windows := make([]BalanceWindow, 0, len(s))
	for _, day := range s {
		windows = append(windows, BalanceWindow{
			History: []BalanceSnapshot{{Date: day.Date, Balance: day.Balance}},
			Status:  StatusSuccess,
		})
	}
	return windows
}

// TreasuryHistoryDoc is one persisted day of treasury history for a network
type TreasuryHistoryDoc struct {
	Network   string    `json:"-"`
	Date      string    `json:"date"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"-"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
