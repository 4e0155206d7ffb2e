// Package usage tracks per-request token consumption: lock-free counters
// for live dashboards, plus a database backend for history.
package usage

import "time"

// Record is one request's accounting entry.
type Record struct {
	Provider    string
	Model       string
	APIKey      string
	RequestedAt time.Time
	Failed      bool

	InputTokens    int64
	OutputTokens   int64
	ThinkingTokens int64
	CachedTokens   int64
	TotalTokens    int64

	// Estimated marks token counts derived locally rather than reported by
	// the upstream.
	Estimated bool
}

// AggregatedStats summarizes a time period.
type AggregatedStats struct {
	TotalRequests int64 `json:"total_requests"`
	SuccessCount  int64 `json:"success_count"`
	FailureCount  int64 `json:"failure_count"`
	TotalTokens   int64 `json:"total_tokens"`
}

// DailyStats is one day's aggregate.
type DailyStats struct {
	Day      string `json:"day"`
	Requests int64  `json:"requests"`
	Tokens   int64  `json:"tokens"`
}

// ProviderStats aggregates per provider.
type ProviderStats struct {
	Provider     string `json:"provider"`
	Requests     int64  `json:"requests"`
	SuccessCount int64  `json:"success_count"`
	FailureCount int64  `json:"failure_count"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
}

// ModelStats aggregates per model.
type ModelStats struct {
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Requests     int64  `json:"requests"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
}
