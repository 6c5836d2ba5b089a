// ABOUTME: Usage ledger interface and record types for kagi-mcp persistence
// ABOUTME: Defines CallRecord, per-tool statistics and the UsageStore interface

package store

import (
	"context"
	"time"
)

// Call statuses
const (
	StatusOK        = "ok"         // Tool returned a normal result
	StatusToolError = "tool_error" // Tool returned an isError result
)

// CallRecord is one tools/call that reached the dispatcher's execution stage.
type CallRecord struct {
	ID         string
	ToolName   string
	Status     string // "ok" or "tool_error"
	ErrorClass string // empty on success; auth, rate_limit, not_found, upstream
	Duration   time.Duration
	APIBalance *float64 // remaining Kagi balance reported with the response, if any
	Cached     bool
	CreatedAt  time.Time
}

// UsageFilter narrows statistics queries. Nil fields are not applied.
type UsageFilter struct {
	ToolName *string
	Since    *time.Time
	Until    *time.Time
}

// ToolStats aggregates calls for a single tool.
type ToolStats struct {
	ToolName    string
	Calls       int64
	Errors      int64
	CacheHits   int64
	AvgDuration time.Duration
}

// UsageStats is the aggregate view printed by the usage command.
type UsageStats struct {
	Tools       []ToolStats
	TotalCalls  int64
	TotalErrors int64

	// LatestBalance is the most recent api_balance seen, nil if none was recorded.
	LatestBalance   *float64
	LatestBalanceAt time.Time
}

// UsageStore records tool calls and reports on them.
type UsageStore interface {
	RecordCall(ctx context.Context, call *CallRecord) error
	GetUsageStats(ctx context.Context, filter UsageFilter) (*UsageStats, error)
	ListRecentCalls(ctx context.Context, limit int) ([]*CallRecord, error)
	Close() error
}
