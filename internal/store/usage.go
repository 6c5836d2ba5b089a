// ABOUTME: SQLite implementation of the tool call ledger
// ABOUTME: Records each tools/call and aggregates per-tool counts, latency and the latest API balance

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// RecordCall stores a tool call record.
func (s *SQLiteStore) RecordCall(ctx context.Context, call *CallRecord) error {
	query := `
		INSERT INTO tool_calls (
			id, tool_name, status, error_class, duration_ms, api_balance, cached, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if call.Cached {
		cached = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		call.ID,
		call.ToolName,
		call.Status,
		nullString(call.ErrorClass),
		call.Duration.Milliseconds(),
		nullFloat(call.APIBalance),
		cached,
		call.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", call.ID,
		"tool_name", call.ToolName,
		"status", call.Status,
		"cached", call.Cached,
	)
	return nil
}

// GetUsageStats returns per-tool statistics with optional filters, plus the
// most recently reported API balance.
func (s *SQLiteStore) GetUsageStats(ctx context.Context, filter UsageFilter) (*UsageStats, error) {
	where, args := filterClause(filter)

	query := `
		SELECT
			tool_name,
			COUNT(*) as calls,
			COALESCE(SUM(CASE WHEN status = 'tool_error' THEN 1 ELSE 0 END), 0) as errors,
			COALESCE(SUM(cached), 0) as cache_hits,
			COALESCE(AVG(duration_ms), 0) as avg_ms
		FROM tool_calls
		WHERE 1=1` + where + `
		GROUP BY tool_name
		ORDER BY tool_name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &UsageStats{}
	for rows.Next() {
		var ts ToolStats
		var avgMS float64
		if err := rows.Scan(&ts.ToolName, &ts.Calls, &ts.Errors, &ts.CacheHits, &avgMS); err != nil {
			return nil, fmt.Errorf("scanning usage stats row: %w", err)
		}
		ts.AvgDuration = time.Duration(avgMS * float64(time.Millisecond))
		stats.Tools = append(stats.Tools, ts)
		stats.TotalCalls += ts.Calls
		stats.TotalErrors += ts.Errors
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage stats rows: %w", err)
	}

	balanceQuery := `
		SELECT api_balance, created_at
		FROM tool_calls
		WHERE api_balance IS NOT NULL` + where + `
		ORDER BY created_at DESC
		LIMIT 1
	`

	var balance float64
	var createdAtStr string
	err = s.db.QueryRowContext(ctx, balanceQuery, args...).Scan(&balance, &createdAtStr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("querying latest balance: %w", err)
	default:
		stats.LatestBalance = &balance
		stats.LatestBalanceAt, err = time.Parse(timeLayout, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
	}

	return stats, nil
}

// ListRecentCalls returns up to limit calls, newest first.
func (s *SQLiteStore) ListRecentCalls(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tool_name, status, error_class, duration_ms, api_balance, cached, created_at
		FROM tool_calls
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []*CallRecord
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call rows: %w", err)
	}

	return calls, nil
}

// filterClause renders the optional filters as AND conditions.
func filterClause(filter UsageFilter) (string, []any) {
	var clause string
	args := []any{}

	if filter.ToolName != nil {
		clause += " AND tool_name = ?"
		args = append(args, *filter.ToolName)
	}
	if filter.Since != nil {
		clause += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	if filter.Until != nil {
		clause += " AND created_at < ?"
		args = append(args, filter.Until.UTC().Format(timeLayout))
	}
	return clause, args
}

// scanCall scans a single tool_calls row into a CallRecord.
func scanCall(rows *sql.Rows) (*CallRecord, error) {
	var call CallRecord
	var errorClass sql.NullString
	var balance sql.NullFloat64
	var durationMS int64
	var cached int
	var createdAtStr string

	err := rows.Scan(
		&call.ID,
		&call.ToolName,
		&call.Status,
		&errorClass,
		&durationMS,
		&balance,
		&cached,
		&createdAtStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning call row: %w", err)
	}

	if errorClass.Valid {
		call.ErrorClass = errorClass.String
	}
	if balance.Valid {
		b := balance.Float64
		call.APIBalance = &b
	}
	call.Duration = time.Duration(durationMS) * time.Millisecond
	call.Cached = cached != 0

	call.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &call, nil
}

// Ensure SQLiteStore implements UsageStore interface.
var _ UsageStore = (*SQLiteStore)(nil)
