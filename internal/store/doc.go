// Package store provides the local usage ledger for kagi-mcp using SQLite.
//
// Every tools/call that reaches execution is written to the tool_calls table
// with its outcome, latency, cache status and the api_balance Kagi reported.
// The usage subcommand reads it back as per-tool statistics.
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (pure Go, no cgo) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Database file locations:
//
//   - Default: ~/.local/share/kagi-mcp/usage.db
//   - Testing: a file under t.TempDir(), or MemoryPath
//
// The ledger is off unless usage.enabled is set.
package store
