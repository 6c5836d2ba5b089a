// Package mcp implements the Model Context Protocol server over stdio.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package speaks JSON-RPC 2.0 over newline-delimited JSON on a pair of byte
// streams, normally the process's stdin and stdout. The tools themselves come
// from a ToolHandler; this package knows nothing about what they do.
//
// # Framing
//
// One JSON value per line, UTF-8. Every outbound message is flushed as soon
// as it is written. Invalid UTF-8, an oversized line or any stream I/O error
// is a *TransportError and ends the server.
//
// # Lifecycle
//
//	uninitialized --initialize--> initialized --shutdown--> shutting_down
//
// Before initialize every request is rejected with -32600. A second
// initialize is rejected the same way. After shutdown no request is legal;
// the server answers shutdown once in-flight work has drained and then Serve
// returns. Notifications never receive a response.
//
// # Tool Discovery
//
//	{"jsonrpc":"2.0","id":1,"method":"tools/list"}
//
// # Tool Execution
//
//	{
//	  "jsonrpc": "2.0",
//	  "id": 2,
//	  "method": "tools/call",
//	  "params": {
//	    "name": "kagi_search_fetch",
//	    "arguments": {"query": "rust", "limit": 5}
//	  }
//	}
//
// # Errors
//
// Three tiers are kept apart:
//
//   - Transport errors end Serve with a *TransportError.
//   - Malformed frames, illegal methods for the current state, unknown
//     methods and malformed tools/call envelopes are JSON-RPC errors.
//   - Everything the tool reports, including an unknown tool name, is a
//     normal result with isError set.
//
// # Concurrency
//
// One goroutine reads frames in order. initialize, shutdown and ping are
// handled inline so state changes are visible to every later frame.
// tools/list and tools/call each run on their own goroutine and are answered
// in completion order; hosts match responses by id.
package mcp
