// Package tools holds the tool registry and the dispatcher that serves
// tools/call for the MCP server.
//
// # Registry
//
// Tools are grouped into packs and registered once at startup. Each tool
// carries its JSON Schema as text; the schema is compiled with jsonschema-go
// when the pack is registered, and a name that is already taken fails with
// ErrToolCollision. After startup the registry is only read.
//
// # Kagi Pack
//
// KagiPack builds the five Kagi tools from the resolved configuration:
//
//   - kagi_search_fetch: web search (query, limit)
//   - kagi_summarizer: Universal Summarizer (url or text, summary_type, engine, target_language)
//   - kagi_fastgpt: answers with references (query)
//   - kagi_enrich_web: small web index (query)
//   - kagi_enrich_news: news index (query)
//
// Tools disabled in configuration are not built.
//
// # Error Handling
//
// The dispatcher never returns a protocol error. Unknown tools, schema
// violations and upstream failures all become results with isError set.
// Upstream failures are classified as auth, rate_limit, not_found or upstream,
// and the configured API key is scrubbed from the message.
package tools
