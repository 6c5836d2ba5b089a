// Package config handles configuration loading for kagi-mcp-server.
//
// # Overview
//
// Configuration is resolved once at startup, in increasing precedence:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML or TOML file
//  3. Environment variables
//  4. CLI flags, applied by the caller after Load
//
// The resulting *Config is read-only for the lifetime of the process.
//
// # Configuration File
//
// The file comes from --config or the KAGI_MCP_CONFIG environment variable.
// The format is chosen by extension: .yaml/.yml use YAML, .toml uses TOML.
// Values may reference environment variables with ${VAR_NAME}:
//
//	kagi:
//	  api_key: "${KAGI_API_KEY}"
//	  summarizer_engine: "cecil"
//	  timeout: "30s"
//	  api_versions:
//	    search: "v0"
//
//	tools:
//	  fastgpt:
//	    enabled: true
//	    cache: true
//	    web_search: true
//	  enrich_news:
//	    enabled: false
//
//	cache:
//	  enabled: true
//	  ttl: "10m"
//	  max_entries: 256
//
//	usage:
//	  enabled: true
//	  database: "~/.local/share/kagi-mcp/usage.db"
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// # Environment Variables
//
//	KAGI_API_KEY                 API key (required)
//	KAGI_SUMMARIZER_ENGINE       cecil, agnes, daphne or muriel
//	KAGI_SEARCH_API_VERSION      per-endpoint API versions
//	KAGI_SUMMARIZER_API_VERSION
//	KAGI_FASTGPT_API_VERSION
//	KAGI_ENRICH_API_VERSION
//	KAGI_<TOOL>_ENABLED          SEARCH, SUMMARIZER, FASTGPT, ENRICH_WEB, ENRICH_NEWS
//	KAGI_FASTGPT_CACHE           FastGPT upstream cache toggle
//	KAGI_FASTGPT_WEB_SEARCH      FastGPT web search toggle
//	KAGI_MCP_CACHE_ENABLED       local response cache
//	KAGI_MCP_USAGE_ENABLED       usage ledger
//	KAGI_MCP_USAGE_DB            usage ledger path
//	KAGI_MCP_OTEL_ENABLED        OpenTelemetry export
//	KAGI_MCP_LOG_LEVEL           debug, info, warn or error
//
// # Duration Parsing
//
// kagi.timeout and cache.ttl use Go's time.ParseDuration syntax.
//
// # Validation
//
// Validate reports the first problem found. A missing API key is fatal at
// startup. An unknown summarizer engine is not: ResolveEngine falls back to
// cecil and the caller logs a warning.
package config
