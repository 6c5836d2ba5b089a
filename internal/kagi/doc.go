// Package kagi is a small client for the Kagi API.
//
// # Endpoints
//
//   - GET  {base}/{version}/search?q=&limit=   web search
//   - POST {base}/{version}/summarize          Universal Summarizer (url or text)
//   - POST {base}/{version}/fastgpt            FastGPT answers with references
//   - GET  {base}/{version}/enrich/web?q=      Teclis "small web" index
//   - GET  {base}/{version}/enrich/news?q=     TinyGem news index
//
// Each endpoint family has its own version, defaulting to "v0".
// Requests authenticate with "Authorization: Bot <key>".
//
// # Errors
//
// Every failure is an *APIError whose Kind is one of ErrAuth, ErrRateLimited,
// ErrNotFound or ErrUpstream, so callers classify with errors.Is:
//
//	if errors.Is(err, kagi.ErrAuth) { ... }
//
// Messages are scrubbed of the API key before the error is built. Timeouts
// and transport failures are ErrUpstream.
//
// The client never retries.
package kagi
