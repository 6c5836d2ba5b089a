// Package render converts markdown returned by the summarizer and FastGPT into
// plain text for hosts that display tool output verbatim.
package render
