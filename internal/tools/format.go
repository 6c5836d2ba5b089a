// ABOUTME: Text formatting for Kagi tool results
// ABOUTME: Renders numbered search results, summaries with token counts and FastGPT answers with references

package tools

import (
	"fmt"
	"strings"

	"github.com/2389/kagi-mcp/internal/kagi"
)

const notAvailable = "Not Available"

// FormatSearchResults renders search or enrichment rows under a header naming
// the query. Only result rows are numbered; related searches follow on one
// line. limit > 0 caps the number of rows shown.
func FormatSearchResults(query string, resp *kagi.SearchResponse, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-----\nResults for search query \"%s\":\n-----\n", query)

	results := resp.Results()
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		b.WriteString("No results found.\n")
	}

	for i, r := range results {
		published := r.Published
		if published == "" {
			published = notAvailable
		}
		fmt.Fprintf(&b, "%d: %s\n%s\nPublished Date: %s\n%s\n\n", i+1, r.Title, r.URL, published, r.Snippet)
	}

	if related := resp.Related(); len(related) > 0 {
		fmt.Fprintf(&b, "Related searches: %s\n", strings.Join(related, ", "))
	}

	return b.String()
}

// FormatSummary renders summarizer output followed by the token count.
func FormatSummary(s kagi.Summary) string {
	out := strings.TrimSpace(s.Output)
	if s.Tokens > 0 {
		out += fmt.Sprintf("\n\nTokens: %d", s.Tokens)
	}
	return out
}

// FormatAnswer renders a FastGPT answer followed by its numbered references.
func FormatAnswer(a kagi.Answer) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Output))

	if len(a.References) > 0 {
		b.WriteString("\n\nReferences:\n")
		for i, ref := range a.References {
			fmt.Fprintf(&b, "[%d] %s - %s\n", i+1, ref.Title, ref.URL)
			if snippet := strings.TrimSpace(ref.Snippet); snippet != "" {
				fmt.Fprintf(&b, "    %s\n", snippet)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
