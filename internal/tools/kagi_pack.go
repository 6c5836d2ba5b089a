// ABOUTME: Kagi tool pack: search, summarizer, FastGPT and the two enrichment indexes.
// ABOUTME: Converts validated arguments to typed requests and formats upstream responses.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/kagi-mcp/internal/config"
	"github.com/2389/kagi-mcp/internal/kagi"
	"github.com/2389/kagi-mcp/internal/render"
)

// Tool names.
const (
	ToolSearch     = "kagi_search_fetch"
	ToolSummarizer = "kagi_summarizer"
	ToolFastGPT    = "kagi_fastgpt"
	ToolEnrichWeb  = "kagi_enrich_web"
	ToolEnrichNews = "kagi_enrich_news"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// Upstream is the subset of the Kagi client the pack calls.
type Upstream interface {
	Search(ctx context.Context, query string, limit int) (*kagi.SearchResponse, error)
	Summarize(ctx context.Context, req kagi.SummarizeRequest) (*kagi.SummaryResponse, error)
	FastGPT(ctx context.Context, req kagi.FastGPTRequest) (*kagi.AnswerResponse, error)
	EnrichWeb(ctx context.Context, query string) (*kagi.SearchResponse, error)
	EnrichNews(ctx context.Context, query string) (*kagi.SearchResponse, error)
}

var _ Upstream = (*kagi.Client)(nil)

// SearchArgs are the arguments of kagi_search_fetch.
type SearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SummarizeArgs are the arguments of kagi_summarizer.
type SummarizeArgs struct {
	URL            string `json:"url"`
	Text           string `json:"text"`
	SummaryType    string `json:"summary_type"`
	Engine         string `json:"engine"`
	TargetLanguage string `json:"target_language"`
}

// QueryArgs are the arguments of kagi_fastgpt and both enrichment tools.
type QueryArgs struct {
	Query string `json:"query"`
}

// KagiPack builds the pack of enabled Kagi tools. Disabled tools are left
// out entirely so they are neither listed nor callable.
func KagiPack(client Upstream, cfg *config.Config) *Pack {
	engine, _ := cfg.ResolveEngine()
	h := &kagiHandlers{
		client:  client,
		engine:  engine,
		fastgpt: cfg.Tools.FastGPT,
		plain:   cfg.Output.Format == config.FormatPlain,
	}

	var tools []*Tool
	if cfg.Tools.Search.Enabled {
		tools = append(tools, &Tool{
			Definition: Definition{
				Name:            ToolSearch,
				Description:     "Fetch web results for a query using the Kagi Search API. Use for general search and when the user explicitly asks to 'fetch' results or information. Results are numbered so the user can refer to a specific result.",
				InputSchemaJSON: `{"type":"object","properties":{"query":{"type":"string","minLength":1,"description":"A concise, keyword-focused search query. Include essential context so the query stands alone."},"limit":{"type":"integer","minimum":1,"maximum":100,"default":10,"description":"Maximum number of results to return."}},"required":["query"]}`,
			},
			Handler: h.Search,
		})
	}
	if cfg.Tools.Summarizer.Enabled {
		tools = append(tools, &Tool{
			Definition: Definition{
				Name:            ToolSummarizer,
				Description:     "Summarize a URL or a block of text using the Kagi Universal Summarizer. The summarizer handles any document type: web pages, PDFs, videos, audio and more. Provide exactly one of url or text.",
				InputSchemaJSON: `{"type":"object","properties":{"url":{"type":"string","description":"A URL to a document to summarize."},"text":{"type":"string","description":"Raw text to summarize instead of a URL."},"summary_type":{"type":"string","enum":["summary","takeaway"],"default":"summary","description":"'summary' for paragraph prose, 'takeaway' for a bulleted list of key points."},"engine":{"type":"string","enum":["cecil","agnes","daphne","muriel"],"description":"Summarization engine. Defaults to the configured engine."},"target_language":{"type":"string","description":"Language code for the output, e.g. EN or DE. Defaults to the document language."}}}`,
			},
			Handler: h.Summarize,
		})
	}
	if cfg.Tools.FastGPT.Enabled {
		tools = append(tools, &Tool{
			Definition: Definition{
				Name:            ToolFastGPT,
				Description:     "Answer a question with Kagi FastGPT. The answer is grounded in live web search and lists the references it cites.",
				InputSchemaJSON: `{"type":"object","properties":{"query":{"type":"string","minLength":1,"description":"The question to answer."}},"required":["query"]}`,
			},
			Handler: h.FastGPT,
			NoCache: !cfg.Tools.FastGPT.Cache,
		})
	}
	if cfg.Tools.EnrichWeb.Enabled {
		tools = append(tools, &Tool{
			Definition: Definition{
				Name:            ToolEnrichWeb,
				Description:     "Search Kagi's Teclis index of non-commercial 'small web' sites. Useful for personal blogs, forums and independent sources that mainstream results bury.",
				InputSchemaJSON: `{"type":"object","properties":{"query":{"type":"string","minLength":1,"description":"The search query."}},"required":["query"]}`,
			},
			Handler: h.EnrichWeb,
		})
	}
	if cfg.Tools.EnrichNews.Enabled {
		tools = append(tools, &Tool{
			Definition: Definition{
				Name:            ToolEnrichNews,
				Description:     "Search Kagi's TinyGem index of non-mainstream news and discussion sources.",
				InputSchemaJSON: `{"type":"object","properties":{"query":{"type":"string","minLength":1,"description":"The search query."}},"required":["query"]}`,
			},
			Handler: h.EnrichNews,
		})
	}

	return &Pack{ID: "kagi", Tools: tools}
}

type kagiHandlers struct {
	client  Upstream
	engine  kagi.Engine
	fastgpt config.FastGPTConfig
	plain   bool
}

// decodeArgs converts validated JSON arguments into a typed struct.
func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func requireQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query must not be empty", ErrInvalidArguments)
	}
	return query, nil
}

// text applies the configured output format to markdown produced upstream.
func (h *kagiHandlers) text(md string) string {
	if h.plain {
		return render.Plain(md)
	}
	return md
}

// Search handler

func (h *kagiHandlers) Search(ctx context.Context, args json.RawMessage) (*Output, error) {
	var in SearchArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	query, err := requireQuery(in.Query)
	if err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArguments, MaxSearchLimit)
	}

	resp, err := h.client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &Output{Text: FormatSearchResults(query, resp, limit), Meta: resp.Meta}, nil
}

// Summarizer handler

func (h *kagiHandlers) Summarize(ctx context.Context, args json.RawMessage) (*Output, error) {
	var in SummarizeArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	hasURL := strings.TrimSpace(in.URL) != ""
	hasText := strings.TrimSpace(in.Text) != ""
	switch {
	case !hasURL && !hasText:
		return nil, fmt.Errorf("%w: missing summarization target: provide url or text", ErrInvalidArguments)
	case hasURL && hasText:
		return nil, fmt.Errorf("%w: provide only one of url or text", ErrInvalidArguments)
	}

	req := kagi.SummarizeRequest{
		URL:            strings.TrimSpace(in.URL),
		Text:           in.Text,
		Engine:         h.engine,
		SummaryType:    kagi.SummaryTypeSummary,
		TargetLanguage: in.TargetLanguage,
	}
	if in.Engine != "" {
		engine, err := kagi.ParseEngine(in.Engine)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		req.Engine = engine
	}
	if in.SummaryType != "" {
		req.SummaryType = kagi.SummaryType(in.SummaryType)
	}

	resp, err := h.client.Summarize(ctx, req)
	if err != nil {
		return nil, err
	}
	summary := resp.Data
	summary.Output = h.text(summary.Output)
	return &Output{Text: FormatSummary(summary), Meta: resp.Meta}, nil
}

// FastGPT handler

func (h *kagiHandlers) FastGPT(ctx context.Context, args json.RawMessage) (*Output, error) {
	var in QueryArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	query, err := requireQuery(in.Query)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.FastGPT(ctx, kagi.FastGPTRequest{
		Query:     query,
		Cache:     h.fastgpt.Cache,
		WebSearch: h.fastgpt.WebSearch,
	})
	if err != nil {
		return nil, err
	}
	answer := resp.Data
	answer.Output = h.text(answer.Output)
	return &Output{Text: FormatAnswer(answer), Meta: resp.Meta}, nil
}

// Enrichment handlers

func (h *kagiHandlers) EnrichWeb(ctx context.Context, args json.RawMessage) (*Output, error) {
	return h.enrich(ctx, args, h.client.EnrichWeb)
}

func (h *kagiHandlers) EnrichNews(ctx context.Context, args json.RawMessage) (*Output, error) {
	return h.enrich(ctx, args, h.client.EnrichNews)
}

func (h *kagiHandlers) enrich(ctx context.Context, args json.RawMessage, call func(context.Context, string) (*kagi.SearchResponse, error)) (*Output, error) {
	var in QueryArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	query, err := requireQuery(in.Query)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Output{Text: FormatSearchResults(query, resp, 0), Meta: resp.Meta}, nil
}
