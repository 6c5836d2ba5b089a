// ABOUTME: Request and response types for the Kagi search, summarizer, FastGPT and enrichment APIs
// ABOUTME: Mirrors the JSON envelopes Kagi returns: meta, data and an optional error list

package kagi

import "fmt"

// Engine selects the Universal Summarizer model.
type Engine string

// Summarizer engines.
const (
	EngineCecil  Engine = "cecil"
	EngineAgnes  Engine = "agnes"
	EngineDaphne Engine = "daphne"
	EngineMuriel Engine = "muriel"
)

// DefaultEngine is used when neither the call nor the configuration picks one.
const DefaultEngine = EngineCecil

// Engines lists every summarizer engine in display order.
var Engines = []Engine{EngineCecil, EngineAgnes, EngineDaphne, EngineMuriel}

// ParseEngine returns the engine named by s.
func ParseEngine(s string) (Engine, error) {
	for _, e := range Engines {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown summarizer engine %q", s)
}

// SummaryType selects prose or bullet-point output.
type SummaryType string

// Summary types.
const (
	SummaryTypeSummary  SummaryType = "summary"
	SummaryTypeTakeaway SummaryType = "takeaway"
)

// Meta is the metadata block attached to every Kagi response.
type Meta struct {
	ID         string   `json:"id"`
	Node       string   `json:"node"`
	MS         int      `json:"ms"`
	APIBalance *float64 `json:"api_balance,omitempty"`
}

// Search object types.
const (
	ObjectResult  = 0
	ObjectRelated = 1
)

// SearchObject is one entry of a search or enrichment response. T selects
// between a result (0) and a related-searches list (1).
type SearchObject struct {
	T         int        `json:"t"`
	Rank      int        `json:"rank,omitempty"`
	URL       string     `json:"url,omitempty"`
	Title     string     `json:"title,omitempty"`
	Snippet   string     `json:"snippet,omitempty"`
	Published string     `json:"published,omitempty"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
	List      []string   `json:"list,omitempty"`
}

// Thumbnail is an optional preview image.
type Thumbnail struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// SearchResponse is returned by search and both enrichment endpoints.
type SearchResponse struct {
	Meta Meta           `json:"meta"`
	Data []SearchObject `json:"data"`
}

// Results returns the result rows in upstream order.
func (r *SearchResponse) Results() []SearchObject {
	out := make([]SearchObject, 0, len(r.Data))
	for _, obj := range r.Data {
		if obj.T == ObjectResult {
			out = append(out, obj)
		}
	}
	return out
}

// Related returns the related searches, flattened.
func (r *SearchResponse) Related() []string {
	var out []string
	for _, obj := range r.Data {
		if obj.T == ObjectRelated {
			out = append(out, obj.List...)
		}
	}
	return out
}

// SummarizeRequest targets either a URL or raw text.
type SummarizeRequest struct {
	URL            string      `json:"url,omitempty"`
	Text           string      `json:"text,omitempty"`
	Engine         Engine      `json:"engine,omitempty"`
	SummaryType    SummaryType `json:"summary_type,omitempty"`
	TargetLanguage string      `json:"target_language,omitempty"`
}

// Summary is the summarizer payload.
type Summary struct {
	Output string `json:"output"`
	Tokens int    `json:"tokens"`
}

// SummaryResponse wraps Summary with metadata.
type SummaryResponse struct {
	Meta Meta    `json:"meta"`
	Data Summary `json:"data"`
}

// FastGPTRequest asks FastGPT a question.
type FastGPTRequest struct {
	Query     string `json:"query"`
	Cache     bool   `json:"cache"`
	WebSearch bool   `json:"web_search"`
}

// Reference is a citation attached to a FastGPT answer.
type Reference struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Answer is the FastGPT payload.
type Answer struct {
	Output     string      `json:"output"`
	Tokens     int         `json:"tokens"`
	References []Reference `json:"references"`
}

// AnswerResponse wraps Answer with metadata.
type AnswerResponse struct {
	Meta Meta   `json:"meta"`
	Data Answer `json:"data"`
}

// errorEnvelope is the body Kagi sends on failure.
type errorEnvelope struct {
	Error []struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}
