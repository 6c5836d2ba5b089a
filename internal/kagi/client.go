// ABOUTME: HTTP client for the Kagi API: search, summarizer, FastGPT and enrichment
// ABOUTME: Enforces a per-request timeout and optional rate limit; errors are classified and redacted

package kagi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// Defaults applied by NewClient.
const (
	DefaultBaseURL    = "https://kagi.com/api"
	DefaultAPIVersion = "v0"
	DefaultTimeout    = 30 * time.Second
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 << 20

// Versions selects the API version per endpoint family.
type Versions struct {
	Search     string
	Summarizer string
	FastGPT    string
	Enrich     string
}

// Options configures a Client.
type Options struct {
	APIKey   string
	BaseURL  string
	Versions Versions
	// Timeout bounds each request, including time spent waiting on the limiter.
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	UserAgent string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the Kagi API. It is safe for concurrent use.
type Client struct {
	apiKey    string
	baseURL   string
	versions  Versions
	timeout   time.Duration
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "kagi-mcp-server"
	}

	c := &Client{
		apiKey:    opts.APIKey,
		baseURL:   baseURL,
		versions:  withDefaultVersions(opts.Versions),
		timeout:   timeout,
		userAgent: userAgent,
		http:      httpClient,
		logger:    logger.With("component", "kagi"),
	}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return c, nil
}

func withDefaultVersions(v Versions) Versions {
	orDefault := func(s string) string {
		if s == "" {
			return DefaultAPIVersion
		}
		return s
	}
	return Versions{
		Search:     orDefault(v.Search),
		Summarizer: orDefault(v.Summarizer),
		FastGPT:    orDefault(v.FastGPT),
		Enrich:     orDefault(v.Enrich),
	}
}

// Search runs a web search and returns up to limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp SearchResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.versions.Search, "/search", params), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Summarize summarizes a URL or a block of text.
func (c *Client) Summarize(ctx context.Context, req SummarizeRequest) (*SummaryResponse, error) {
	if (req.URL == "") == (req.Text == "") {
		return nil, &APIError{Kind: ErrNotFound, Message: "exactly one of url or text must be set"}
	}

	var resp SummaryResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(c.versions.Summarizer, "/summarize", nil), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FastGPT answers a question with web-grounded references.
func (c *Client) FastGPT(ctx context.Context, req FastGPTRequest) (*AnswerResponse, error) {
	var resp AnswerResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(c.versions.FastGPT, "/fastgpt", nil), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnrichWeb queries the Teclis index of non-commercial "small web" content.
func (c *Client) EnrichWeb(ctx context.Context, query string) (*SearchResponse, error) {
	return c.enrich(ctx, "web", query)
}

// EnrichNews queries the TinyGem index of non-mainstream news and discussions.
func (c *Client) EnrichNews(ctx context.Context, query string) (*SearchResponse, error) {
	return c.enrich(ctx, "news", query)
}

func (c *Client) enrich(ctx context.Context, kind, query string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)

	var resp SearchResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.versions.Enrich, "/enrich/"+kind, params), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) endpoint(version, path string, params url.Values) string {
	u := c.baseURL + "/" + version + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do performs one request. There are no retries.
func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.transportError("waiting for rate limiter", err)
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &APIError{Kind: ErrUpstream, Message: "encoding request: " + err.Error(), cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return c.transportError("creating request", err)
	}
	req.Header.Set("Authorization", "Bot "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError("sending request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.transportError("reading response", err)
	}

	c.logger.Debug("kagi request",
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp.StatusCode, data)
	}

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Error) > 0 {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    env.Error[0].Code,
			Message: c.redact(env.Error[0].Msg),
			Kind:    ErrUpstream,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			Status:  resp.StatusCode,
			Kind:    ErrUpstream,
			Message: "decoding response: " + c.redact(err.Error()),
			cause:   err,
		}
	}
	return nil
}

func (c *Client) statusError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Kind: classifyStatus(status)}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		msgs := make([]string, 0, len(env.Error))
		for _, e := range env.Error {
			msgs = append(msgs, e.Msg)
		}
		apiErr.Code = env.Error[0].Code
		apiErr.Message = c.redact(strings.Join(msgs, "; "))
		return apiErr
	}

	msg := truncateRunes(c.redact(strings.TrimSpace(string(body))), maxErrorBody)
	if msg == "" {
		msg = http.StatusText(status)
	}
	apiErr.Message = msg
	return apiErr
}

// maxErrorBody bounds how much of a non-JSON error body reaches the host.
const maxErrorBody = 512

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (c *Client) transportError(op string, err error) *APIError {
	msg := op + ": " + err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s: request timed out after %s", op, c.timeout)
	}
	return &APIError{Kind: ErrUpstream, Message: c.redact(msg), cause: err}
}

func (c *Client) redact(s string) string {
	return Redact(s, c.apiKey)
}
