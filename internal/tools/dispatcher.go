// ABOUTME: Executes tools/call requests against the registry.
// ABOUTME: Validates arguments, serves cached results, classifies upstream failures and records usage.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/kagi-mcp/internal/cache"
	"github.com/2389/kagi-mcp/internal/kagi"
	"github.com/2389/kagi-mcp/internal/mcp"
	"github.com/2389/kagi-mcp/internal/store"
)

// Error classes recorded in the usage ledger and logs.
const (
	ClassAuth             = "auth"
	ClassRateLimit        = "rate_limit"
	ClassNotFound         = "not_found"
	ClassUpstream         = "upstream"
	ClassInvalidArguments = "invalid_arguments"
)

// Recorder persists the outcome of each executed tool call.
type Recorder interface {
	RecordCall(ctx context.Context, call *store.CallRecord) error
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	// Cache, when set, serves repeated identical calls.
	Cache *cache.Cache
	// Recorder, when set, receives one record per executed call.
	Recorder Recorder
	// Secret is scrubbed from every error message returned to the host.
	Secret string
}

// Dispatcher implements mcp.ToolHandler on top of a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	cache    *cache.Cache
	recorder Recorder
	secret   string
}

// NewDispatcher creates a Dispatcher with the given configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		logger:   logger.With("component", "tools"),
		cache:    cfg.Cache,
		recorder: cfg.Recorder,
		secret:   cfg.Secret,
	}
}

var _ mcp.ToolHandler = (*Dispatcher)(nil)

// ListTools returns the registry in registration order.
func (d *Dispatcher) ListTools() []mcp.MCPToolInfo {
	return d.registry.ListTools()
}

// CallTool runs one tool. Every failure is returned as an isError result.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args json.RawMessage) mcp.MCPCallToolResult {
	tool := d.registry.Get(name)
	if tool == nil {
		d.logger.Debug("tool not found in registry", "tool_name", name)
		return mcp.ErrorResult(fmt.Sprintf("%v: %s (available tools: %s)",
			ErrUnknownTool, name, strings.Join(d.registry.Names(), ", ")))
	}

	if err := tool.Validate(args); err != nil {
		d.logger.Debug("tool arguments rejected", "tool_name", name, "error", err)
		return mcp.ErrorResult(d.redact(err.Error()))
	}

	requestID := uuid.New().String()
	start := time.Now()

	useCache := d.cache != nil && !tool.NoCache
	var key string
	if useCache {
		key = cache.Key(name, args)
		if text, ok := d.cache.Get(key); ok {
			d.logger.Debug("served from cache", "tool_name", name, "request_id", requestID)
			d.record(ctx, &store.CallRecord{
				ID:        requestID,
				ToolName:  name,
				Status:    store.StatusOK,
				Duration:  time.Since(start),
				Cached:    true,
				CreatedAt: start,
			})
			return mcp.TextResult(text)
		}
	}

	d.logger.Info("→ dispatching to kagi",
		"tool_name", name,
		"request_id", requestID,
	)

	out, err := tool.Handler(ctx, args)
	duration := time.Since(start)

	if err != nil {
		class, message := d.classify(err)
		if class == ClassInvalidArguments {
			// Rejected before reaching kagi: not a ledger entry.
			d.logger.Debug("tool arguments rejected", "tool_name", name, "request_id", requestID, "error", message)
			return mcp.ErrorResult(message)
		}
		d.logger.Warn("kagi tool error",
			"tool_name", name,
			"request_id", requestID,
			"error_class", class,
			"duration", duration,
			"error", message,
		)
		d.record(ctx, &store.CallRecord{
			ID:         requestID,
			ToolName:   name,
			Status:     store.StatusToolError,
			ErrorClass: class,
			Duration:   duration,
			CreatedAt:  start,
		})
		return mcp.ErrorResult(message)
	}

	d.logger.Info("← kagi responded",
		"tool_name", name,
		"request_id", requestID,
		"duration", duration,
		"upstream_ms", out.Meta.MS,
	)

	if useCache {
		d.cache.Set(key, out.Text)
	}
	d.record(ctx, &store.CallRecord{
		ID:         requestID,
		ToolName:   name,
		Status:     store.StatusOK,
		Duration:   duration,
		APIBalance: out.Meta.APIBalance,
		CreatedAt:  start,
	})

	return mcp.TextResult(out.Text)
}

// classify maps an error onto a ledger class and a host-facing message.
func (d *Dispatcher) classify(err error) (string, string) {
	var class string
	message := err.Error()

	switch {
	case errors.Is(err, ErrInvalidArguments):
		class = ClassInvalidArguments
	case errors.Is(err, kagi.ErrAuth):
		class = ClassAuth
	case errors.Is(err, kagi.ErrRateLimited):
		class = ClassRateLimit
	case errors.Is(err, kagi.ErrNotFound):
		class = ClassNotFound
	case errors.Is(err, kagi.ErrUpstream):
		class = ClassUpstream
	default:
		class = ClassUpstream
		message = fmt.Sprintf("%v: %v", kagi.ErrUpstream, err)
	}

	return class, d.redact(message)
}

func (d *Dispatcher) redact(s string) string {
	return kagi.Redact(s, d.secret)
}

// record writes a ledger entry. Ledger failures never affect the call.
func (d *Dispatcher) record(ctx context.Context, call *store.CallRecord) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordCall(ctx, call); err != nil {
		d.logger.Warn("failed to record tool call",
			"tool_name", call.ToolName,
			"request_id", call.ID,
			"error", err,
		)
	}
}
