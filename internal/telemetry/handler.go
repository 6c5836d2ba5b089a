// ABOUTME: Instrumented mcp.ToolHandler wrapper
// ABOUTME: Emits a span, a call counter and a duration histogram for every tools/call

package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/kagi-mcp/internal/mcp"
)

// Attribute keys for tool spans and metrics.
var (
	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")
)

// Tool call statuses.
const (
	StatusOK        = "ok"
	StatusToolError = "tool_error"
)

// ObservedHandler wraps an mcp.ToolHandler with OTEL instrumentation.
type ObservedHandler struct {
	inner mcp.ToolHandler
	inst  *Instruments
}

var _ mcp.ToolHandler = (*ObservedHandler)(nil)

// WrapHandler returns an instrumented handler.
func WrapHandler(inner mcp.ToolHandler, inst *Instruments) *ObservedHandler {
	return &ObservedHandler{inner: inner, inst: inst}
}

// ListTools delegates without instrumentation.
func (o *ObservedHandler) ListTools() []mcp.MCPToolInfo {
	return o.inner.ListTools()
}

// CallTool runs the inner handler inside a "tools/call" span.
func (o *ObservedHandler) CallTool(ctx context.Context, name string, args json.RawMessage) mcp.MCPCallToolResult {
	ctx, span := o.inst.Tracer.Start(ctx, "tools/call",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(AttrToolName.String(name)),
	)
	defer span.End()
	start := time.Now()

	result := o.inner.CallTool(ctx, name, args)

	durationMs := float64(time.Since(start).Microseconds()) / 1000
	status := StatusOK
	if result.IsError {
		status = StatusToolError
		span.SetStatus(codes.Error, firstText(result))
	}

	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolResultLength.Int(len(firstText(result))),
	)

	o.inst.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(name),
		AttrToolStatus.String(status),
	))
	o.inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrToolName.String(name),
		AttrToolStatus.String(status),
	))

	return result
}

func firstText(result mcp.MCPCallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	return result.Content[0].Text
}
