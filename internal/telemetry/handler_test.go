// ABOUTME: Tests for the instrumented tool handler
// ABOUTME: Uses in-memory span and metric readers to check spans, counters and histograms

package telemetry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/2389/kagi-mcp/internal/mcp"
)

type stubHandler struct {
	tools  []mcp.MCPToolInfo
	result mcp.MCPCallToolResult
	calls  int
}

func (s *stubHandler) ListTools() []mcp.MCPToolInfo { return s.tools }

func (s *stubHandler) CallTool(_ context.Context, _ string, _ json.RawMessage) mcp.MCPCallToolResult {
	s.calls++
	return s.result
}

type testProviders struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	inst   *Instruments
}

func setupProviders(t *testing.T) *testProviders {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	inst, err := NewInstruments(tp, mp)
	require.NoError(t, err)
	return &testProviders{spans: spans, reader: reader, inst: inst}
}

func (p *testProviders) collect(t *testing.T) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, p.reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func attrValue(set attribute.Set, key attribute.Key) string {
	v, ok := set.Value(key)
	if !ok {
		return ""
	}
	return v.AsString()
}

func TestObservedHandler_ListToolsDelegates(t *testing.T) {
	inner := &stubHandler{tools: []mcp.MCPToolInfo{{Name: "kagi_search_fetch"}}}
	h := WrapHandler(inner, setupProviders(t).inst)

	assert.Equal(t, inner.tools, h.ListTools())
}

func TestObservedHandler_SuccessfulCall(t *testing.T) {
	p := setupProviders(t)
	inner := &stubHandler{result: mcp.TextResult("five results")}
	h := WrapHandler(inner, p.inst)

	result := h.CallTool(context.Background(), "kagi_search_fetch", json.RawMessage(`{"query":"go"}`))

	assert.Equal(t, inner.result, result)
	assert.Equal(t, 1, inner.calls)

	ended := p.spans.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "tools/call", span.Name())
	assert.Equal(t, codes.Unset, span.Status().Code)

	attrs := attribute.NewSet(span.Attributes()...)
	assert.Equal(t, "kagi_search_fetch", attrValue(attrs, AttrToolName))
	assert.Equal(t, StatusOK, attrValue(attrs, AttrToolStatus))
	v, ok := attrs.Value(AttrToolResultLength)
	require.True(t, ok)
	assert.Equal(t, int64(len("five results")), v.AsInt64())

	metrics := p.collect(t)

	calls, ok := metrics["mcp.tool.calls"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, calls.DataPoints, 1)
	assert.Equal(t, int64(1), calls.DataPoints[0].Value)
	assert.Equal(t, "kagi_search_fetch", attrValue(calls.DataPoints[0].Attributes, AttrToolName))
	assert.Equal(t, StatusOK, attrValue(calls.DataPoints[0].Attributes, AttrToolStatus))

	duration, ok := metrics["mcp.tool.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)
}

func TestObservedHandler_ToolErrorMarksSpan(t *testing.T) {
	p := setupProviders(t)
	inner := &stubHandler{result: mcp.ErrorResult("authentication failed: kagi returned status 401")}
	h := WrapHandler(inner, p.inst)

	result := h.CallTool(context.Background(), "kagi_fastgpt", json.RawMessage(`{"query":"why"}`))
	assert.True(t, result.IsError)

	ended := p.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Status().Description, "authentication failed")

	attrs := attribute.NewSet(ended[0].Attributes()...)
	assert.Equal(t, StatusToolError, attrValue(attrs, AttrToolStatus))

	calls := p.collect(t)["mcp.tool.calls"].Data.(metricdata.Sum[int64])
	require.Len(t, calls.DataPoints, 1)
	assert.Equal(t, StatusToolError, attrValue(calls.DataPoints[0].Attributes, AttrToolStatus))
}

func TestObservedHandler_CountsPerToolAndStatus(t *testing.T) {
	p := setupProviders(t)
	ok := WrapHandler(&stubHandler{result: mcp.TextResult("ok")}, p.inst)
	failing := WrapHandler(&stubHandler{result: mcp.ErrorResult("boom")}, p.inst)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok.CallTool(ctx, "kagi_search_fetch", nil)
	}
	failing.CallTool(ctx, "kagi_search_fetch", nil)
	ok.CallTool(ctx, "kagi_enrich_web", nil)

	calls := p.collect(t)["mcp.tool.calls"].Data.(metricdata.Sum[int64])

	got := make(map[string]int64)
	for _, dp := range calls.DataPoints {
		got[attrValue(dp.Attributes, AttrToolName)+"/"+attrValue(dp.Attributes, AttrToolStatus)] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		"kagi_search_fetch/ok":         3,
		"kagi_search_fetch/tool_error": 1,
		"kagi_enrich_web/ok":           1,
	}, got)
	assert.Len(t, p.spans.Ended(), 5)
}

func TestObservedHandler_NoopProviders(t *testing.T) {
	inst, err := NewInstruments(tracenoop.NewTracerProvider(), noop.NewMeterProvider())
	require.NoError(t, err)

	h := WrapHandler(&stubHandler{result: mcp.TextResult("fine")}, inst)
	result := h.CallTool(context.Background(), "kagi_summarizer", json.RawMessage(`{"url":"https://go.dev"}`))
	assert.False(t, result.IsError)
	assert.Equal(t, "fine", result.Content[0].Text)
}
