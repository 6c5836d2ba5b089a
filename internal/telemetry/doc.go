// Package telemetry provides optional OpenTelemetry instrumentation.
//
// Init installs OTLP HTTP exporters configured from the standard OTEL_*
// environment variables. WrapHandler decorates the tool dispatcher so each
// tools/call produces a span and updates the mcp.tool.calls counter and the
// mcp.tool.duration histogram. Nothing here runs unless telemetry is enabled.
package telemetry
