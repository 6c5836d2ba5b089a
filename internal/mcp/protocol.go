// ABOUTME: JSON-RPC 2.0 and MCP message types plus the request/response codec
// ABOUTME: Decoding classifies parse vs invalid-request failures; encoding never fails

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-RPC 2.0 types

// JSONRPCRequest represents a parsed JSON-RPC 2.0 request or notification.
// ID holds the raw id token exactly as it appeared on the wire and is empty
// for notifications.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carried no id.
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0
}

// JSONRPCResponse represents a JSON-RPC 2.0 response. Exactly one of Result
// and Error is emitted on the wire; Error wins if both are set.
type JSONRPCResponse struct {
	ID     json.RawMessage
	Result json.RawMessage
	Error  *JSONRPCError
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// NewError builds a JSON-RPC error object.
func NewError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// MCP-specific types

// Implementation names a client or server in the initialize handshake.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams are the params for initialize.
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      Implementation  `json:"clientInfo"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ServerCapabilities advertises what the server supports.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call. IsError is always emitted
// so hosts can tell a tool failure from a success without guessing.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult wraps text as a successful tool result.
func TextResult(text string) MCPCallToolResult {
	return MCPCallToolResult{Content: []MCPContent{{Type: "text", Text: text}}}
}

// ErrorResult wraps a message as a tool-level error result.
func ErrorResult(message string) MCPCallToolResult {
	return MCPCallToolResult{Content: []MCPContent{{Type: "text", Text: message}}, IsError: true}
}

// Codec

// DecodeError is returned by DecodeRequest. ID is the request id when it
// could be recovered, otherwise empty (encoded as null).
type DecodeError struct {
	ID  json.RawMessage
	Err *JSONRPCError
}

func (e *DecodeError) Error() string {
	return e.Err.Error()
}

// DecodeRequest parses one frame into a request.
//
// Not valid JSON yields JSONRPCParseError. Valid JSON that is not a single
// request object, lacks jsonrpc "2.0", lacks a method, or carries an id that
// is neither a string nor a number yields JSONRPCInvalidRequest.
func DecodeRequest(frame []byte) (JSONRPCRequest, *DecodeError) {
	frame = bytes.TrimSpace(frame)
	if !json.Valid(frame) {
		return JSONRPCRequest{}, &DecodeError{Err: NewError(JSONRPCParseError, "parse error: invalid JSON")}
	}
	if frame[0] == '[' {
		return JSONRPCRequest{}, &DecodeError{Err: NewError(JSONRPCInvalidRequest, "batch requests are not supported")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil || fields == nil {
		return JSONRPCRequest{}, &DecodeError{Err: NewError(JSONRPCInvalidRequest, "request must be a JSON object")}
	}

	var req JSONRPCRequest
	if id, ok := fields["id"]; ok {
		if !isValidID(id) {
			return JSONRPCRequest{}, &DecodeError{Err: NewError(JSONRPCInvalidRequest, "id must be a string or a number")}
		}
		req.ID = id
	}

	raw, ok := fields["jsonrpc"]
	if !ok || json.Unmarshal(raw, &req.JSONRPC) != nil || req.JSONRPC != "2.0" {
		return JSONRPCRequest{}, &DecodeError{ID: req.ID, Err: NewError(JSONRPCInvalidRequest, `invalid request: jsonrpc must be "2.0"`)}
	}

	raw, ok = fields["method"]
	if !ok || json.Unmarshal(raw, &req.Method) != nil || req.Method == "" {
		return JSONRPCRequest{}, &DecodeError{ID: req.ID, Err: NewError(JSONRPCInvalidRequest, "invalid request: method is required")}
	}

	if params, ok := fields["params"]; ok && !bytes.Equal(params, []byte("null")) {
		req.Params = params
	}

	return req, nil
}

// isValidID accepts JSON strings and numbers. null is rejected: MCP requires
// requests to carry a usable id.
func isValidID(id json.RawMessage) bool {
	if len(id) == 0 {
		return false
	}
	switch c := id[0]; {
	case c == '"':
		return true
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	default:
		return false
	}
}

// NewResultResponse builds a success response. A result that cannot be
// marshaled turns into an internal error response.
func NewResultResponse(id json.RawMessage, result any) JSONRPCResponse {
	data, err := marshal(result)
	if err != nil {
		return NewErrorResponse(id, NewError(JSONRPCInternalError, "internal error: failed to encode result"))
	}
	return JSONRPCResponse{ID: id, Result: data}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id json.RawMessage, err *JSONRPCError) JSONRPCResponse {
	return JSONRPCResponse{ID: id, Error: err}
}

// responseWire is the on-the-wire shape of a response.
type responseWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// MarshalJSON enforces result/error exclusivity.
func (r JSONRPCResponse) MarshalJSON() ([]byte, error) {
	return marshal(r.wire())
}

func (r JSONRPCResponse) wire() responseWire {
	w := responseWire{JSONRPC: "2.0", ID: r.ID}
	if len(w.ID) == 0 {
		w.ID = json.RawMessage("null")
	}
	if r.Error != nil {
		w.Error = r.Error
		return w
	}
	w.Result = r.Result
	if len(w.Result) == 0 {
		w.Result = json.RawMessage("{}")
	}
	return w
}

// UnmarshalJSON parses a response and rejects frames carrying both or neither
// of result and error.
func (r *JSONRPCResponse) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.JSONRPC != "2.0" {
		return errors.New(`response jsonrpc must be "2.0"`)
	}
	hasResult := len(w.Result) > 0 && !bytes.Equal(w.Result, []byte("null"))
	if hasResult == (w.Error != nil) {
		return errors.New("response must carry exactly one of result or error")
	}
	*r = JSONRPCResponse{ID: w.ID, Result: w.Result, Error: w.Error}
	return nil
}

// EncodeResponse renders a response as a single-line JSON frame without a
// trailing newline. It always returns a frame: if the response cannot be
// encoded, an internal error carrying the same id is returned instead.
func EncodeResponse(resp JSONRPCResponse) []byte {
	data, err := marshal(resp.wire())
	if err == nil {
		return data
	}

	id := resp.ID
	if len(id) == 0 || !json.Valid(id) {
		id = json.RawMessage("null")
	}
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":"internal error: failed to encode response"}}`,
		id, JSONRPCInternalError))
}

// marshal encodes v without HTML escaping so ids and text round-trip unchanged.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
