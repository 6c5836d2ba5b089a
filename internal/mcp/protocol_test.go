// ABOUTME: Tests for the JSON-RPC codec
// ABOUTME: Covers parse vs invalid-request classification, id handling and response round trips

package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	t.Run("request with numeric id", func(t *testing.T) {
		req, derr := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`))
		require.Nil(t, derr)
		assert.Equal(t, "tools/list", req.Method)
		assert.Equal(t, json.RawMessage("7"), req.ID)
		assert.False(t, req.IsNotification())
		assert.Nil(t, req.Params)
	})

	t.Run("request with string id and params", func(t *testing.T) {
		req, derr := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":"abc-1","method":"tools/call","params":{"name":"x"}}`))
		require.Nil(t, derr)
		assert.Equal(t, json.RawMessage(`"abc-1"`), req.ID)
		assert.JSONEq(t, `{"name":"x"}`, string(req.Params))
	})

	t.Run("notification has no id", func(t *testing.T) {
		req, derr := DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.Nil(t, derr)
		assert.True(t, req.IsNotification())
	})

	t.Run("null params are dropped", func(t *testing.T) {
		req, derr := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping","params":null}`))
		require.Nil(t, derr)
		assert.Nil(t, req.Params)
	})

	tests := []struct {
		name     string
		frame    string
		wantCode int
		wantID   string
	}{
		{"not json", `{"jsonrpc":"2.0",`, JSONRPCParseError, ""},
		{"garbage", `hello`, JSONRPCParseError, ""},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, JSONRPCInvalidRequest, ""},
		{"scalar", `42`, JSONRPCInvalidRequest, ""},
		{"null", `null`, JSONRPCInvalidRequest, ""},
		{"missing jsonrpc", `{"id":1,"method":"ping"}`, JSONRPCInvalidRequest, "1"},
		{"wrong jsonrpc", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, JSONRPCInvalidRequest, "1"},
		{"missing method", `{"jsonrpc":"2.0","id":"a"}`, JSONRPCInvalidRequest, `"a"`},
		{"empty method", `{"jsonrpc":"2.0","id":2,"method":""}`, JSONRPCInvalidRequest, "2"},
		{"method not string", `{"jsonrpc":"2.0","id":2,"method":5}`, JSONRPCInvalidRequest, "2"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, JSONRPCInvalidRequest, ""},
		{"object id", `{"jsonrpc":"2.0","id":{},"method":"ping"}`, JSONRPCInvalidRequest, ""},
		{"bool id", `{"jsonrpc":"2.0","id":true,"method":"ping"}`, JSONRPCInvalidRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, derr := DecodeRequest([]byte(tt.frame))
			require.NotNil(t, derr)
			assert.Equal(t, tt.wantCode, derr.Err.Code)
			assert.Equal(t, tt.wantID, string(derr.ID))
		})
	}
}

func TestEncodeResponse(t *testing.T) {
	t.Run("result response", func(t *testing.T) {
		frame := EncodeResponse(NewResultResponse(json.RawMessage("1"), map[string]string{"ok": "yes"}))
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"ok":"yes"}}`, string(frame))
		assert.NotContains(t, string(frame), "\n")
	})

	t.Run("error response omits result", func(t *testing.T) {
		frame := EncodeResponse(NewErrorResponse(json.RawMessage(`"x"`), NewError(JSONRPCMethodNotFound, "method not found")))
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"method not found"}}`, string(frame))
	})

	t.Run("error wins when both are set", func(t *testing.T) {
		resp := JSONRPCResponse{ID: json.RawMessage("3"), Result: json.RawMessage(`{"a":1}`), Error: NewError(JSONRPCInternalError, "boom")}
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(EncodeResponse(resp), &fields))
		assert.Contains(t, fields, "error")
		assert.NotContains(t, fields, "result")
	})

	t.Run("empty result encodes as object", func(t *testing.T) {
		frame := EncodeResponse(JSONRPCResponse{ID: json.RawMessage("4")})
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":4,"result":{}}`, string(frame))
	})

	t.Run("missing id encodes as null", func(t *testing.T) {
		frame := EncodeResponse(NewErrorResponse(nil, NewError(JSONRPCParseError, "parse error")))
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, string(frame))
	})

	t.Run("unencodable result becomes internal error", func(t *testing.T) {
		resp := NewResultResponse(json.RawMessage("5"), map[string]any{"ch": make(chan int)})
		require.NotNil(t, resp.Error)
		assert.Equal(t, JSONRPCInternalError, resp.Error.Code)
	})

	t.Run("invalid raw result falls back to internal error frame", func(t *testing.T) {
		frame := EncodeResponse(JSONRPCResponse{ID: json.RawMessage("6"), Result: json.RawMessage("{bad")})
		var back JSONRPCResponse
		require.NoError(t, json.Unmarshal(frame, &back))
		require.NotNil(t, back.Error)
		assert.Equal(t, JSONRPCInternalError, back.Error.Code)
		assert.Equal(t, json.RawMessage("6"), back.ID)
	})

	t.Run("html characters are not escaped", func(t *testing.T) {
		frame := EncodeResponse(NewResultResponse(json.RawMessage(`"<id>"`), TextResult("a < b & c")))
		assert.Contains(t, string(frame), `"<id>"`)
		assert.Contains(t, string(frame), "a < b & c")
	})
}

func TestResponseRoundTrip(t *testing.T) {
	ids := []string{`1`, `-12`, `3.5`, `"abc"`, `"with \"quotes\" and <tags>"`, `"ünïcode"`, `12345678901234567890`}

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			for _, resp := range []JSONRPCResponse{
				NewResultResponse(json.RawMessage(id), TextResult("hello")),
				NewErrorResponse(json.RawMessage(id), NewError(JSONRPCInvalidParams, "bad params")),
			} {
				frame := EncodeResponse(resp)

				var back JSONRPCResponse
				require.NoError(t, json.Unmarshal(frame, &back))
				assert.Equal(t, id, string(back.ID), "id bytes must survive the round trip")

				if resp.Error != nil {
					require.NotNil(t, back.Error)
					assert.Equal(t, resp.Error.Code, back.Error.Code)
					assert.Equal(t, resp.Error.Message, back.Error.Message)
					assert.Nil(t, back.Result)
				} else {
					assert.Nil(t, back.Error)
					assert.JSONEq(t, string(resp.Result), string(back.Result))
				}
			}
		})
	}
}

func TestResponseUnmarshal_RejectsAmbiguousFrames(t *testing.T) {
	var resp JSONRPCResponse
	assert.Error(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1}`), &resp))
	assert.Error(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`), &resp))
	assert.Error(t, json.Unmarshal([]byte(`{"jsonrpc":"1.0","id":1,"result":{}}`), &resp))
}

func TestCallToolResultAlwaysCarriesIsError(t *testing.T) {
	data, err := json.Marshal(TextResult("ok"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"ok"}],"isError":false}`, string(data))

	data, err = json.Marshal(ErrorResult("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"nope"}],"isError":true}`, string(data))
}
