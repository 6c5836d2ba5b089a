// ABOUTME: MCP server loop over stdio: sequential reader, concurrent request handlers
// ABOUTME: Lifecycle methods run inline; tool calls run on their own goroutines and reply as they finish

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ToolHandler supplies the tool surface. CallTool reports tool failures in
// the returned result (IsError) rather than as Go errors.
type ToolHandler interface {
	ListTools() []MCPToolInfo
	CallTool(ctx context.Context, name string, arguments json.RawMessage) MCPCallToolResult
}

// Config holds configuration for the MCP server.
type Config struct {
	Handler      ToolHandler
	Logger       *slog.Logger
	Name         string
	Version      string
	Instructions string
	// MaxMessageSize bounds inbound frames; zero selects DefaultMaxMessageSize.
	MaxMessageSize int
}

// Server implements the MCP protocol over a pair of byte streams.
type Server struct {
	handler        ToolHandler
	logger         *slog.Logger
	info           Implementation
	instructions   string
	maxMessageSize int
	session        *Session

	inflight sync.WaitGroup
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("tool handler is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "kagi-mcp-server"
	}

	return &Server{
		handler:        cfg.Handler,
		logger:         logger.With("component", "mcp"),
		info:           Implementation{Name: name, Version: cfg.Version},
		instructions:   cfg.Instructions,
		maxMessageSize: cfg.MaxMessageSize,
		session:        NewSession(),
	}, nil
}

// Session exposes the protocol session.
func (s *Server) Session() *Session {
	return s.session
}

type readResult struct {
	msg []byte
	err error
}

// conn is the per-Serve write side. The first write failure is kept in errs.
type conn struct {
	transport *Transport
	errs      chan error
	logger    *slog.Logger
}

func (c *conn) send(resp JSONRPCResponse) {
	if err := c.transport.WriteMessage(EncodeResponse(resp)); err != nil {
		c.logger.Error("failed to write response", "error", err)
		select {
		case c.errs <- err:
		default:
		}
	}
}

// Serve runs the protocol loop until shutdown completes, the input closes,
// ctx is cancelled, or a transport error occurs. In-flight requests are
// always drained before Serve returns. Only transport errors are returned.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	transport := NewTransport(r, w, s.maxMessageSize)
	c := &conn{transport: transport, errs: make(chan error, 1), logger: s.logger}

	stop := make(chan struct{})
	defer close(stop)

	frames := make(chan readResult)
	go func() {
		for {
			msg, err := transport.ReadMessage()
			select {
			case frames <- readResult{msg: msg, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	shutdownDone := make(chan struct{})
	shuttingDown := false

	// drain waits for in-flight calls and, once shutdown was accepted, for its reply.
	drain := func() {
		s.inflight.Wait()
		if shuttingDown {
			<-shutdownDone
		}
	}

	s.logger.Info("MCP server ready", "name", s.info.Name, "version", s.info.Version)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled, draining in-flight requests")
			drain()
			return s.writeFailure(c)

		case err := <-c.errs:
			drain()
			return err

		case <-shutdownDone:
			s.logger.Info("shutdown complete")
			return s.writeFailure(c)

		case rr := <-frames:
			if rr.err != nil {
				drain()
				if errors.Is(rr.err, io.EOF) {
					s.logger.Info("input closed")
					return s.writeFailure(c)
				}
				s.logger.Error("transport read failed", "error", rr.err)
				return rr.err
			}
			if s.handleFrame(ctx, c, rr.msg, shutdownDone) {
				shuttingDown = true
			}
		}
	}
}

// writeFailure returns a pending write error, if any.
func (s *Server) writeFailure(c *conn) error {
	select {
	case err := <-c.errs:
		return err
	default:
		return nil
	}
}

// handleFrame runs on the reader goroutine. State transitions happen here so
// every later frame observes them. It reports whether a shutdown was accepted.
func (s *Server) handleFrame(ctx context.Context, c *conn, frame []byte, shutdownDone chan struct{}) bool {
	req, derr := DecodeRequest(frame)
	if derr != nil {
		s.logger.Warn("rejected malformed frame", "code", derr.Err.Code, "error", derr.Err.Message)
		c.send(NewErrorResponse(derr.ID, derr.Err))
		return false
	}

	if req.IsNotification() {
		s.handleNotification(req)
		return false
	}

	s.logger.Debug("MCP request", "method", req.Method, "id", string(req.ID))

	if rpcErr := s.session.Check(req.Method); rpcErr != nil {
		s.logger.Debug("request rejected by session state",
			"method", req.Method,
			"state", s.session.State().String(),
		)
		c.send(NewErrorResponse(req.ID, rpcErr))
		return false
	}

	switch req.Method {
	case "initialize":
		c.send(s.handleInitialize(req))
	case "shutdown":
		return s.handleShutdown(c, req, shutdownDone)
	case "ping":
		c.send(NewResultResponse(req.ID, struct{}{}))
	default:
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			c.send(s.dispatch(context.WithoutCancel(ctx), req))
		}()
	}
	return false
}

func (s *Server) handleNotification(req JSONRPCRequest) {
	if strings.HasPrefix(req.Method, "notifications/") {
		s.logger.Debug("accepted MCP notification", "method", req.Method)
		return
	}
	s.logger.Warn("received notification for non-notification method", "method", req.Method)
}

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewErrorResponse(req.ID, NewError(JSONRPCInvalidParams, "invalid initialize params: "+err.Error()))
		}
	}

	version, rpcErr := s.session.Initialize(params)
	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}

	s.logger.Info("MCP session initialized",
		"client_name", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"requested_protocol_version", params.ProtocolVersion,
		"protocol_version", version,
	)

	return NewResultResponse(req.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: &ToolsCapability{ListChanged: false}},
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	})
}

// handleShutdown flips the session to ShuttingDown immediately and replies
// once every in-flight request has been answered.
func (s *Server) handleShutdown(c *conn, req JSONRPCRequest, shutdownDone chan struct{}) bool {
	if rpcErr := s.session.Shutdown(); rpcErr != nil {
		c.send(NewErrorResponse(req.ID, rpcErr))
		return false
	}

	s.logger.Info("shutdown requested, draining in-flight requests")
	go func() {
		s.inflight.Wait()
		c.send(NewResultResponse(req.ID, struct{}{}))
		close(shutdownDone)
	}()
	return true
}

// dispatch handles methods that may run concurrently.
func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) (resp JSONRPCResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling request", "method", req.Method, "panic", fmt.Sprint(r))
			resp = NewErrorResponse(req.ID, NewError(JSONRPCInternalError, "internal error"))
		}
	}()

	switch req.Method {
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return NewErrorResponse(req.ID, NewError(JSONRPCMethodNotFound, "method not found: "+req.Method))
	}
}

// handleToolsList handles tools/list requests.
func (s *Server) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	tools := s.handler.ListTools()
	if tools == nil {
		tools = []MCPToolInfo{}
	}

	s.logger.Debug("tools/list", "count", len(tools))

	return NewResultResponse(req.ID, MCPListToolsResult{Tools: tools})
}

// handleToolsCall handles tools/call requests. Envelope problems are
// protocol errors; everything about the tool itself is reported in the result.
func (s *Server) handleToolsCall(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	if len(req.Params) == 0 {
		return NewErrorResponse(req.ID, NewError(JSONRPCInvalidParams, "invalid params: params are required"))
	}

	var params MCPCallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, NewError(JSONRPCInvalidParams, "invalid params: expected an object with name and arguments"))
	}

	if params.Name == "" {
		return NewErrorResponse(req.ID, NewError(JSONRPCInvalidParams, "invalid params: tool name is required"))
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	} else if args[0] != '{' {
		return NewErrorResponse(req.ID, NewError(JSONRPCInvalidParams, "invalid params: arguments must be a JSON object"))
	}

	s.logger.Debug("tools/call", "tool_name", params.Name, "id", string(req.ID))

	result := s.handler.CallTool(ctx, params.Name, args)
	if result.Content == nil {
		result.Content = []MCPContent{}
	}

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"id", string(req.ID),
		"is_error", result.IsError,
	)

	return NewResultResponse(req.ID, result)
}
