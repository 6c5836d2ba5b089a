// ABOUTME: Session lifecycle state machine: uninitialized, initialized, shutting down
// ABOUTME: Decides which methods are legal in each state; transitions are one-way

package mcp

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// State is the session lifecycle state.
type State int32

// Session states. Transitions only move forward.
const (
	StateUninitialized State = iota
	StateInitialized
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

// latestProtocolVersion is offered when the client asks for a version we do not speak.
const latestProtocolVersion = "2025-06-18"

// Lifecycle errors.
var (
	errNotInitialized     = NewError(JSONRPCInvalidRequest, "server not initialized: send initialize first")
	errAlreadyInitialized = NewError(JSONRPCInvalidRequest, "server already initialized: re-initialization is not supported")
	errShuttingDown       = NewError(JSONRPCInvalidRequest, "server is shutting down")
)

// Session holds the per-process protocol state. State is written only by
// Initialize and Shutdown; client details are written once during Initialize.
type Session struct {
	state atomic.Int32

	mu                 sync.RWMutex
	clientCapabilities json.RawMessage
	clientInfo         Implementation
	protocolVersion    string
}

// NewSession returns an uninitialized session.
func NewSession() *Session {
	return &Session{}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Check reports whether method may be called in the current state.
func (s *Session) Check(method string) *JSONRPCError {
	switch s.State() {
	case StateUninitialized:
		if method == "initialize" {
			return nil
		}
		return errNotInitialized
	case StateInitialized:
		if method == "initialize" {
			return errAlreadyInitialized
		}
		return nil
	default:
		return errShuttingDown
	}
}

// Initialize records the client's handshake and moves to Initialized. It
// returns the negotiated protocol version.
func (s *Session) Initialize(params InitializeParams) (string, *JSONRPCError) {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitialized)) {
		return "", s.Check("initialize")
	}

	version := params.ProtocolVersion
	if !supportedProtocolVersions[version] {
		version = latestProtocolVersion
	}

	s.mu.Lock()
	s.clientCapabilities = params.Capabilities
	s.clientInfo = params.ClientInfo
	s.protocolVersion = version
	s.mu.Unlock()

	return version, nil
}

// Shutdown moves an initialized session to ShuttingDown.
func (s *Session) Shutdown() *JSONRPCError {
	if s.state.CompareAndSwap(int32(StateInitialized), int32(StateShuttingDown)) {
		return nil
	}
	if s.State() == StateUninitialized {
		return errNotInitialized
	}
	return errShuttingDown
}

// ClientCapabilities returns the capabilities object sent with initialize.
func (s *Session) ClientCapabilities() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCapabilities
}

// ClientInfo returns the client's self-description.
func (s *Session) ClientInfo() Implementation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// ProtocolVersion returns the negotiated protocol version.
func (s *Session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}
