// ABOUTME: Read-only registry of the tools exposed over MCP.
// ABOUTME: Compiles each input schema once at startup and rejects name collisions.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/kagi-mcp/internal/kagi"
	"github.com/2389/kagi-mcp/internal/mcp"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrUnknownTool indicates the requested tool is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments indicates the arguments failed schema validation or
// typed conversion.
var ErrInvalidArguments = errors.New("invalid arguments")

// Definition describes a tool as it is listed to the host.
type Definition struct {
	Name            string
	Description     string
	InputSchemaJSON string
}

// Output is the formatted result of a successful tool call.
type Output struct {
	Text string
	// Meta is the upstream metadata, used for balance tracking.
	Meta kagi.Meta
}

// Handler executes a tool. Arguments have already passed schema validation.
type Handler func(ctx context.Context, args json.RawMessage) (*Output, error)

// Tool pairs a definition with its handler and compiled schema.
type Tool struct {
	Definition Definition
	Handler    Handler
	// NoCache keeps this tool's results out of the dispatcher's response cache.
	NoCache bool

	schema   *jsonschema.Resolved
	required []string
}

// Pack is a named collection of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}

// Registry maps tool names to tools. It is filled at startup and only read
// afterwards.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []*Tool
	packs  map[string]string // tool name -> pack ID
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		packs:  make(map[string]string),
		logger: logger,
	}
}

// RegisterPack compiles and stores every tool in pack. Nothing is registered
// if any tool collides with an existing name or has an invalid schema.
func (r *Registry) RegisterPack(pack *Pack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(pack.Tools))
	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		if name == "" {
			return fmt.Errorf("pack '%s' has a tool without a name", pack.ID)
		}
		if owner, exists := r.packs[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, owner)
		}
		if seen[name] {
			return fmt.Errorf("%w: tool '%s' declared twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = true

		if err := tool.compile(); err != nil {
			return fmt.Errorf("tool '%s': %w", name, err)
		}
	}

	for _, tool := range pack.Tools {
		r.tools[tool.Definition.Name] = tool
		r.packs[tool.Definition.Name] = pack.ID
		r.order = append(r.order, tool)
	}

	r.logger.Info("tool pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.order),
	)

	return nil
}

// Get returns the tool with the given name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Tools returns all tools in registration order.
func (r *Registry) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns all tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, tool := range r.order {
		names = append(names, tool.Definition.Name)
	}
	return names
}

// ListTools returns the MCP view of the registry in registration order.
func (r *Registry) ListTools() []mcp.MCPToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]mcp.MCPToolInfo, 0, len(r.order))
	for _, tool := range r.order {
		infos = append(infos, mcp.MCPToolInfo{
			Name:        tool.Definition.Name,
			Description: tool.Definition.Description,
			InputSchema: json.RawMessage(tool.Definition.InputSchemaJSON),
		})
	}
	return infos
}

// compile parses and resolves the input schema.
func (t *Tool) compile() error {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(t.Definition.InputSchemaJSON), &schema); err != nil {
		return fmt.Errorf("parsing input schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving input schema: %w", err)
	}
	t.schema = resolved
	t.required = schema.Required
	return nil
}

// Validate checks args against the compiled schema. Missing required fields
// are reported by name before the full schema check runs.
func (t *Tool) Validate(args json.RawMessage) error {
	var instance map[string]any
	if err := json.Unmarshal(args, &instance); err != nil {
		return fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidArguments)
	}
	if instance == nil {
		instance = map[string]any{}
	}

	for _, field := range t.required {
		if _, ok := instance[field]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidArguments, field)
		}
	}

	if t.schema != nil {
		if err := t.schema.Validate(instance); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	return nil
}
