// Package model defines the normalized request/response shapes exchanged
// with LLM providers, the Model contract implemented by provider adapters,
// and a pattern based registry for resolving model names to instances.
package model

import (
	"context"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// Response is a (partial or final) chunk emitted by a streaming model. It is
// the same envelope events compose, so flow code can wrap chunks without
// copying fields.
type Response = core.Response

// TokenUsage captures token accounting for a response.
type TokenUsage = core.TokenUsage

// GenerationConfig tunes a single model call.
type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// ResponseSchema constrains the output to a JSON document matching the
	// schema. Only attached when the request declares no tools.
	ResponseSchema map[string]any `json:"response_schema,omitempty"`
}

// Request captures the normalized model input assembled by the request
// processor pipeline.
type Request struct {
	// Model is the provider-specific model identifier.
	Model string `json:"model"`
	// Instructions is the accumulated system prompt.
	Instructions string `json:"instructions"`
	// Contents is the branch-filtered conversation history.
	Contents []core.Content `json:"contents"`
	// Config tunes generation for this call.
	Config GenerationConfig `json:"config"`
	// Stream requests partial chunks from the adapter.
	Stream bool `json:"stream,omitempty"`
	// Tools is the registry of dispatchable tools for this call.
	Tools *ToolRegistry `json:"-"`
}

// NewRequest creates an empty request with an initialized tool registry.
func NewRequest(modelName string) *Request {
	return &Request{Model: modelName, Tools: NewToolRegistry()}
}

// AddTool registers a tool for this request, ignoring duplicates by name.
func (r *Request) AddTool(t tool.Tool) {
	if r.Tools == nil {
		r.Tools = NewToolRegistry()
	}
	r.Tools.Add(t)
}

// Declarations returns the model-facing declarations in registration order.
func (r *Request) Declarations() []tool.FunctionDeclaration {
	if r.Tools == nil {
		return nil
	}
	return r.Tools.Declarations()
}

// ToolRegistry holds a request's dispatchable tools keyed by function name.
// Insertion order is preserved and the first registration of a name wins, so
// declaration dedup is structural rather than a cleanup pass.
type ToolRegistry struct {
	m *orderedmap.OrderedMap[string, tool.Tool]
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{m: orderedmap.New[string, tool.Tool]()}
}

// Add registers a tool and reports whether it was newly added. Tools whose
// name is already present are ignored.
func (tr *ToolRegistry) Add(t tool.Tool) bool {
	if t == nil {
		return false
	}
	if _, exists := tr.m.Get(t.Name()); exists {
		return false
	}
	tr.m.Set(t.Name(), t)
	return true
}

// Get returns the tool registered under name.
func (tr *ToolRegistry) Get(name string) (tool.Tool, bool) {
	return tr.m.Get(name)
}

// Len returns the number of registered tools.
func (tr *ToolRegistry) Len() int { return tr.m.Len() }

// Tools returns all registered tools in insertion order.
func (tr *ToolRegistry) Tools() []tool.Tool {
	out := make([]tool.Tool, 0, tr.m.Len())
	for pair := tr.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Declarations returns the declarations of all dispatchable tools in
// insertion order. Self-managed tools (nil declaration) are skipped.
func (tr *ToolRegistry) Declarations() []tool.FunctionDeclaration {
	var out []tool.FunctionDeclaration
	for pair := tr.m.Oldest(); pair != nil; pair = pair.Next() {
		if decl := pair.Value.Declaration(); decl != nil {
			out = append(out, *decl)
		}
	}
	return out
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows and agents to drive
// generation. Generate returns a response channel and an error channel; both
// are closed when the call finishes. Adapters never retry internally.
type Model interface {
	Generate(ctx context.Context, req *Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoModel is returned by Resolve when no pattern matches and no default
// factory is configured.
var ErrNoModel = fmt.Errorf("no model registered for name")
