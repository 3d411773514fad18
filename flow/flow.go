// Package flow implements the model interaction loop of an LLM agent: a
// pipeline of request processors assembles the model request, the engine
// streams the model response into events, and function calls are dispatched
// to tools between turns. Flows are stateless; all per-run scope travels in
// the InvocationContext.
package flow

import (
	"github.com/hupe1980/agentflow/code"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/planner"
	"github.com/hupe1980/agentflow/tool"
)

// Flow drives the model interaction loop for one agent run. Run emits events
// through the invocation context and returns when the turn is complete or a
// fatal error occurred.
type Flow interface {
	Run(ictx *core.InvocationContext) error
}

// FlowAgent is the view of an LLM agent the flow engine needs. It is
// implemented by agent.LLMAgent and decouples the flow package from the
// agent package.
type FlowAgent interface {
	// GetName returns the agent's unique name.
	GetName() string

	// GetDescription returns the agent's description, used in identity and
	// transfer instructions.
	GetDescription() string

	// GetModelName returns the model identifier for requests.
	GetModelName() string

	// ResolveModel returns the model implementation to call.
	ResolveModel() (model.Model, error)

	// Instruction returns the rendered per-agent system instruction.
	Instruction(ictx *core.InvocationContext) (string, error)

	// GlobalInstruction returns the rendered tree-wide instruction. Only the
	// root agent's value is consulted.
	GlobalInstruction(ictx *core.InvocationContext) (string, error)

	// GetTools returns the tools available to the model.
	GetTools() []tool.Tool

	// GetGenerationConfig returns per-call generation tuning.
	GetGenerationConfig() model.GenerationConfig

	// GetOutputSchema returns the JSON schema the final answer must match,
	// or nil.
	GetOutputSchema() map[string]any

	// GetOutputKey returns the state key the final answer text is written
	// to, or "".
	GetOutputKey() string

	// GetPlanner returns the configured planner, or nil.
	GetPlanner() planner.Planner

	// GetCodeExecutor returns the configured code executor, or nil.
	GetCodeExecutor() code.Executor

	// IsStreamingEnabled reports whether partial chunks should be emitted.
	IsStreamingEnabled() bool

	// MaxHistoryEvents caps the conversation events sent to the model.
	// <= 0 means unlimited.
	MaxHistoryEvents() int

	// BeforeModelCallbacks run before each model call.
	BeforeModelCallbacks() []BeforeModelCallback

	// AfterModelCallbacks run after each final model response.
	AfterModelCallbacks() []AfterModelCallback

	// BeforeToolCallbacks run before each tool dispatch.
	BeforeToolCallbacks() []BeforeToolCallback

	// AfterToolCallbacks run after each tool completes.
	AfterToolCallbacks() []AfterToolCallback
}

// RequestProcessor mutates the outgoing model request. Processors run in
// registration order once per model call.
type RequestProcessor interface {
	Name() string
	ProcessRequest(ictx *core.InvocationContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor inspects or rewrites a final model response before it is
// wrapped in an event. Returned events are emitted after the model event and
// become the step's trailing events (e.g. code execution results).
type ResponseProcessor interface {
	Name() string
	ProcessResponse(ictx *core.InvocationContext, resp *model.Response, agent FlowAgent) ([]core.Event, error)
}

// BeforeModelCallback runs before a model call. Returning a non-nil response
// short-circuits the call and uses the response as the model output.
type BeforeModelCallback func(ictx *core.InvocationContext, req *model.Request) (*model.Response, error)

// AfterModelCallback runs after a final model response. Returning a non-nil
// response replaces the model output.
type AfterModelCallback func(ictx *core.InvocationContext, resp *model.Response) (*model.Response, error)

// BeforeToolCallback runs before a tool dispatch. Returning a non-nil map
// short-circuits execution and uses the map as the tool result.
type BeforeToolCallback func(toolCtx *core.ToolContext, t tool.Tool, args map[string]any) (map[string]any, error)

// AfterToolCallback runs after a tool completes. Returning a non-nil value
// replaces the tool result.
type AfterToolCallback func(toolCtx *core.ToolContext, t tool.Tool, args map[string]any, result any) (any, error)
