package agent

import (
	"fmt"

	"github.com/hupe1980/agentflow/code"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/planner"
	"github.com/hupe1980/agentflow/tool"
)

// LLMAgentOptions configures an LLMAgent. Use functional options with
// NewLLMAgent to override defaults.
type LLMAgentOptions struct {
	// Description is used in identity and transfer instructions.
	Description string
	// Model pins a concrete model implementation. Takes precedence over
	// registry resolution.
	Model model.Model
	// Registry resolves the model name when no Model is pinned.
	Registry *model.Registry
	// Instruction is the agent's system instruction.
	Instruction Instruction
	// GlobalInstruction applies to the whole agent tree when this agent is
	// the root.
	GlobalInstruction Instruction
	// Tools are declared to the model and dispatched by name.
	Tools []tool.Tool
	// GenerationConfig tunes each model call.
	GenerationConfig model.GenerationConfig
	// OutputSchema constrains the final answer to a JSON schema.
	OutputSchema map[string]any
	// OutputKey stores the final answer text under this state key.
	OutputKey string
	// Planner adds plan-then-act prompting.
	Planner planner.Planner
	// CodeExecutor enables model-written code execution.
	CodeExecutor code.Executor
	// EnableStreaming emits partial chunks as they arrive. Default true.
	EnableStreaming bool
	// MaxHistoryEvents caps conversation history per request. <= 0 is
	// unlimited.
	MaxHistoryEvents int
	// DisallowTransferToParent blocks handing control back up the tree.
	DisallowTransferToParent bool
	// DisallowTransferToPeers blocks handing control to sibling agents.
	DisallowTransferToPeers bool

	BeforeModelCallbacks []flow.BeforeModelCallback
	AfterModelCallbacks  []flow.AfterModelCallback
	BeforeToolCallbacks  []flow.BeforeToolCallback
	AfterToolCallbacks   []flow.AfterToolCallback
}

type llmAgentConfig struct {
	Name        string `validate:"required,agentname"`
	ModelName   string `validate:"required"`
	Description string `validate:"omitempty,min=3"`
}

// LLMAgent is the model-driven agent: it assembles requests from session
// history, calls the model through the flow engine and dispatches the tools
// the model asks for. It implements core.Agent, core.TransferPolicy and
// flow.FlowAgent.
type LLMAgent struct {
	BaseAgent

	modelName string
	opts      LLMAgentOptions
}

// NewLLMAgent creates an LLM-driven agent for the given model name.
func NewLLMAgent(name, modelName string, optFns ...func(o *LLMAgentOptions)) (*LLMAgent, error) {
	opts := LLMAgentOptions{
		EnableStreaming: true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := llmAgentConfig{Name: name, ModelName: modelName, Description: opts.Description}
	if err := validate.Struct(cfg); err != nil {
		if verr := validateAgentName(name); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("invalid llm agent %q: %w", name, err)
	}

	a := &LLMAgent{
		BaseAgent: NewBaseAgent(name, opts.Description),
		modelName: modelName,
		opts:      opts,
	}
	a.bindSelf(a)

	return a, nil
}

// AddTools appends tools to the agent's capability set.
func (a *LLMAgent) AddTools(tools ...tool.Tool) {
	a.opts.Tools = append(a.opts.Tools, tools...)
}

// Run executes the flow engine for this agent. Agents embedded in a tree get
// transfer support automatically.
func (a *LLMAgent) Run(ictx *core.InvocationContext) error {
	return flow.SelectFlow(a, a).Run(ictx)
}

// GetName implements flow.FlowAgent.
func (a *LLMAgent) GetName() string { return a.Name() }

// GetDescription implements flow.FlowAgent.
func (a *LLMAgent) GetDescription() string { return a.Description() }

// GetModelName implements flow.FlowAgent.
func (a *LLMAgent) GetModelName() string { return a.modelName }

// ResolveModel returns the pinned model or resolves the model name through
// the configured registry.
func (a *LLMAgent) ResolveModel() (model.Model, error) {
	if a.opts.Model != nil {
		return a.opts.Model, nil
	}

	if a.opts.Registry == nil {
		return nil, fmt.Errorf("agent %q: no model registry configured: %w", a.Name(), model.ErrNoModel)
	}

	return a.opts.Registry.Resolve(a.modelName)
}

// Instruction renders the agent's system instruction.
func (a *LLMAgent) Instruction(ictx *core.InvocationContext) (string, error) {
	if a.opts.Instruction.IsZero() {
		return "", nil
	}
	return a.opts.Instruction.Resolve(ictx)
}

// GlobalInstruction renders the tree-wide instruction.
func (a *LLMAgent) GlobalInstruction(ictx *core.InvocationContext) (string, error) {
	if a.opts.GlobalInstruction.IsZero() {
		return "", nil
	}
	return a.opts.GlobalInstruction.Resolve(ictx)
}

// GetTools implements flow.FlowAgent.
func (a *LLMAgent) GetTools() []tool.Tool { return a.opts.Tools }

// GetGenerationConfig implements flow.FlowAgent.
func (a *LLMAgent) GetGenerationConfig() model.GenerationConfig { return a.opts.GenerationConfig }

// GetOutputSchema implements flow.FlowAgent.
func (a *LLMAgent) GetOutputSchema() map[string]any { return a.opts.OutputSchema }

// GetOutputKey implements flow.FlowAgent.
func (a *LLMAgent) GetOutputKey() string { return a.opts.OutputKey }

// GetPlanner implements flow.FlowAgent.
func (a *LLMAgent) GetPlanner() planner.Planner { return a.opts.Planner }

// GetCodeExecutor implements flow.FlowAgent.
func (a *LLMAgent) GetCodeExecutor() code.Executor { return a.opts.CodeExecutor }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *LLMAgent) IsStreamingEnabled() bool { return a.opts.EnableStreaming }

// MaxHistoryEvents implements flow.FlowAgent.
func (a *LLMAgent) MaxHistoryEvents() int { return a.opts.MaxHistoryEvents }

// AllowTransferToParent implements core.TransferPolicy.
func (a *LLMAgent) AllowTransferToParent() bool { return !a.opts.DisallowTransferToParent }

// AllowTransferToPeers implements core.TransferPolicy.
func (a *LLMAgent) AllowTransferToPeers() bool { return !a.opts.DisallowTransferToPeers }

// BeforeModelCallbacks implements flow.FlowAgent.
func (a *LLMAgent) BeforeModelCallbacks() []flow.BeforeModelCallback {
	return a.opts.BeforeModelCallbacks
}

// AfterModelCallbacks implements flow.FlowAgent.
func (a *LLMAgent) AfterModelCallbacks() []flow.AfterModelCallback {
	return a.opts.AfterModelCallbacks
}

// BeforeToolCallbacks implements flow.FlowAgent.
func (a *LLMAgent) BeforeToolCallbacks() []flow.BeforeToolCallback {
	return a.opts.BeforeToolCallbacks
}

// AfterToolCallbacks implements flow.FlowAgent.
func (a *LLMAgent) AfterToolCallbacks() []flow.AfterToolCallback {
	return a.opts.AfterToolCallbacks
}
