package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// TransferToAgentName is the function name models use to hand off control.
const TransferToAgentName = "transfer_to_agent"

// transferToAgentTool requests orchestration transfer to a named agent.
type transferToAgentTool struct{}

// NewTransferToAgentTool constructs the transfer tool instance. The flow
// engine injects it automatically when transfer targets are reachable.
func NewTransferToAgentTool() Tool { return &transferToAgentTool{} }

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	return "Request transfer of control to another agent by name. Use when another agent is better suited."
}

func (t *transferToAgentTool) Declaration() *FunctionDeclaration {
	return &FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent_name": map[string]any{"type": "string", "description": "Target agent name"},
			},
			"required": []string{"agent_name"},
		},
	}
}

func (t *transferToAgentTool) IsLongRunning() bool { return false }

func (t *transferToAgentTool) Run(tc *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["agent_name"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'agent_name'")
	}

	agentName, ok := raw.(string)
	if !ok || agentName == "" {
		return nil, fmt.Errorf("field 'agent_name' must be a non-empty string")
	}

	tc.TransferToAgent(agentName)
	tc.SkipSummarization()

	return map[string]any{"transferred": true, "agent_name": agentName}, nil
}
