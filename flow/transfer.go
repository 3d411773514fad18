package flow

import (
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// agentTransferProcessor advertises reachable agents to the model and
// registers the transfer tool. Reachability follows the current agent's
// transfer policy: children always, peers and parent only when allowed.
type agentTransferProcessor struct{}

func (p *agentTransferProcessor) Name() string { return "agent_transfer" }

func (p *agentTransferProcessor) ProcessRequest(ictx *core.InvocationContext, req *model.Request, _ FlowAgent) error {
	targets := transferTargets(ictx.Agent)
	if len(targets) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("You can hand the conversation to another agent when it is better suited. ")
	b.WriteString("Call " + tool.TransferToAgentName + " with the agent_name to do so.\n")
	b.WriteString("Available agents:\n")

	for _, t := range targets {
		b.WriteString("- " + t.Name())
		if desc := t.Description(); desc != "" {
			b.WriteString(": " + desc)
		}
		b.WriteString("\n")
	}

	appendInstruction(req, b.String())
	req.AddTool(tool.NewTransferToAgentTool())

	return nil
}

// transferTargets enumerates the agents the current agent may hand off to.
func transferTargets(current core.Agent) []core.Agent {
	if current == nil {
		return nil
	}

	targets := append([]core.Agent{}, current.SubAgents()...)

	allowParent, allowPeers := true, true
	if tp, ok := current.(core.TransferPolicy); ok {
		allowParent = tp.AllowTransferToParent()
		allowPeers = tp.AllowTransferToPeers()
	}

	parent := current.Parent()
	if parent == nil {
		return targets
	}

	if allowPeers {
		for _, peer := range parent.SubAgents() {
			if peer.Name() != current.Name() {
				targets = append(targets, peer)
			}
		}
	}

	if allowParent {
		targets = append(targets, parent)
	}

	return targets
}
