package agent

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// SequentialAgent executes its children one after another on the shared
// session. Each child sees everything its predecessors emitted, so outputs
// build on each other. The first failing child stops the sequence.
type SequentialAgent struct {
	BaseAgent
}

// NewSequentialAgent creates a sequential coordinator over the given
// children.
func NewSequentialAgent(name string, children ...core.Agent) (*SequentialAgent, error) {
	if err := validateAgentName(name); err != nil {
		return nil, err
	}

	a := &SequentialAgent{
		BaseAgent: NewBaseAgent(name, fmt.Sprintf("Runs its sub-agents in order: %s", childNames(children))),
	}
	a.bindSelf(a)

	if err := a.SetSubAgents(children...); err != nil {
		return nil, err
	}

	return a, nil
}

// Run implements core.Agent.
func (a *SequentialAgent) Run(ictx *core.InvocationContext) error {
	for _, child := range a.SubAgents() {
		if err := child.Run(ictx.WithAgent(child)); err != nil {
			return fmt.Errorf("sequential agent %q: child %q: %w", a.Name(), child.Name(), err)
		}
	}

	return nil
}

func childNames(children []core.Agent) string {
	names := ""
	for i, c := range children {
		if i > 0 {
			names += ", "
		}
		names += c.Name()
	}
	return names
}
