package agent

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// LoopAgentOptions configures a LoopAgent.
type LoopAgentOptions struct {
	// MaxIterations caps full passes over the children. <= 0 is unbounded;
	// such loops must terminate through escalation.
	MaxIterations int
}

// LoopAgent executes its children in order, repeatedly, until the iteration
// ceiling is reached or any child event carries an escalation signal.
// Escalation takes effect after the current child finishes, never mid-turn.
type LoopAgent struct {
	BaseAgent
	maxIterations int
}

// NewLoopAgent creates a looping coordinator over the given children.
func NewLoopAgent(name string, children []core.Agent, optFns ...func(o *LoopAgentOptions)) (*LoopAgent, error) {
	if err := validateAgentName(name); err != nil {
		return nil, err
	}

	opts := LoopAgentOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &LoopAgent{
		BaseAgent:     NewBaseAgent(name, fmt.Sprintf("Repeats its sub-agents until done: %s", childNames(children))),
		maxIterations: opts.MaxIterations,
	}
	a.bindSelf(a)

	if err := a.SetSubAgents(children...); err != nil {
		return nil, err
	}

	return a, nil
}

// Run implements core.Agent.
func (a *LoopAgent) Run(ictx *core.InvocationContext) error {
	children := a.SubAgents()
	escalated := false

	observe := func(ev core.Event) {
		if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
			escalated = true
		}
	}

	for iteration := 0; a.maxIterations <= 0 || iteration < a.maxIterations; iteration++ {
		for _, child := range children {
			if err := runIntercepted(ictx, child, ictx.Branch, observe); err != nil {
				return fmt.Errorf("loop agent %q: iteration %d: child %q: %w", a.Name(), iteration, child.Name(), err)
			}

			if escalated {
				ictx.LogInfo("agent.loop.escalated", "agent", a.Name(), "iteration", iteration, "child", child.Name())
				return nil
			}
		}

		if err := ictx.Err(); err != nil {
			return err
		}
	}

	return nil
}
