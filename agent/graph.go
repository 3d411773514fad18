package agent

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// EdgeCondition decides whether an edge is taken. It sees the invocation
// context and the last non-partial event the source node emitted (nil when
// the node emitted nothing).
type EdgeCondition func(ictx *core.InvocationContext, last *core.Event) bool

// Edge connects two graph nodes. A nil Condition always matches.
type Edge struct {
	To        string
	Condition EdgeCondition
}

// GraphAgentOptions configures a GraphAgent.
type GraphAgentOptions struct {
	// MaxSteps caps node executions to guard against cycles. Default 25.
	MaxSteps int
}

// GraphAgent routes control through a directed graph of agents. Starting at
// the entry node, after each node run every outgoing edge whose condition
// passes schedules its target; scheduled nodes run breadth-first and the run
// ends when no node is left to run.
//
// Unlike Parallel, a node failure is fatal: the graph emits an error event
// and aborts.
type GraphAgent struct {
	BaseAgent

	nodes    map[string]core.Agent
	order    []string
	edges    map[string][]Edge
	entry    string
	maxSteps int
}

// NewGraphAgent creates an empty graph coordinator. Add nodes and edges,
// then set the entry point before running.
func NewGraphAgent(name string, optFns ...func(o *GraphAgentOptions)) (*GraphAgent, error) {
	if err := validateAgentName(name); err != nil {
		return nil, err
	}

	opts := GraphAgentOptions{MaxSteps: 25}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &GraphAgent{
		BaseAgent: NewBaseAgent(name, "Routes control through a graph of agents"),
		nodes:     map[string]core.Agent{},
		edges:     map[string][]Edge{},
		maxSteps:  opts.MaxSteps,
	}
	a.bindSelf(a)

	return a, nil
}

// AddNode registers an agent as a graph node under its own name.
func (a *GraphAgent) AddNode(node core.Agent) error {
	if _, exists := a.nodes[node.Name()]; exists {
		return fmt.Errorf("graph agent %q: duplicate node %q", a.Name(), node.Name())
	}

	a.nodes[node.Name()] = node
	a.order = append(a.order, node.Name())

	children := make([]core.Agent, 0, len(a.order))
	for _, n := range a.order {
		children = append(children, a.nodes[n])
	}

	// Re-link so FindAgent and transfer resolution see every node.
	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}

	return a.SetSubAgents(children...)
}

// AddEdge connects two registered nodes. Every edge whose condition passes
// schedules its target; registration order decides scheduling order.
func (a *GraphAgent) AddEdge(from, to string, condition EdgeCondition) error {
	if _, ok := a.nodes[from]; !ok {
		return fmt.Errorf("graph agent %q: unknown edge source %q", a.Name(), from)
	}
	if _, ok := a.nodes[to]; !ok {
		return fmt.Errorf("graph agent %q: unknown edge target %q", a.Name(), to)
	}

	a.edges[from] = append(a.edges[from], Edge{To: to, Condition: condition})

	return nil
}

// SetEntryPoint selects the node the run starts at.
func (a *GraphAgent) SetEntryPoint(name string) error {
	if _, ok := a.nodes[name]; !ok {
		return fmt.Errorf("graph agent %q: unknown entry point %q", a.Name(), name)
	}

	a.entry = name

	return nil
}

// Run implements core.Agent.
func (a *GraphAgent) Run(ictx *core.InvocationContext) error {
	if a.entry == "" {
		return fmt.Errorf("graph agent %q: no entry point set", a.Name())
	}

	queue := []string{a.entry}

	for steps := 0; len(queue) > 0; steps++ {
		if steps >= a.maxSteps {
			return fmt.Errorf("graph agent %q: step ceiling %d exceeded at node %q", a.Name(), a.maxSteps, queue[0])
		}

		current := queue[0]
		queue = queue[1:]

		node := a.nodes[current]

		var last *core.Event
		observe := func(ev core.Event) {
			if !ev.IsPartial() {
				evCopy := ev
				last = &evCopy
			}
		}

		if err := runIntercepted(ictx, node, ictx.Branch, observe); err != nil {
			nodeErr := fmt.Errorf("graph agent %q: node %q: %w", a.Name(), current, err)

			ev := core.NewErrorEvent(ictx.InvocationID, a.Name(), "GRAPH_NODE_FAILED", nodeErr.Error())
			if emitErr := ictx.EmitEvent(ev); emitErr == nil {
				_ = ictx.WaitForResume()
			}

			return nodeErr
		}

		for _, edge := range a.edges[current] {
			if edge.Condition == nil || edge.Condition(ictx, last) {
				queue = append(queue, edge.To)
			}
		}
	}

	return nil
}
