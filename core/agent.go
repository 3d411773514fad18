package core

// Agent is the interface every processing unit in agentflow implements.
//
// Agents receive their execution scope through an InvocationContext, run
// asynchronously and emit events through the context to communicate results
// and state changes back to the runner.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events only through the provided InvocationContext
//   - Honor the resume mechanism so persistence stays ordered
type Agent interface {
	Name() string
	Description() string
	Run(ictx *InvocationContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// TransferPolicy is implemented by agents that restrict where control may
// move during a transfer. Agents that do not implement it allow everything.
type TransferPolicy interface {
	// AllowTransferToParent reports whether control may return to the
	// parent agent. The runner also consults this when resolving which
	// agent resumes a multi-turn conversation.
	AllowTransferToParent() bool

	// AllowTransferToPeers reports whether sibling agents are valid
	// transfer targets.
	AllowTransferToPeers() bool
}

// AgentInfo carries identifying details about an agent used in contexts and
// events. Name is the external identifier; Type categorizes the
// implementation (e.g. "llm", "sequential", "graph").
type AgentInfo struct{ Name, Type string }
