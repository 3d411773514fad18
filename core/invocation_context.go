package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agentflow/logging"
)

// InvocationContext carries the execution scope for one agent run within an
// invocation. It aggregates:
//   - The ambient cancellation Context
//   - Identity (InvocationID stable across the agent tree, Branch dot-path)
//   - The current Agent plus the tree root for transfer target lookup
//   - Emission / resumption coordination channels
//   - Backing services (session, artifact, memory)
//   - A working Session snapshot and pending state / artifact deltas
//
// State mutations performed via SetState accumulate in StateDelta until
// EmitEvent attaches them to an outgoing event; the session service applies
// them when the event is persisted. Child contexts share the session,
// limiter and invocation id but get fresh delta buffers.
type InvocationContext struct {
	Context       context.Context
	InvocationID  string
	Agent         Agent
	RootAgent     Agent
	Branch        string
	UserContent   *Content
	Session       *Session
	EndInvocation bool

	Emit   chan<- Event
	Resume <-chan struct{}

	SessionService  SessionService
	ArtifactService ArtifactService
	MemoryService   MemoryService

	Limiter       *ModelLimiter
	StateDelta    map[string]any
	ArtifactDelta map[string]int

	*loggerAdapter
}

// InvocationContextOptions configures optional collaborators of an
// InvocationContext.
type InvocationContextOptions struct {
	// Branch is the initial hierarchical branch label.
	Branch string
	// MaxModelCalls caps model calls for the invocation. <= 0 is unlimited.
	MaxModelCalls int
	// Logger receives framework diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
	// ArtifactService backs artifact helpers. Optional.
	ArtifactService ArtifactService
	// MemoryService backs memory recall helpers. Optional.
	MemoryService MemoryService
}

// NewInvocationContext constructs the root context of an invocation.
func NewInvocationContext(
	ctx context.Context,
	invocationID string,
	agent, rootAgent Agent,
	userContent *Content,
	sess *Session,
	sessionService SessionService,
	emit chan<- Event,
	resume <-chan struct{},
	optFns ...func(o *InvocationContextOptions),
) *InvocationContext {
	opts := InvocationContextOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InvocationContext{
		Context:         ctx,
		InvocationID:    invocationID,
		Agent:           agent,
		RootAgent:       rootAgent,
		Branch:          opts.Branch,
		UserContent:     userContent,
		Session:         sess,
		Emit:            emit,
		Resume:          resume,
		SessionService:  sessionService,
		ArtifactService: opts.ArtifactService,
		MemoryService:   opts.MemoryService,
		Limiter:         NewModelLimiter(opts.MaxModelCalls),
		StateDelta:      map[string]any{},
		ArtifactDelta:   map[string]int{},
		loggerAdapter:   newLoggerAdapter(opts.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *InvocationContext) Err() error { return ic.Context.Err() }

// AppName returns the application scope of the session.
func (ic *InvocationContext) AppName() string {
	if ic.Session == nil {
		return ""
	}
	return ic.Session.AppName
}

// UserID returns the user scope of the session.
func (ic *InvocationContext) UserID() string {
	if ic.Session == nil {
		return ""
	}
	return ic.Session.UserID
}

// SessionID returns the session identifier.
func (ic *InvocationContext) SessionID() string {
	if ic.Session == nil {
		return ""
	}
	return ic.Session.ID
}

// AgentName returns the logical name of the current agent.
func (ic *InvocationContext) AgentName() string {
	if ic.Agent == nil {
		return ""
	}
	return ic.Agent.Name()
}

// GetState returns a staged (delta) value if present, else the session value.
func (ic *InvocationContext) GetState(k string) (any, bool) {
	if v, ok := ic.StateDelta[k]; ok {
		return v, true
	}

	if ic.Session != nil {
		return ic.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (ic *InvocationContext) SetState(k string, v any) { ic.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (ic *InvocationContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(ic.StateDelta, d)
}

// SaveArtifact stores a new artifact version and stages the version bump for
// the next emitted event.
func (ic *InvocationContext) SaveArtifact(filename string, a Artifact) (int, error) {
	if ic.ArtifactService == nil {
		return 0, fmt.Errorf("artifact service not configured")
	}

	version, err := ic.ArtifactService.Save(ic.Context, ic.AppName(), ic.UserID(), ic.SessionID(), filename, a)
	if err != nil {
		return 0, err
	}

	ic.ArtifactDelta[filename] = version

	return version, nil
}

// LoadArtifact retrieves an artifact version; negative loads the latest.
func (ic *InvocationContext) LoadArtifact(filename string, version int) (*Artifact, error) {
	if ic.ArtifactService == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}

	return ic.ArtifactService.Load(ic.Context, ic.AppName(), ic.UserID(), ic.SessionID(), filename, version)
}

// ListArtifactKeys returns the filenames visible to the session.
func (ic *InvocationContext) ListArtifactKeys() ([]string, error) {
	if ic.ArtifactService == nil {
		return []string{}, nil
	}

	return ic.ArtifactService.ListKeys(ic.Context, ic.AppName(), ic.UserID(), ic.SessionID())
}

// SearchMemory queries the MemoryService for relevant past content.
func (ic *InvocationContext) SearchMemory(query string) ([]MemoryResult, error) {
	if ic.MemoryService == nil {
		return []MemoryResult{}, nil
	}

	return ic.MemoryService.Search(ic.Context, ic.AppName(), ic.UserID(), query)
}

// FindAgent resolves an agent by name from the invocation's root tree.
func (ic *InvocationContext) FindAgent(name string) Agent {
	if ic.RootAgent == nil {
		return nil
	}

	return ic.RootAgent.FindAgent(name)
}

// NewChildContext derives a context for a nested execution path. The child
// shares the session, limiter and invocation id but gets fresh delta
// buffers, its own emission channels and optionally a new agent / branch.
func (ic *InvocationContext) NewChildContext(agent Agent, branch string, emit chan<- Event, resume <-chan struct{}) *InvocationContext {
	finalBranch := ic.Branch
	if branch != "" {
		finalBranch = branch
	}

	finalAgent := ic.Agent
	if agent != nil {
		finalAgent = agent
	}

	return &InvocationContext{
		Context:         ic.Context,
		InvocationID:    ic.InvocationID,
		Agent:           finalAgent,
		RootAgent:       ic.RootAgent,
		Branch:          finalBranch,
		UserContent:     ic.UserContent,
		Session:         ic.Session,
		Emit:            emit,
		Resume:          resume,
		SessionService:  ic.SessionService,
		ArtifactService: ic.ArtifactService,
		MemoryService:   ic.MemoryService,
		Limiter:         ic.Limiter,
		StateDelta:      map[string]any{},
		ArtifactDelta:   map[string]int{},
		loggerAdapter:   ic.loggerAdapter,
	}
}

// WithAgent clones the context for a different agent on the same channels.
func (ic *InvocationContext) WithAgent(agent Agent) *InvocationContext {
	c := ic.NewChildContext(agent, "", ic.Emit, ic.Resume)
	maps.Copy(c.StateDelta, ic.StateDelta)
	return c
}

// ChildBranch composes the hierarchical branch label for a sub-agent.
func (ic *InvocationContext) ChildBranch(subAgentName string) string {
	if ic.Branch == "" {
		return subAgentName
	}
	return ic.Branch + "." + subAgentName
}

// EmitEvent merges pending state / artifact deltas into the event, labels it
// with the current branch and emits it. Buffers are cleared on success.
func (ic *InvocationContext) EmitEvent(ev Event) error {
	if len(ic.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, ic.StateDelta)
	}

	if len(ic.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		maps.Copy(ev.Actions.ArtifactDelta, ic.ArtifactDelta)
	}

	if ev.Branch == nil && ic.Branch != "" {
		ev = ev.WithBranch(ic.Branch)
	}

	select {
	case <-ic.Context.Done():
		return ic.Context.Err()
	case ic.Emit <- ev:
	}

	ic.StateDelta = map[string]any{}
	ic.ArtifactDelta = map[string]int{}

	return nil
}

// WaitForResume blocks until the runner finished persisting the previously
// emitted event, or the context is cancelled.
func (ic *InvocationContext) WaitForResume() error {
	if ic.Resume == nil {
		return nil
	}

	select {
	case <-ic.Resume:
		return nil
	case <-ic.Context.Done():
		return ic.Context.Err()
	}
}
