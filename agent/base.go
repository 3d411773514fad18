package agent

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hupe1980/agentflow/core"
)

// Agent names become branch path segments and event authors, so dots and
// whitespace are forbidden and "user" is reserved for the human side.
var agentNameRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("agentname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "user" && agentNameRegexp.MatchString(name)
	}); err != nil {
		panic(err)
	}

	return v
}()

func validateAgentName(name string) error {
	if err := validate.Var(name, "required,agentname"); err != nil {
		return fmt.Errorf("%w: %q", core.ErrInvalidAgentName, name)
	}
	return nil
}

// BaseAgent bundles identity and hierarchy management shared by all agent
// implementations. Embed it and supply a Run method to satisfy core.Agent.
// Exported methods are goroutine-safe.
type BaseAgent struct {
	name        string
	description string

	mu        sync.Mutex
	self      core.Agent
	parent    core.Agent
	subAgents []core.Agent
}

// NewBaseAgent constructs a BaseAgent. The concrete agent must call bindSelf
// after construction so hierarchy lookups return the full implementation.
func NewBaseAgent(name, description string) BaseAgent {
	return BaseAgent{name: name, description: description}
}

// Name returns the agent's unique name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the agent's purpose description.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// bindSelf records the embedding agent so FindAgent and parent links resolve
// to the concrete implementation instead of the embedded base.
func (b *BaseAgent) bindSelf(self core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
}

func (b *BaseAgent) selfAgent() core.Agent {
	if b.self != nil {
		return b.self
	}
	return &agentWrapper{b}
}

// SetSubAgents replaces the child set and assigns this agent as parent of
// each child. A child may only ever have one parent; duplicate child names
// are rejected because transfer targets are resolved by name.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := map[string]bool{}
	for _, child := range children {
		if child.Parent() != nil {
			return fmt.Errorf("agent %q already has parent %q", child.Name(), child.Parent().Name())
		}
		if seen[child.Name()] {
			return fmt.Errorf("%w: duplicate sub-agent name %q", core.ErrInvalidAgentName, child.Name())
		}
		seen[child.Name()] = true
	}

	for _, child := range b.subAgents {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}
	b.subAgents = nil

	self := b.self
	if self == nil {
		self = &agentWrapper{b}
	}

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(self)
		}
		b.subAgents = append(b.subAgents, child)
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent returns the parent agent, or nil for a root agent.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a copy of the child agent list.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]core.Agent, len(b.subAgents))
	copy(out, b.subAgents)
	return out
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent, including itself. Returns nil when no agent matches.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return b.selfAgent()
	}

	for _, child := range b.SubAgents() {
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// agentWrapper satisfies core.Agent for a BaseAgent that was never bound to
// its embedding implementation.
type agentWrapper struct{ *BaseAgent }

func (w *agentWrapper) Run(_ *core.InvocationContext) error {
	return fmt.Errorf("agent %q cannot run: BaseAgent must be embedded in a concrete agent", w.name)
}
