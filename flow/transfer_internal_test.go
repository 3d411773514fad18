package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

type stubTreeAgent struct {
	name        string
	parent      core.Agent
	subs        []core.Agent
	allowParent bool
	allowPeers  bool
}

func (a *stubTreeAgent) Name() string                        { return a.name }
func (a *stubTreeAgent) Description() string                 { return a.name + " agent" }
func (a *stubTreeAgent) Run(_ *core.InvocationContext) error { return nil }
func (a *stubTreeAgent) SetSubAgents(_ ...core.Agent) error  { return nil }
func (a *stubTreeAgent) SubAgents() []core.Agent             { return a.subs }
func (a *stubTreeAgent) Parent() core.Agent                  { return a.parent }
func (a *stubTreeAgent) AllowTransferToParent() bool         { return a.allowParent }
func (a *stubTreeAgent) AllowTransferToPeers() bool          { return a.allowPeers }

func (a *stubTreeAgent) FindAgent(name string) core.Agent {
	if a.name == name {
		return a
	}
	for _, c := range a.subs {
		if found := c.FindAgent(name); found != nil {
			return found
		}
	}
	return nil
}

func buildStubTree() (root, current, peer, child *stubTreeAgent) {
	root = &stubTreeAgent{name: "Root", allowParent: true, allowPeers: true}
	current = &stubTreeAgent{name: "Current", parent: root, allowParent: true, allowPeers: true}
	peer = &stubTreeAgent{name: "Peer", parent: root, allowParent: true, allowPeers: true}
	child = &stubTreeAgent{name: "Child", parent: current, allowParent: true, allowPeers: true}

	root.subs = []core.Agent{current, peer}
	current.subs = []core.Agent{child}

	return root, current, peer, child
}

func namesOf(agents []core.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Name())
	}
	return out
}

func TestTransferTargets(t *testing.T) {
	_, current, _, _ := buildStubTree()

	assert.Equal(t, []string{"Child", "Peer", "Root"}, namesOf(transferTargets(current)))
}

func TestTransferTargets_PolicyRestrictions(t *testing.T) {
	_, current, _, _ := buildStubTree()

	current.allowPeers = false
	assert.Equal(t, []string{"Child", "Root"}, namesOf(transferTargets(current)))

	current.allowParent = false
	assert.Equal(t, []string{"Child"}, namesOf(transferTargets(current)))
}

func TestTransferTargets_RootWithoutChildren(t *testing.T) {
	lone := &stubTreeAgent{name: "Lone", allowParent: true, allowPeers: true}

	assert.Empty(t, transferTargets(lone))
	assert.Empty(t, transferTargets(nil))
}

func TestAgentTransferProcessor(t *testing.T) {
	_, current, _, _ := buildStubTree()

	ictx := &core.InvocationContext{Agent: current}
	req := model.NewRequest("mock-model")

	p := &agentTransferProcessor{}
	require.NoError(t, p.ProcessRequest(ictx, req, nil))

	assert.Contains(t, req.Instructions, tool.TransferToAgentName)
	assert.Contains(t, req.Instructions, "- Child: Child agent")
	assert.Contains(t, req.Instructions, "- Peer: Peer agent")

	_, ok := req.Tools.Get(tool.TransferToAgentName)
	assert.True(t, ok, "transfer tool is registered")
}

func TestAgentTransferProcessor_NoTargetsNoChanges(t *testing.T) {
	lone := &stubTreeAgent{name: "Lone"}

	ictx := &core.InvocationContext{Agent: lone}
	req := model.NewRequest("mock-model")

	p := &agentTransferProcessor{}
	require.NoError(t, p.ProcessRequest(ictx, req, nil))

	assert.Equal(t, "", req.Instructions)
	assert.Equal(t, 0, req.Tools.Len())
}
