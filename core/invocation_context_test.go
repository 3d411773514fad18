package core

import (
	"context"
	"testing"
)

type stubAgent struct{ name string }

func (a *stubAgent) Name() string                       { return a.name }
func (a *stubAgent) Description() string                { return "" }
func (a *stubAgent) Run(_ *InvocationContext) error     { return nil }
func (a *stubAgent) SetSubAgents(_ ...Agent) error      { return nil }
func (a *stubAgent) SubAgents() []Agent                 { return nil }
func (a *stubAgent) Parent() Agent                      { return nil }
func (a *stubAgent) FindAgent(name string) Agent {
	if name == a.name {
		return a
	}
	return nil
}

func newTestContext(t *testing.T, emit chan Event, resume chan struct{}) *InvocationContext {
	t.Helper()

	agent := &stubAgent{name: "tester"}
	sess := NewSession("app", "user-1", "s1")

	return NewInvocationContext(
		context.Background(),
		"inv-1",
		agent,
		agent,
		NewTextContent("user", "hello"),
		sess,
		nil,
		emit,
		resume,
	)
}

func TestInvocationContext_StateDeltaPrecedence(t *testing.T) {
	ictx := newTestContext(t, make(chan Event, 4), make(chan struct{}, 1))

	ictx.Session.SetState("k", "persisted")
	if v, _ := ictx.GetState("k"); v != "persisted" {
		t.Fatalf("expected session value, got %v", v)
	}

	ictx.SetState("k", "staged")
	if v, _ := ictx.GetState("k"); v != "staged" {
		t.Errorf("staged delta should shadow the session, got %v", v)
	}
	if v, _ := ictx.Session.GetState("k"); v != "persisted" {
		t.Error("SetState must not touch the session directly")
	}
}

func TestInvocationContext_EmitEventMergesDeltas(t *testing.T) {
	emit := make(chan Event, 4)
	ictx := newTestContext(t, emit, make(chan struct{}, 1))
	ictx.Branch = "fanout.worker1"

	ictx.SetState("answer", "42")
	ictx.ArtifactDelta["report.md"] = 3

	ev := NewEvent("inv-1", "tester")
	ev.Content = NewTextContent("assistant", "done")

	if err := ictx.EmitEvent(ev); err != nil {
		t.Fatalf("emit: %v", err)
	}

	got := <-emit
	if got.Actions.StateDelta["answer"] != "42" {
		t.Error("state delta not attached to the event")
	}
	if got.Actions.ArtifactDelta["report.md"] != 3 {
		t.Error("artifact delta not attached to the event")
	}
	if got.BranchPath() != "fanout.worker1" {
		t.Errorf("branch label missing: %q", got.BranchPath())
	}

	if len(ictx.StateDelta) != 0 || len(ictx.ArtifactDelta) != 0 {
		t.Error("delta buffers should be cleared after emission")
	}
}

func TestInvocationContext_ChildBranch(t *testing.T) {
	ictx := newTestContext(t, make(chan Event, 1), make(chan struct{}, 1))

	if got := ictx.ChildBranch("worker1"); got != "worker1" {
		t.Errorf("root child branch: %q", got)
	}

	ictx.Branch = "fanout"
	if got := ictx.ChildBranch("worker1"); got != "fanout.worker1" {
		t.Errorf("nested child branch: %q", got)
	}
}

func TestInvocationContext_NewChildContext_FreshBuffers(t *testing.T) {
	ictx := newTestContext(t, make(chan Event, 1), make(chan struct{}, 1))
	ictx.SetState("k", "v")

	childEmit := make(chan Event, 1)
	childResume := make(chan struct{}, 1)
	child := ictx.NewChildContext(nil, "fanout.worker1", childEmit, childResume)

	if child.InvocationID != ictx.InvocationID {
		t.Error("child must share the invocation id")
	}
	if child.Session != ictx.Session {
		t.Error("child must share the session")
	}
	if child.Limiter != ictx.Limiter {
		t.Error("child must share the model limiter")
	}
	if len(child.StateDelta) != 0 {
		t.Error("child gets a fresh delta buffer")
	}
	if child.Branch != "fanout.worker1" {
		t.Errorf("child branch: %q", child.Branch)
	}
}

func TestInvocationContext_WithAgent_CarriesDelta(t *testing.T) {
	ictx := newTestContext(t, make(chan Event, 1), make(chan struct{}, 1))
	ictx.SetState("k", "v")

	other := &stubAgent{name: "other"}
	derived := ictx.WithAgent(other)

	if derived.AgentName() != "other" {
		t.Errorf("agent not switched: %q", derived.AgentName())
	}
	if v, ok := derived.GetState("k"); !ok || v != "v" {
		t.Error("staged delta should carry over on transfer")
	}
}

func TestInvocationContext_WaitForResume_NilChannel(t *testing.T) {
	ictx := newTestContext(t, make(chan Event, 1), nil)

	if err := ictx.WaitForResume(); err != nil {
		t.Fatalf("nil resume channel should be a no-op: %v", err)
	}
}
