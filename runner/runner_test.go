package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/memory"
	"github.com/hupe1980/agentflow/session"
)

// testAgent is a minimal core.Agent for runner tests.
type testAgent struct {
	name        string
	parent      core.Agent
	subs        []core.Agent
	runFn       func(ictx *core.InvocationContext) error
	noParentHop bool
}

func (a *testAgent) Name() string        { return a.name }
func (a *testAgent) Description() string { return "test agent" }

func (a *testAgent) Run(ictx *core.InvocationContext) error {
	if a.runFn != nil {
		return a.runFn(ictx)
	}
	return nil
}

func (a *testAgent) SetSubAgents(children ...core.Agent) error {
	a.subs = children
	for _, c := range children {
		if ta, ok := c.(*testAgent); ok {
			ta.parent = a
		}
	}
	return nil
}

func (a *testAgent) SubAgents() []core.Agent { return a.subs }
func (a *testAgent) Parent() core.Agent      { return a.parent }

func (a *testAgent) FindAgent(name string) core.Agent {
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

func (a *testAgent) AllowTransferToParent() bool { return !a.noParentHop }
func (a *testAgent) AllowTransferToPeers() bool  { return true }

func emitText(ictx *core.InvocationContext, text string, partial bool) error {
	ev := core.NewEvent(ictx.InvocationID, ictx.AgentName())
	ev.Content = core.NewTextContent("assistant", text)
	ev.Partial = &partial

	if err := ictx.EmitEvent(ev); err != nil {
		return err
	}
	if partial {
		return nil
	}
	return ictx.WaitForResume()
}

func collect(t *testing.T, eventsCh <-chan core.Event, errorsCh <-chan error) ([]core.Event, error) {
	t.Helper()

	var (
		events []core.Event
		runErr error
	)

	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)

		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			runErr = err

		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for invocation to finish")
		}
	}

	return events, runErr
}

func TestRunner_DeliversAndPersistsEvents(t *testing.T) {
	svc := session.NewInMemoryService()

	root := &testAgent{name: "Assistant", runFn: func(ictx *core.InvocationContext) error {
		return emitText(ictx, "hello there", false)
	}}

	r := New("test-app", root, func(o *Options) {
		o.SessionService = svc
	})

	_, eventsCh, errorsCh, err := r.Run(t.Context(), "user-1", "s1", core.NewTextContent("user", "hi"))
	require.NoError(t, err)

	events, runErr := collect(t, eventsCh, errorsCh)
	require.NoError(t, runErr)

	require.Len(t, events, 1)
	assert.Equal(t, "Assistant", events[0].Author)
	assert.Equal(t, "hello there", events[0].Content.Text())

	// The session holds the user message plus the agent reply.
	sess, err := svc.Get(t.Context(), "test-app", "user-1", "s1")
	require.NoError(t, err)
	history := sess.GetEvents()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "Assistant", history[1].Author)
}

func TestRunner_AutoCreatesSession(t *testing.T) {
	svc := session.NewInMemoryService()

	r := New("test-app", &testAgent{name: "Assistant"}, func(o *Options) {
		o.SessionService = svc
	})

	_, err := svc.Get(t.Context(), "test-app", "user-1", "fresh")
	require.ErrorIs(t, err, core.ErrSessionNotFound)

	_, eventsCh, errorsCh, err := r.Run(t.Context(), "user-1", "fresh", core.NewTextContent("user", "hi"))
	require.NoError(t, err)

	_, runErr := collect(t, eventsCh, errorsCh)
	require.NoError(t, runErr)

	_, err = svc.Get(t.Context(), "test-app", "user-1", "fresh")
	assert.NoError(t, err)
}

func TestRunner_PartialsDeliveredNotPersisted(t *testing.T) {
	svc := session.NewInMemoryService()

	root := &testAgent{name: "Assistant", runFn: func(ictx *core.InvocationContext) error {
		if err := emitText(ictx, "hel", true); err != nil {
			return err
		}
		return emitText(ictx, "hello", false)
	}}

	r := New("test-app", root, func(o *Options) {
		o.SessionService = svc
	})

	_, eventsCh, errorsCh, err := r.Run(t.Context(), "user-1", "s1", core.NewTextContent("user", "hi"))
	require.NoError(t, err)

	events, runErr := collect(t, eventsCh, errorsCh)
	require.NoError(t, runErr)
	require.Len(t, events, 2, "partials still stream to the caller")

	sess, err := svc.Get(t.Context(), "test-app", "user-1", "s1")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 2, "user message plus final reply only")
}

func TestRunner_AgentErrorSurfacesOnErrorChannel(t *testing.T) {
	boom := fmt.Errorf("model exploded")

	root := &testAgent{name: "Assistant", runFn: func(_ *core.InvocationContext) error {
		return boom
	}}

	r := New("test-app", root)

	_, eventsCh, errorsCh, err := r.Run(t.Context(), "user-1", "s1", core.NewTextContent("user", "hi"))
	require.NoError(t, err)

	_, runErr := collect(t, eventsCh, errorsCh)
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, boom)
	assert.Contains(t, runErr.Error(), `"Assistant"`)
}

func TestRunner_Cancel(t *testing.T) {
	root := &testAgent{name: "Assistant", runFn: func(ictx *core.InvocationContext) error {
		<-ictx.Done()
		return ictx.Err()
	}}

	r := New("test-app", root)

	invocationID, eventsCh, errorsCh, err := r.Run(t.Context(), "user-1", "s1", core.NewTextContent("user", "hi"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(invocationID))

	_, runErr := collect(t, eventsCh, errorsCh)
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, context.Canceled)

	assert.Error(t, r.Cancel(invocationID), "finished invocations are no longer cancelable")
}

func TestRunner_CancelUnknownInvocation(t *testing.T) {
	r := New("test-app", &testAgent{name: "Assistant"})
	assert.Error(t, r.Cancel("no-such-invocation"))
}

func TestRunner_ArchiveSession(t *testing.T) {
	svc := session.NewInMemoryService()
	mem := memory.NewInMemoryService()

	root := &testAgent{name: "Assistant", runFn: func(ictx *core.InvocationContext) error {
		return emitText(ictx, "the meeting is on friday", false)
	}}

	r := New("test-app", root, func(o *Options) {
		o.SessionService = svc
		o.MemoryService = mem
	})

	_, eventsCh, errorsCh, err := r.Run(t.Context(), "user-1", "s1", core.NewTextContent("user", "when is the meeting?"))
	require.NoError(t, err)

	_, runErr := collect(t, eventsCh, errorsCh)
	require.NoError(t, runErr)

	require.NoError(t, r.ArchiveSession(t.Context(), "user-1", "s1"))

	results, err := mem.Search(t.Context(), "test-app", "user-1", "meeting friday")
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	assert.Error(t, r.ArchiveSession(t.Context(), "user-1", "missing"))
}

func TestResolveAgentToRun(t *testing.T) {
	child := &testAgent{name: "Specialist"}
	root := &testAgent{name: "Root"}
	require.NoError(t, root.SetSubAgents(child))

	r := New("test-app", root)

	sessionWith := func(authors ...string) *core.Session {
		sess := core.NewSession("test-app", "user-1", "s1")
		for _, author := range authors {
			ev := core.NewEvent("inv-1", author)
			ev.Content = core.NewTextContent("assistant", "x")
			sess.Events = append(sess.Events, ev)
		}
		return sess
	}

	// Empty history starts at the root.
	assert.Equal(t, "Root", r.resolveAgentToRun(core.NewSession("test-app", "user-1", "s1")).Name())

	// The most recent non-user author picks up the conversation.
	assert.Equal(t, "Specialist", r.resolveAgentToRun(sessionWith("user", "Specialist", "user")).Name())

	// Unknown authors fall back to the root.
	assert.Equal(t, "Root", r.resolveAgentToRun(sessionWith("Departed")).Name())

	// Agents that refuse to hand control back to their parent do not resume.
	child.noParentHop = true
	assert.Equal(t, "Root", r.resolveAgentToRun(sessionWith("Specialist")).Name())
	child.noParentHop = false
}
