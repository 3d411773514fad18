package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// Harness stands in for the runner in flow and agent tests: it drains the
// emit channel, appends non-partial events to the session and signals resume,
// so code under test never blocks on persistence.
type Harness struct {
	EmitCh   chan core.Event
	ResumeCh chan struct{}
	Session  *core.Session

	mu     sync.Mutex
	events []core.Event
	done   chan struct{}
}

// NewHarness starts a harness pump for the given session.
func NewHarness(sess *core.Session) *Harness {
	h := &Harness{
		EmitCh:   make(chan core.Event, 64),
		ResumeCh: make(chan struct{}, 1),
		Session:  sess,
		done:     make(chan struct{}),
	}

	go h.pump()

	return h
}

func (h *Harness) pump() {
	defer close(h.done)

	for ev := range h.EmitCh {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()

		if !ev.IsPartial() {
			if h.Session != nil {
				h.Session.AppendEvent(ev)
			}
			h.ResumeCh <- struct{}{}
		}
	}
}

// Stop closes the emit channel, waits for the pump to drain and returns all
// recorded events. Call after the code under test returned.
func (h *Harness) Stop() []core.Event {
	close(h.EmitCh)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]core.Event, len(h.events))
	copy(out, h.events)
	return out
}

// Events returns a snapshot of the events recorded so far.
func (h *Harness) Events() []core.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]core.Event, len(h.events))
	copy(out, h.events)
	return out
}

// NewInvocationContext builds a root invocation context wired to the
// harness channels.
func (h *Harness) NewInvocationContext(agent core.Agent, userContent *core.Content, optFns ...func(o *core.InvocationContextOptions)) *core.InvocationContext {
	return core.NewInvocationContext(
		context.Background(),
		core.NewID(),
		agent,
		agent,
		userContent,
		h.Session,
		nil,
		h.EmitCh,
		h.ResumeCh,
		optFns...,
	)
}
