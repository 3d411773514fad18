package testutil

import (
	"github.com/hupe1980/agentflow/core"
)

// SessionBuilder constructs sessions for tests.
//
//	sess := NewSessionBuilder("sess-1").State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	appName string
	userID  string
	id      string
	state   map[string]any
	events  []core.Event
}

// NewSessionBuilder creates a builder for a session with the given id, under
// the default "test-app"/"test-user" scope.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{appName: "test-app", userID: "test-user", id: id, state: map[string]any{}}
}

// App sets the application scope.
func (b *SessionBuilder) App(appName string) *SessionBuilder { b.appName = appName; return b }

// User sets the user scope.
func (b *SessionBuilder) User(userID string) *SessionBuilder { b.userID = userID; return b }

// State sets a state key on the resulting session.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Event appends an event to the session history.
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events to the session history.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns the populated session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.appName, b.userID, b.id)

	for k, v := range b.state {
		s.SetState(k, v)
	}

	s.Events = append(s.Events, b.events...)

	return s
}
