package core

import (
	"sync"
	"time"
)

// Session is a conversational container scoped to (AppName, UserID, ID). It
// tracks a merged key/value state view plus an ordered event history and is
// safe for concurrent access.
//
// Contract:
//   - AppendEvent is the single mutation choke point: partial events are
//     ignored, temp: delta keys are stripped, remaining delta keys are
//     applied last-write-wins, then the event is appended
//   - State holds the merged view (app: and user: scoped keys included);
//     scope routing to shared maps is the session service's concern
//   - GetEvents returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session for the given scope triple.
func NewSession(appName, userID, id string) *Session {
	now := time.Now().UTC()
	return &Session{
		AppName: appName,
		UserID:  userID,
		ID:      id,
		State:   map[string]any{},
		Events:  []Event{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair, updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta merges the provided pairs into State last-write-wins.
// temp: keys are dropped, they never reach persisted state.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range StripTempKeys(delta) {
		s.State[k] = v
	}
	s.Updated = time.Now().UTC()
}

// AppendEvent applies the event's state delta and appends it to history.
// Partial events are a no-op and the method reports whether the event was
// actually appended.
func (s *Session) AppendEvent(ev Event) bool {
	if ev.IsPartial() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range StripTempKeys(ev.Actions.StateDelta) {
		s.State[k] = v
	}

	s.Events = append(s.Events, ev)
	s.Updated = time.Now().UTC()

	return true
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// LastEvent returns the most recent event, or false when history is empty.
func (s *Session) LastEvent() (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Events) == 0 {
		return Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// GetConversationHistory returns events suitable as model context: content
// bearing, non-partial.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		AppName: s.AppName,
		UserID:  s.UserID,
		ID:      s.ID,
		State:   make(map[string]any, len(s.State)),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Events, s.Events)
	return clone
}
