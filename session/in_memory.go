// Package session provides SessionService implementations. The in-memory
// service keeps everything in process-local maps and is meant for tests,
// examples and single-process prototypes; swap in a durable implementation
// for anything that must survive restarts.
package session

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// InMemoryService is a volatile SessionService. Sessions are scoped by
// (appName, userID, sessionID); state keys with the app: and user: prefixes
// live in shared scope maps that Get folds into the returned snapshot. All
// methods are safe for concurrent use; returned sessions are clones.
type InMemoryService struct {
	mu        sync.RWMutex
	sessions  map[string]*core.Session
	appState  map[string]map[string]any
	userState map[string]map[string]any
}

// NewInMemoryService constructs an empty in-memory session service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		sessions:  map[string]*core.Session{},
		appState:  map[string]map[string]any{},
		userState: map[string]map[string]any{},
	}
}

func sessionKey(appName, userID, sessionID string) string {
	return appName + "/" + userID + "/" + sessionID
}

func userKey(appName, userID string) string {
	return appName + "/" + userID
}

// Create implements core.SessionService.
func (s *InMemoryService) Create(_ context.Context, appName, userID, sessionID string, initialState map[string]any) (*core.Session, error) {
	if sessionID == "" {
		sessionID = core.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(appName, userID, sessionID)
	if _, exists := s.sessions[key]; exists {
		return nil, fmt.Errorf("session %q already exists", sessionID)
	}

	sess := core.NewSession(appName, userID, sessionID)
	s.routeStateLocked(appName, userID, sess, initialState)
	s.sessions[key] = sess

	return s.mergedCloneLocked(appName, userID, sess), nil
}

// Get implements core.SessionService.
func (s *InMemoryService) Get(_ context.Context, appName, userID, sessionID string, optFns ...func(o *core.GetSessionOptions)) (*core.Session, error) {
	opts := core.GetSessionOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey(appName, userID, sessionID)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrSessionNotFound, sessionID)
	}

	clone := s.mergedCloneLocked(appName, userID, sess)

	if opts.Since != nil {
		var kept []core.Event
		for _, ev := range clone.Events {
			if ev.Timestamp.After(*opts.Since) {
				kept = append(kept, ev)
			}
		}
		clone.Events = kept
	}

	if opts.MaxEvents > 0 && len(clone.Events) > opts.MaxEvents {
		clone.Events = clone.Events[len(clone.Events)-opts.MaxEvents:]
	}

	return clone, nil
}

// List implements core.SessionService. Returned sessions carry no event
// history.
func (s *InMemoryService) List(_ context.Context, appName, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := userKey(appName, userID) + "/"

	var out []*core.Session
	for key, sess := range s.sessions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		clone := s.mergedCloneLocked(appName, userID, sess)
		clone.Events = nil
		out = append(out, clone)
	}

	return out, nil
}

// Delete implements core.SessionService. Unknown ids are a no-op.
func (s *InMemoryService) Delete(_ context.Context, appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionKey(appName, userID, sessionID))

	return nil
}

// AppendEvent implements core.SessionService. The event's state delta is
// routed by key prefix (app: and user: keys to the shared scopes, temp: keys
// dropped) and the event is appended to both the stored session and the
// caller's working snapshot. Partial events are a no-op.
func (s *InMemoryService) AppendEvent(_ context.Context, session *core.Session, event core.Event) error {
	if session == nil {
		return fmt.Errorf("nil session")
	}

	if event.IsPartial() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sessionKey(session.AppName, session.UserID, session.ID)]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrSessionNotFound, session.ID)
	}

	delta := core.StripTempKeys(event.Actions.StateDelta)
	s.routeStateLocked(session.AppName, session.UserID, stored, delta)

	stored.AppendEvent(event)

	if stored != session {
		session.AppendEvent(event)
	}

	return nil
}

// routeStateLocked applies a delta to the session's own state and the shared
// app/user scopes according to key prefix.
func (s *InMemoryService) routeStateLocked(appName, userID string, sess *core.Session, delta map[string]any) {
	for k, v := range delta {
		switch {
		case core.IsTempStateKey(k):
			// Never persisted.
		case core.IsAppStateKey(k):
			if s.appState[appName] == nil {
				s.appState[appName] = map[string]any{}
			}
			s.appState[appName][k] = v
		case core.IsUserStateKey(k):
			uk := userKey(appName, userID)
			if s.userState[uk] == nil {
				s.userState[uk] = map[string]any{}
			}
			s.userState[uk][k] = v
		default:
			sess.SetState(k, v)
		}
	}
}

// mergedCloneLocked clones the session and folds the shared scopes into its
// state view.
func (s *InMemoryService) mergedCloneLocked(appName, userID string, sess *core.Session) *core.Session {
	clone := sess.Clone()

	maps.Copy(clone.State, s.appState[appName])
	maps.Copy(clone.State, s.userState[userKey(appName, userID)])

	return clone
}
