// Package artifact provides ArtifactService implementations for versioned
// binary payloads referenced from session state.
package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// userNamespacePrefix marks filenames stored per user instead of per
// session, surviving across conversations.
const userNamespacePrefix = "user:"

// InMemoryService is a process-local ArtifactService. Artifacts are stored
// as append-only version lists per (scope, filename); data is copied on save
// and load so callers cannot mutate stored buffers. Intended for tests and
// prototypes only: no quotas, no eviction, no durability.
type InMemoryService struct {
	mu    sync.RWMutex
	files map[string]map[string][]core.Artifact
}

// NewInMemoryService constructs an empty in-memory artifact service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{files: map[string]map[string][]core.Artifact{}}
}

// scopeFor returns the namespace an artifact lives in: per user for
// "user:"-prefixed filenames, per session otherwise.
func scopeFor(appName, userID, sessionID, filename string) string {
	if strings.HasPrefix(filename, userNamespacePrefix) {
		return appName + "/" + userID
	}
	return appName + "/" + userID + "/" + sessionID
}

func copyArtifact(a core.Artifact) core.Artifact {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	a.Data = data
	return a
}

// Save implements core.ArtifactService.
func (s *InMemoryService) Save(_ context.Context, appName, userID, sessionID, filename string, artifact core.Artifact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := scopeFor(appName, userID, sessionID, filename)
	if s.files[scope] == nil {
		s.files[scope] = map[string][]core.Artifact{}
	}

	s.files[scope][filename] = append(s.files[scope][filename], copyArtifact(artifact))

	return len(s.files[scope][filename]) - 1, nil
}

// Load implements core.ArtifactService. A negative version loads the latest.
func (s *InMemoryService) Load(_ context.Context, appName, userID, sessionID, filename string, version int) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.files[scopeFor(appName, userID, sessionID, filename)][filename]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrArtifactNotFound, filename)
	}

	if version < 0 {
		version = len(versions) - 1
	}

	if version >= len(versions) {
		return nil, fmt.Errorf("%w: %q version %d", core.ErrArtifactNotFound, filename, version)
	}

	a := copyArtifact(versions[version])

	return &a, nil
}

// Versions implements core.ArtifactService.
func (s *InMemoryService) Versions(_ context.Context, appName, userID, sessionID, filename string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.files[scopeFor(appName, userID, sessionID, filename)][filename]

	out := make([]int, len(versions))
	for i := range versions {
		out[i] = i
	}

	return out, nil
}

// ListKeys implements core.ArtifactService. The result covers the session
// namespace plus the user's cross-session namespace, sorted for determinism.
func (s *InMemoryService) ListKeys(_ context.Context, appName, userID, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}

	for filename := range s.files[appName+"/"+userID+"/"+sessionID] {
		keys = append(keys, filename)
	}
	for filename := range s.files[appName+"/"+userID] {
		keys = append(keys, filename)
	}

	sort.Strings(keys)

	return keys, nil
}

// Delete implements core.ArtifactService. Unknown filenames are a no-op.
func (s *InMemoryService) Delete(_ context.Context, appName, userID, sessionID, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files[scopeFor(appName, userID, sessionID, filename)], filename)

	return nil
}
