// Package memory provides MemoryService implementations for long-term
// recall across completed sessions.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// InMemoryService is a naive process-local MemoryService. Search is a
// case-insensitive word-overlap scan over ingested conversation turns;
// suitable for tests and demos, not for semantic retrieval. Swap in a vector
// index for production recall.
type InMemoryService struct {
	mu      sync.RWMutex
	entries map[string][]core.MemoryResult
}

// NewInMemoryService constructs an empty in-memory memory service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{entries: map[string][]core.MemoryResult{}}
}

func scopeKey(appName, userID string) string { return appName + "/" + userID }

// AddSession implements core.MemoryService. Only content-bearing,
// non-partial turns are ingested.
func (s *InMemoryService) AddSession(_ context.Context, session *core.Session) error {
	if session == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopeKey(session.AppName, session.UserID)

	for _, ev := range session.GetConversationHistory() {
		if ev.Content == nil || ev.Content.Text() == "" {
			continue
		}

		s.entries[key] = append(s.entries[key], core.MemoryResult{
			SessionID: session.ID,
			Author:    ev.Author,
			Content:   ev.Content,
			Timestamp: ev.Timestamp,
		})
	}

	return nil
}

// Search implements core.MemoryService.
func (s *InMemoryService) Search(_ context.Context, appName, userID, query string) ([]core.MemoryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return []core.MemoryResult{}, nil
	}

	var out []core.MemoryResult

	for _, entry := range s.entries[scopeKey(appName, userID)] {
		text := strings.ToLower(entry.Content.Text())

		for _, w := range words {
			if strings.Contains(text, w) {
				out = append(out, entry)
				break
			}
		}
	}

	return out, nil
}
