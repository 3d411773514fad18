package core

import (
	"context"
	"time"
)

// GetSessionOptions narrows the event history returned by SessionService.Get.
type GetSessionOptions struct {
	// MaxEvents limits the history to the N most recent events. 0 means all.
	MaxEvents int
	// Since filters out events with a timestamp at or before the given time.
	Since *time.Time
}

// SessionService persists sessions, their evolving state and event history.
// Sessions are scoped by (appName, userID, sessionID).
type SessionService interface {
	// Create creates a session. An empty sessionID asks the service to
	// generate one. Keys in initialState prefixed app: or user: seed the
	// respective shared scopes.
	Create(ctx context.Context, appName, userID, sessionID string, initialState map[string]any) (*Session, error)

	// Get retrieves a session with the merged state view (app: and user:
	// scoped keys folded in). Returns ErrSessionNotFound for unknown ids.
	Get(ctx context.Context, appName, userID, sessionID string, optFns ...func(o *GetSessionOptions)) (*Session, error)

	// List returns the user's sessions without event history.
	List(ctx context.Context, appName, userID string) ([]*Session, error)

	// Delete removes a session. Unknown ids are a no-op.
	Delete(ctx context.Context, appName, userID, sessionID string) error

	// AppendEvent applies the event's state delta (routing app: and user:
	// keys to the shared scopes, dropping temp: keys) and appends the event
	// to the session history. Partial events are a no-op.
	AppendEvent(ctx context.Context, session *Session, event Event) error
}

// Artifact is a named binary payload stored outside session state.
type Artifact struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

// ArtifactService stores versioned binary artifacts keyed by
// (appName, userID, sessionID, filename). Filenames carrying the "user:"
// prefix live in a session-independent per-user namespace.
type ArtifactService interface {
	// Save stores a new version of the artifact and returns its version
	// number. Versions start at 0 and increase monotonically per filename.
	Save(ctx context.Context, appName, userID, sessionID, filename string, artifact Artifact) (int, error)

	// Load retrieves an artifact version; a negative version loads the
	// latest. Returns ErrArtifactNotFound for unknown filenames/versions.
	Load(ctx context.Context, appName, userID, sessionID, filename string, version int) (*Artifact, error)

	// Versions lists the stored version numbers for a filename in
	// ascending order.
	Versions(ctx context.Context, appName, userID, sessionID, filename string) ([]int, error)

	// ListKeys returns the filenames visible to the session, including the
	// user-scoped namespace.
	ListKeys(ctx context.Context, appName, userID, sessionID string) ([]string, error)

	// Delete removes all versions of a filename. Unknown names are a no-op.
	Delete(ctx context.Context, appName, userID, sessionID, filename string) error
}

// MemoryResult is a single hit returned by MemoryService.Search.
type MemoryResult struct {
	SessionID string    `json:"session_id"`
	Author    string    `json:"author"`
	Content   *Content  `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryService provides long-term recall across completed sessions.
type MemoryService interface {
	// AddSession ingests a session's conversation into the memory corpus.
	AddSession(ctx context.Context, session *Session) error

	// Search returns memory entries relevant to the query for a user.
	Search(ctx context.Context, appName, userID, query string) ([]MemoryResult, error)
}
