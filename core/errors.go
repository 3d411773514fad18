package core

import "errors"

// Sentinel errors shared across the framework. Fatal errors abort the
// invocation and surface on the runner's error channel; recoverable
// conditions travel inside events instead (error-flagged responses,
// function responses carrying an Error field).
var (
	// ErrToolNotFound is returned when a model requests a function whose
	// name is not present in the request's tool registry. Fatal.
	ErrToolNotFound = errors.New("tool not found")

	// ErrTooManyModelCalls is returned when the per-invocation model call
	// ceiling is exceeded. Fatal.
	ErrTooManyModelCalls = errors.New("maximum model calls exceeded")

	// ErrIncompleteStream is returned when a step loop ends on a partial
	// event, meaning the model stream was cut off mid-turn. Fatal.
	ErrIncompleteStream = errors.New("stream ended with a partial response")

	// ErrInvalidAgentName is returned when an agent is constructed with a
	// name outside [A-Za-z0-9_]+ or colliding with a reserved identifier.
	ErrInvalidAgentName = errors.New("invalid agent name")

	// ErrSessionNotFound is returned by session services for unknown
	// (appName, userID, sessionID) triples.
	ErrSessionNotFound = errors.New("session not found")

	// ErrArtifactNotFound is returned by artifact services when a filename
	// or version does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")
)
