package core

import "strings"

// State key prefixes partition session state into scopes:
//
//	app:   shared by every session of the application
//	user:  shared by every session of one user
//	temp:  visible during the current invocation only, never persisted
//
// Unprefixed keys belong to the individual session.
const (
	StateAppPrefix  = "app:"
	StateUserPrefix = "user:"
	StateTempPrefix = "temp:"
)

// IsAppStateKey reports whether the key lives in the app-wide scope.
func IsAppStateKey(k string) bool { return strings.HasPrefix(k, StateAppPrefix) }

// IsUserStateKey reports whether the key lives in the per-user scope.
func IsUserStateKey(k string) bool { return strings.HasPrefix(k, StateUserPrefix) }

// IsTempStateKey reports whether the key is invocation-scoped and must not
// be persisted.
func IsTempStateKey(k string) bool { return strings.HasPrefix(k, StateTempPrefix) }

// StripTempKeys returns a copy of delta without temp: entries. The original
// map is never mutated. A nil or temp-only delta yields an empty map.
func StripTempKeys(delta map[string]any) map[string]any {
	out := make(map[string]any, len(delta))
	for k, v := range delta {
		if IsTempStateKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
