// Package prompt implements placeholder resolution for agent instructions.
//
// Supported placeholder forms:
//
//	{var}            session state key, error when missing
//	{var?}           session state key, empty when missing
//	{app:key}        app-scoped state key (prefix included in the lookup)
//	{user:key}       user-scoped state key
//	{temp:key}       invocation-scoped state key
//	{artifact.name}  text content of the named artifact's latest version
//
// Anything between braces that does not parse as a valid reference is left
// verbatim, so JSON snippets and prose braces survive untouched.
package prompt

import (
	"fmt"
	"strings"
)

// Context supplies the lookups a template may reference.
type Context struct {
	// State resolves a (possibly scope-prefixed) state key.
	State func(key string) (any, bool)
	// Artifact resolves an artifact name to its text content.
	Artifact func(name string) (string, error)
}

// Render substitutes all placeholders in tmpl. Missing mandatory state keys
// and artifact load failures produce an error; optional keys ({var?})
// resolve to the empty string when absent.
func Render(tmpl string, rctx Context) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		open := strings.IndexByte(tmpl[i:], '{')
		if open < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		open += i

		b.WriteString(tmpl[i:open])

		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			b.WriteString(tmpl[open:])
			break
		}
		close += open

		ref := tmpl[open+1 : close]

		resolved, ok, err := resolve(ref, rctx)
		if err != nil {
			return "", err
		}

		if !ok {
			// Not a valid reference, keep the braces verbatim.
			b.WriteString(tmpl[open : close+1])
		} else {
			b.WriteString(resolved)
		}

		i = close + 1
	}

	return b.String(), nil
}

func resolve(ref string, rctx Context) (string, bool, error) {
	optional := strings.HasSuffix(ref, "?")
	if optional {
		ref = strings.TrimSuffix(ref, "?")
	}

	if name, isArtifact := strings.CutPrefix(ref, "artifact."); isArtifact {
		if name == "" || rctx.Artifact == nil {
			return "", false, nil
		}

		text, err := rctx.Artifact(name)
		if err != nil {
			if optional {
				return "", true, nil
			}
			return "", false, fmt.Errorf("resolve artifact %q: %w", name, err)
		}

		return text, true, nil
	}

	if !validStateRef(ref) {
		return "", false, nil
	}

	if rctx.State == nil {
		if optional {
			return "", true, nil
		}
		return "", false, fmt.Errorf("context variable not found: %q", ref)
	}

	v, found := rctx.State(ref)
	if !found {
		if optional {
			return "", true, nil
		}
		return "", false, fmt.Errorf("context variable not found: %q", ref)
	}

	if s, isStr := v.(string); isStr {
		return s, true, nil
	}

	return fmt.Sprintf("%v", v), true, nil
}

// validStateRef accepts an identifier with an optional app:/user:/temp:
// scope prefix.
func validStateRef(ref string) bool {
	for _, scope := range []string{"app:", "user:", "temp:"} {
		if rest, ok := strings.CutPrefix(ref, scope); ok {
			return validIdent(rest)
		}
	}

	return validIdent(ref)
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}
