package core

import "testing"

func TestStateKeyPrefixes(t *testing.T) {
	if !IsAppStateKey("app:theme") {
		t.Error("app: key not detected")
	}
	if !IsUserStateKey("user:locale") {
		t.Error("user: key not detected")
	}
	if !IsTempStateKey("temp:auth_response:abc") {
		t.Error("temp: key not detected")
	}
	if IsAppStateKey("theme") || IsUserStateKey("theme") || IsTempStateKey("theme") {
		t.Error("unprefixed key should match no scope")
	}
}

func TestStripTempKeys(t *testing.T) {
	delta := map[string]any{
		"keep":      1,
		"app:keep":  2,
		"temp:drop": 3,
	}

	out := StripTempKeys(delta)

	if len(out) != 2 {
		t.Fatalf("expected 2 keys, got %d: %+v", len(out), out)
	}
	if _, ok := out["temp:drop"]; ok {
		t.Error("temp: key survived")
	}
	if _, ok := delta["temp:drop"]; !ok {
		t.Error("original map must not be mutated")
	}
}

func TestStripTempKeys_NilDelta(t *testing.T) {
	out := StripTempKeys(nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty map, got %v", out)
	}
}
