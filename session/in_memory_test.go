package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
)

func TestInMemoryService_CreateAndGet(t *testing.T) {
	svc := NewInMemoryService()

	created, err := svc.Create(t.Context(), "app", "user-1", "s1", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "s1", created.ID)

	got, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)

	v, ok := got.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestInMemoryService_CreateGeneratesID(t *testing.T) {
	svc := NewInMemoryService()

	sess, err := svc.Create(t.Context(), "app", "user-1", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
}

func TestInMemoryService_CreateDuplicateFails(t *testing.T) {
	svc := NewInMemoryService()

	_, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)

	_, err = svc.Create(t.Context(), "app", "user-1", "s1", nil)
	assert.Error(t, err)
}

func TestInMemoryService_GetUnknown(t *testing.T) {
	svc := NewInMemoryService()

	_, err := svc.Get(t.Context(), "app", "user-1", "nope")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryService_GetReturnsClone(t *testing.T) {
	svc := NewInMemoryService()

	_, err := svc.Create(t.Context(), "app", "user-1", "s1", map[string]any{"k": "v"})
	require.NoError(t, err)

	first, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)
	first.SetState("k", "mutated")

	second, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)

	v, _ := second.GetState("k")
	assert.Equal(t, "v", v, "mutating a returned session must not affect the store")
}

func TestInMemoryService_AppendEventRoutesState(t *testing.T) {
	svc := NewInMemoryService()

	sess, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)

	ev := testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").
		AssistantText("done").
		StateDelta("plain", 1).
		StateDelta("app:shared", 2).
		StateDelta("user:pref", 3).
		StateDelta("temp:scratch", 4).
		Build()

	require.NoError(t, svc.AppendEvent(t.Context(), sess, ev))

	got, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)

	for key, want := range map[string]any{"plain": 1, "app:shared": 2, "user:pref": 3} {
		v, ok := got.GetState(key)
		require.Truef(t, ok, "key %q", key)
		assert.Equal(t, want, v)
	}

	_, ok := got.GetState("temp:scratch")
	assert.False(t, ok, "temp keys are never persisted")
}

func TestInMemoryService_AppScopeSharedAcrossSessions(t *testing.T) {
	svc := NewInMemoryService()

	s1, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), "app", "user-2", "s2", nil)
	require.NoError(t, err)

	ev := testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").
		AssistantText("x").
		StateDelta("app:motd", "hello").
		StateDelta("user:lang", "de").
		Build()
	require.NoError(t, svc.AppendEvent(t.Context(), s1, ev))

	other, err := svc.Get(t.Context(), "app", "user-2", "s2")
	require.NoError(t, err)

	v, ok := other.GetState("app:motd")
	require.True(t, ok, "app scope is visible to every user")
	assert.Equal(t, "hello", v)

	_, ok = other.GetState("user:lang")
	assert.False(t, ok, "user scope stays per user")
}

func TestInMemoryService_AppendEventUpdatesCallerSnapshot(t *testing.T) {
	svc := NewInMemoryService()

	_, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)

	// Work on a snapshot the way the runner does.
	snapshot, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)

	ev := testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").AssistantText("hi").Build()
	require.NoError(t, svc.AppendEvent(t.Context(), snapshot, ev))

	assert.Len(t, snapshot.GetEvents(), 1, "the working snapshot sees the append immediately")

	stored, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)
	assert.Len(t, stored.GetEvents(), 1)
}

func TestInMemoryService_AppendPartialIsNoOp(t *testing.T) {
	svc := NewInMemoryService()

	sess, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)

	ev := testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").AssistantText("hi").Partial(true).Build()
	require.NoError(t, svc.AppendEvent(t.Context(), sess, ev))

	got, err := svc.Get(t.Context(), "app", "user-1", "s1")
	require.NoError(t, err)
	assert.Empty(t, got.GetEvents())
}

func TestInMemoryService_GetOptions(t *testing.T) {
	svc := NewInMemoryService()

	sess, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		ev := testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").AssistantText(text).Build()
		require.NoError(t, svc.AppendEvent(t.Context(), sess, ev))
	}

	limited, err := svc.Get(t.Context(), "app", "user-1", "s1", func(o *core.GetSessionOptions) {
		o.MaxEvents = 2
	})
	require.NoError(t, err)
	require.Len(t, limited.Events, 2)
	assert.Equal(t, "two", limited.Events[0].Content.Text())

	future := time.Now().Add(time.Hour)
	since, err := svc.Get(t.Context(), "app", "user-1", "s1", func(o *core.GetSessionOptions) {
		o.Since = &future
	})
	require.NoError(t, err)
	assert.Empty(t, since.Events)
}

func TestInMemoryService_ListAndDelete(t *testing.T) {
	svc := NewInMemoryService()

	_, err := svc.Create(t.Context(), "app", "user-1", "s1", nil)
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), "app", "user-1", "s2", nil)
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), "app", "user-2", "other", nil)
	require.NoError(t, err)

	sessions, err := svc.List(t.Context(), "app", "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, svc.Delete(t.Context(), "app", "user-1", "s1"))
	require.NoError(t, svc.Delete(t.Context(), "app", "user-1", "missing"))

	sessions, err = svc.List(t.Context(), "app", "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	_, err = svc.Get(t.Context(), "app", "user-1", "s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}
