package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/internal/testutil"
)

func archivedSession(t *testing.T, svc *InMemoryService) {
	t.Helper()

	sess := testutil.NewSessionBuilder("s1").App("app").User("user-1").
		Event(testutil.NewEventBuilder().Invocation("inv-1").Author("user").UserText("when is the team offsite?").Build()).
		Event(testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").AssistantText("the offsite is in Lisbon next March").Build()).
		Build()

	require.NoError(t, svc.AddSession(t.Context(), sess))
}

func TestInMemoryService_SearchFindsIngestedTurns(t *testing.T) {
	svc := NewInMemoryService()
	archivedSession(t, svc)

	results, err := svc.Search(t.Context(), "app", "user-1", "offsite location")
	require.NoError(t, err)
	require.Len(t, results, 2, "both turns mention the offsite")

	assert.Equal(t, "s1", results[0].SessionID)
	assert.Contains(t, results[1].Content.Text(), "Lisbon")
}

func TestInMemoryService_SearchIsCaseInsensitive(t *testing.T) {
	svc := NewInMemoryService()
	archivedSession(t, svc)

	results, err := svc.Search(t.Context(), "app", "user-1", "LISBON")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Assistant", results[0].Author)
}

func TestInMemoryService_SearchScopedPerUser(t *testing.T) {
	svc := NewInMemoryService()
	archivedSession(t, svc)

	results, err := svc.Search(t.Context(), "app", "user-2", "offsite")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Search(t.Context(), "other-app", "user-1", "offsite")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryService_SearchNoMatchOrEmptyQuery(t *testing.T) {
	svc := NewInMemoryService()
	archivedSession(t, svc)

	results, err := svc.Search(t.Context(), "app", "user-1", "quarterly revenue")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Search(t.Context(), "app", "user-1", "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryService_AddSessionSkipsNonContent(t *testing.T) {
	svc := NewInMemoryService()

	sess := testutil.NewSessionBuilder("s1").App("app").User("user-1").
		Event(testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").StateDelta("k", "v").Build()).
		Event(testutil.NewEventBuilder().Invocation("inv-1").Author("Assistant").AssistantText("useful answer").Build()).
		Build()

	require.NoError(t, svc.AddSession(t.Context(), sess))

	results, err := svc.Search(t.Context(), "app", "user-1", "useful")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestInMemoryService_AddNilSession(t *testing.T) {
	svc := NewInMemoryService()
	assert.NoError(t, svc.AddSession(t.Context(), nil))
}
