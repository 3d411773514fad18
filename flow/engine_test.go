package flow_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/internal/testutil"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func newLLMAgent(t *testing.T, name string, m model.Model, optFns ...func(o *agent.LLMAgentOptions)) *agent.LLMAgent {
	t.Helper()

	fns := append([]func(o *agent.LLMAgentOptions){func(o *agent.LLMAgentOptions) {
		o.Model = m
	}}, optFns...)

	a, err := agent.NewLLMAgent(name, "mock-model", fns...)
	require.NoError(t, err)

	return a
}

func newWeatherTool(t *testing.T) (tool.Tool, *sync.Map) {
	t.Helper()

	var seenArgs sync.Map

	ft, err := tool.NewFunctionTool(
		"get_weather", "Get the current weather for a city",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
			"required": []string{"city"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			seenArgs.Store("city", args["city"])
			return map[string]any{"temperature_c": 18}, nil
		},
	)
	require.NoError(t, err)

	return ft, &seenArgs
}

func TestEngine_SimpleTextResponse(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueText("Paris is the capital of France.")

	a := newLLMAgent(t, "Helper", m)

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "What is the capital of France?"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 1)

	final := events[0]
	assert.Equal(t, "Helper", final.Author)
	assert.True(t, final.IsFinalResponse())
	assert.Equal(t, "Paris is the capital of France.", final.Content.Text())
}

func TestEngine_ToolCallRoundTrip(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueFunctionCall("get_weather", `{"city":"Paris"}`)
	m.EnqueueText("It is 18 degrees in Paris.")

	weather, seenArgs := newWeatherTool(t)
	a := newLLMAgent(t, "WeatherAgent", m, func(o *agent.LLMAgentOptions) {
		o.Tools = []tool.Tool{weather}
	})

	sess := testutil.NewSessionBuilder("s1").Build()
	h := testutil.NewHarness(sess)
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "Weather in Paris?"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 3)

	calls := events[0].GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.NotEmpty(t, calls[0].ID, "calls without provider ids get one assigned")

	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, calls[0].ID, responses[0].ID)
	assert.Equal(t, 18, responses[0].Response["temperature_c"])
	assert.Equal(t, "user", events[1].Content.Role)

	city, _ := seenArgs.Load("city")
	assert.Equal(t, "Paris", city)

	assert.True(t, events[2].IsFinalResponse())
	assert.Equal(t, "It is 18 degrees in Paris.", events[2].Content.Text())

	assert.Len(t, sess.GetEvents(), 3, "all non-partial events persisted")
}

func TestEngine_UnknownToolIsFatal(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueFunctionCall("missing_tool", `{}`)

	a := newLLMAgent(t, "Helper", m)

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "go"))

	err := a.Run(ictx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolNotFound)

	h.Stop()
}

func TestEngine_TrailingPartialIsFatal(t *testing.T) {
	m := model.NewMockModel("mock-model")
	partial := true
	m.EnqueueResponse(model.Response{
		Partial: &partial,
		Content: core.NewTextContent("assistant", "half an ans"),
	})

	a := newLLMAgent(t, "Helper", m)

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "go"))

	err := a.Run(ictx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIncompleteStream)

	h.Stop()
}

func TestEngine_StreamingSharesPartialEventID(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.AddResponse("hi", "abc")

	a := newLLMAgent(t, "Helper", m)

	sess := testutil.NewSessionBuilder("s1").Build()
	h := testutil.NewHarness(sess)
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "hi"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 4, "three partial chunks plus the final event")

	partialID := events[0].ID
	for _, ev := range events[:3] {
		assert.True(t, ev.IsPartial())
		assert.Equal(t, partialID, ev.ID, "chunks of one turn share an event id")
	}

	final := events[3]
	assert.False(t, final.IsPartial())
	assert.NotEqual(t, partialID, final.ID)
	assert.Equal(t, "abc", final.Content.Text())

	assert.Len(t, sess.GetEvents(), 1, "only the final event is persisted")
}

func TestEngine_LongRunningTool(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueFunctionCall("background_job", `{}`)

	job, err := tool.NewFunctionTool(
		"background_job", "Start a long-running job", map[string]any{"type": "object"},
		func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil },
		func(o *tool.FunctionToolOptions) { o.LongRunning = true },
	)
	require.NoError(t, err)

	a := newLLMAgent(t, "Helper", m, func(o *agent.LLMAgentOptions) {
		o.Tools = []tool.Tool{job}
	})

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "start it"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 2, "no follow-up model call while the job is pending")

	callID := events[0].GetFunctionCalls()[0].ID
	assert.Equal(t, []string{callID}, events[0].LongRunningToolIDs)

	assert.Empty(t, events[1].GetFunctionResponses(), "nil long-running results produce no response part")
	assert.Equal(t, []string{callID}, events[1].LongRunningToolIDs)
	assert.True(t, events[1].IsFinalResponse())
}

func TestEngine_OutputKeyStoresAnswer(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueText("blue")

	a := newLLMAgent(t, "Helper", m, func(o *agent.LLMAgentOptions) {
		o.OutputKey = "favorite_color"
	})

	sess := testutil.NewSessionBuilder("s1").Build()
	h := testutil.NewHarness(sess)
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "pick a color"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 1)
	assert.Equal(t, "blue", events[0].Actions.StateDelta["favorite_color"])

	v, ok := sess.GetState("favorite_color")
	require.True(t, ok)
	assert.Equal(t, "blue", v)
}

func TestEngine_OutputSchemaValidationFailure(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueText(`{"country":"France"}`)

	a := newLLMAgent(t, "Helper", m, func(o *agent.LLMAgentOptions) {
		o.OutputSchema = map[string]any{
			"type":     "object",
			"required": []any{"city"},
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
		}
	})

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "where?"))

	require.NoError(t, a.Run(ictx), "schema violations are not fatal")

	events := h.Stop()
	require.Len(t, events, 1)

	final := events[0]
	require.NotNil(t, final.ErrorCode)
	assert.Equal(t, flow.OutputSchemaValidationFailed, *final.ErrorCode)
	assert.Contains(t, *final.ErrorMessage, "city")
}

func TestEngine_OutputSchemaCanonicalizesAnswer(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueText("{\n  \"city\": \"Paris\"\n}")

	a := newLLMAgent(t, "Helper", m, func(o *agent.LLMAgentOptions) {
		o.OutputSchema = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
		}
	})

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "where?"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].ErrorCode)
	assert.Equal(t, `{"city":"Paris"}`, events[0].Content.Text())
}

func TestEngine_TransferSplicesTargetRun(t *testing.T) {
	routerModel := model.NewMockModel("mock-model")
	routerModel.EnqueueFunctionCall(tool.TransferToAgentName, `{"agent_name":"MathAgent"}`)

	mathModel := model.NewMockModel("mock-model")
	mathModel.EnqueueText("The answer is 4.")

	router := newLLMAgent(t, "Router", routerModel)
	math := newLLMAgent(t, "MathAgent", mathModel, func(o *agent.LLMAgentOptions) {
		o.Description = "Math expert"
	})
	require.NoError(t, router.SetSubAgents(math))

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(router, core.NewTextContent("user", "what is 2+2?"))

	require.NoError(t, router.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 3)

	assert.Equal(t, "Router", events[0].Author)
	require.NotNil(t, events[1].Actions.TransferToAgent)
	assert.Equal(t, "MathAgent", *events[1].Actions.TransferToAgent)

	final := events[2]
	assert.Equal(t, "MathAgent", final.Author)
	assert.Equal(t, "The answer is 4.", final.Content.Text())
}

func TestEngine_TransferToUnknownAgent(t *testing.T) {
	routerModel := model.NewMockModel("mock-model")
	routerModel.EnqueueFunctionCall(tool.TransferToAgentName, `{"agent_name":"Nobody"}`)

	router := newLLMAgent(t, "Router", routerModel)
	helperModel := model.NewMockModel("mock-model")
	helper := newLLMAgent(t, "Helper", helperModel)
	require.NoError(t, router.SetSubAgents(helper))

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(router, core.NewTextContent("user", "go"))

	err := router.Run(ictx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidAgentName)

	h.Stop()
}

func TestEngine_ModelCallCeiling(t *testing.T) {
	m := model.NewMockModel("mock-model")
	m.EnqueueFunctionCall("get_weather", `{"city":"Paris"}`)
	m.EnqueueText("never reached")

	weather, _ := newWeatherTool(t)
	a := newLLMAgent(t, "Helper", m, func(o *agent.LLMAgentOptions) {
		o.Tools = []tool.Tool{weather}
	})

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "weather?"), func(o *core.InvocationContextOptions) {
		o.MaxModelCalls = 1
	})

	err := a.Run(ictx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTooManyModelCalls)

	h.Stop()
}

func TestEngine_BeforeModelCallbackShortCircuit(t *testing.T) {
	m := model.NewMockModel("mock-model")

	a := newLLMAgent(t, "Helper", m, func(o *agent.LLMAgentOptions) {
		o.BeforeModelCallbacks = []flow.BeforeModelCallback{
			func(_ *core.InvocationContext, _ *model.Request) (*model.Response, error) {
				return &model.Response{Content: core.NewTextContent("assistant", "cached answer")}, nil
			},
		}
	})

	h := testutil.NewHarness(testutil.NewSessionBuilder("s1").Build())
	ictx := h.NewInvocationContext(a, core.NewTextContent("user", "anything"))

	require.NoError(t, a.Run(ictx))

	events := h.Stop()
	require.Len(t, events, 1)
	assert.Equal(t, "cached answer", events[0].Content.Text())
}
