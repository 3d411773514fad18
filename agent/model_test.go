package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func TestNewLLMAgent(t *testing.T) {
	a, err := NewLLMAgent("Helper", "gpt-4o-mini", func(o *LLMAgentOptions) {
		o.Description = "answers questions"
	})
	require.NoError(t, err)

	assert.Equal(t, "Helper", a.GetName())
	assert.Equal(t, "gpt-4o-mini", a.GetModelName())
	assert.Equal(t, "answers questions", a.GetDescription())
	assert.True(t, a.IsStreamingEnabled(), "streaming defaults on")
	assert.True(t, a.AllowTransferToParent())
	assert.True(t, a.AllowTransferToPeers())
}

func TestNewLLMAgent_Validation(t *testing.T) {
	_, err := NewLLMAgent("bad name", "gpt-4o-mini")
	assert.ErrorIs(t, err, core.ErrInvalidAgentName)

	_, err = NewLLMAgent("user", "gpt-4o-mini")
	assert.ErrorIs(t, err, core.ErrInvalidAgentName)

	_, err = NewLLMAgent("Helper", "")
	assert.Error(t, err, "model name is required")

	_, err = NewLLMAgent("Helper", "gpt-4o-mini", func(o *LLMAgentOptions) {
		o.Description = "ab"
	})
	assert.Error(t, err, "descriptions must carry enough signal for transfer routing")
}

func TestLLMAgent_ResolveModel(t *testing.T) {
	pinned := model.NewMockModel("pinned-model")

	reg := model.NewRegistry()
	require.NoError(t, reg.Register("mock-.*", func(name string) (model.Model, error) {
		return model.NewMockModel(name), nil
	}))

	// Pinned model wins over the registry.
	a, err := NewLLMAgent("Helper", "mock-model", func(o *LLMAgentOptions) {
		o.Model = pinned
		o.Registry = reg
	})
	require.NoError(t, err)

	m, err := a.ResolveModel()
	require.NoError(t, err)
	assert.Same(t, model.Model(pinned), m)

	// Registry resolution by name.
	b, err := NewLLMAgent("Helper2", "mock-model", func(o *LLMAgentOptions) {
		o.Registry = reg
	})
	require.NoError(t, err)

	m, err = b.ResolveModel()
	require.NoError(t, err)
	assert.Equal(t, "mock-model", m.Info().Name)

	// Neither configured.
	c, err := NewLLMAgent("Helper3", "mock-model")
	require.NoError(t, err)

	_, err = c.ResolveModel()
	assert.ErrorIs(t, err, model.ErrNoModel)
}

func TestLLMAgent_TransferPolicyOptions(t *testing.T) {
	a, err := NewLLMAgent("Guard", "gpt-4o-mini", func(o *LLMAgentOptions) {
		o.DisallowTransferToParent = true
		o.DisallowTransferToPeers = true
	})
	require.NoError(t, err)

	assert.False(t, a.AllowTransferToParent())
	assert.False(t, a.AllowTransferToPeers())
}

func TestLLMAgent_AddTools(t *testing.T) {
	a, err := NewLLMAgent("Helper", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Empty(t, a.GetTools())

	echo, err := tool.NewFunctionTool(
		"echo", "Echoes its arguments back.",
		map[string]any{"type": "object"},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return args, nil
		},
	)
	require.NoError(t, err)

	a.AddTools(echo)
	require.Len(t, a.GetTools(), 1)
	assert.Equal(t, "echo", a.GetTools()[0].Name())
}

func TestLLMAgent_InstructionRendering(t *testing.T) {
	a, err := NewLLMAgent("Helper", "gpt-4o-mini", func(o *LLMAgentOptions) {
		o.Instruction = NewInstructionFromText("Focus on {topic}.")
		o.GlobalInstruction = NewInstructionFromText("Always answer in English.")
	})
	require.NoError(t, err)

	ictx := newInstructionContext(t, map[string]any{"topic": "weather"})

	instr, err := a.Instruction(ictx)
	require.NoError(t, err)
	assert.Equal(t, "Focus on weather.", instr)

	global, err := a.GlobalInstruction(ictx)
	require.NoError(t, err)
	assert.Equal(t, "Always answer in English.", global)

	// Unset instructions resolve empty without touching state.
	plain, err := NewLLMAgent("Plain", "gpt-4o-mini")
	require.NoError(t, err)

	instr, err = plain.Instruction(ictx)
	require.NoError(t, err)
	assert.Equal(t, "", instr)
}
