package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
)

func TestLoopAgent_MaxIterations(t *testing.T) {
	worker := newScriptedAgent("Worker", "pass done")

	loop, err := NewLoopAgent("Refine", []core.Agent{worker}, func(o *LoopAgentOptions) {
		o.MaxIterations = 3
	})
	require.NoError(t, err)

	ictx, h := newRunContext(t, loop)
	require.NoError(t, loop.Run(ictx))

	events := h.Stop()
	assert.Len(t, events, 3)
	assert.Equal(t, 3, worker.runCount())
}

func TestLoopAgent_EscalationStopsAfterCurrentChild(t *testing.T) {
	worker := newScriptedAgent("Worker", "draft ready")
	critic := newScriptedAgent("Critic", "looks good")
	critic.escalateOn = "looks good"

	loop, err := NewLoopAgent("Refine", []core.Agent{worker, critic}, func(o *LoopAgentOptions) {
		o.MaxIterations = 10
	})
	require.NoError(t, err)

	ictx, h := newRunContext(t, loop)
	require.NoError(t, loop.Run(ictx))

	events := h.Stop()
	assert.Equal(t, []string{"Worker", "Critic"}, authorsOf(events))
	assert.Equal(t, 1, worker.runCount())
	assert.Equal(t, 1, critic.runCount())
}

func TestLoopAgent_EscalationSkipsLaterSiblings(t *testing.T) {
	critic := newScriptedAgent("Critic", "good enough")
	critic.escalateOn = "good enough"
	worker := newScriptedAgent("Worker", "never runs")

	loop, err := NewLoopAgent("Refine", []core.Agent{critic, worker})
	require.NoError(t, err)

	ictx, h := newRunContext(t, loop)
	require.NoError(t, loop.Run(ictx))

	events := h.Stop()
	assert.Equal(t, []string{"Critic"}, authorsOf(events))
	assert.Equal(t, 0, worker.runCount())
}

func TestLoopAgent_ChildErrorCarriesIteration(t *testing.T) {
	boom := fmt.Errorf("boom")

	worker := newScriptedAgent("Worker")
	worker.failWith = boom

	loop, err := NewLoopAgent("Refine", []core.Agent{worker}, func(o *LoopAgentOptions) {
		o.MaxIterations = 5
	})
	require.NoError(t, err)

	ictx, h := newRunContext(t, loop)

	runErr := loop.Run(ictx)
	h.Stop()

	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, boom)
	assert.Contains(t, runErr.Error(), "iteration 0")
	assert.Contains(t, runErr.Error(), `"Worker"`)
}
