package flow

import "github.com/hupe1980/agentflow/core"

// NewSingleFlow builds the pipeline for an agent without transfer targets:
// request assembly, planning, code execution and output schema handling.
func NewSingleFlow(agent FlowAgent) *Engine {
	e := newEngine(agent, nil, nil)

	e.AddRequestProcessor(&basicConfigProcessor{})
	e.AddRequestProcessor(&instructionsProcessor{})
	e.AddRequestProcessor(&identityProcessor{})
	e.AddRequestProcessor(&contentsProcessor{})
	e.AddRequestProcessor(&memoryProcessor{})
	e.AddRequestProcessor(&planningProcessor{})
	e.AddRequestProcessor(&codeExecutionProcessor{})
	e.AddRequestProcessor(&outputSchemaProcessor{})

	e.AddResponseProcessor(&planningResponseProcessor{})
	e.AddResponseProcessor(&codeExecutionResponseProcessor{})
	e.AddResponseProcessor(&outputSchemaResponseProcessor{})

	return e
}

// NewAutoFlow builds the single-flow pipeline plus agent transfer support.
func NewAutoFlow(agent FlowAgent) *Engine {
	e := newEngine(agent, nil, nil)

	e.AddRequestProcessor(&basicConfigProcessor{})
	e.AddRequestProcessor(&instructionsProcessor{})
	e.AddRequestProcessor(&identityProcessor{})
	e.AddRequestProcessor(&contentsProcessor{})
	e.AddRequestProcessor(&memoryProcessor{})
	e.AddRequestProcessor(&planningProcessor{})
	e.AddRequestProcessor(&codeExecutionProcessor{})
	e.AddRequestProcessor(&agentTransferProcessor{})
	e.AddRequestProcessor(&outputSchemaProcessor{})

	e.AddResponseProcessor(&planningResponseProcessor{})
	e.AddResponseProcessor(&codeExecutionResponseProcessor{})
	e.AddResponseProcessor(&outputSchemaResponseProcessor{})

	return e
}

// SelectFlow picks the pipeline for an agent based on its position in the
// tree: agents with children or a parent get transfer support.
func SelectFlow(flowAgent FlowAgent, self core.Agent) Flow {
	if self != nil && (len(self.SubAgents()) > 0 || self.Parent() != nil) {
		return NewAutoFlow(flowAgent)
	}

	return NewSingleFlow(flowAgent)
}
