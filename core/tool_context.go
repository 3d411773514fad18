package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agentflow/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, transfers, escalation signals, artifact diffs, credential
// requests) without mutating the underlying session; the function executor
// merges the accumulated actions into the batch's function response event.
type ToolContext struct {
	ictx           *InvocationContext
	functionCallID string
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent
// InvocationContext and a unique functionCallID.
func NewToolContext(ictx *InvocationContext, functionCallID string) *ToolContext {
	return &ToolContext{
		ictx:           ictx,
		functionCallID: functionCallID,
		eventActions:   EventActions{},
		loggerAdapter:  newLoggerAdapter(ictx.Logger()),
	}
}

// Context returns the cancellation context of the invocation.
func (tc *ToolContext) Context() context.Context { return tc.ictx.Context }

// InvocationID returns the invocation id the tool call belongs to.
func (tc *ToolContext) InvocationID() string { return tc.ictx.InvocationID }

// SessionID returns the session id the tool call belongs to.
func (tc *ToolContext) SessionID() string { return tc.ictx.SessionID() }

// FunctionCallID returns the id of the function call being served.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the dispatching agent.
func (tc *ToolContext) AgentName() string { return tc.ictx.AgentName() }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// GetState retrieves the state value for the given key, staged deltas first.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if v, ok := tc.eventActions.StateDelta[k]; ok {
		return v, true
	}

	return tc.ictx.GetState(k)
}

// SetState records a state mutation in the local EventActions delta. The
// mutation reaches the session when the function response event is appended.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization requests that the tool result be returned to the caller
// verbatim instead of being summarized by a follow-up model call.
func (tc *ToolContext) SkipSummarization() {
	if tc.eventActions.SkipSummarization == nil {
		tc.eventActions.SkipSummarization = boolPtr(true)
	}
}

// TransferToAgent signals orchestration to hand control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.eventActions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate requests that an enclosing loop terminate.
func (tc *ToolContext) Escalate() {
	if tc.eventActions.Escalate == nil {
		tc.eventActions.Escalate = boolPtr(true)
	}

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// RequestCredential records that this tool call needs a credential from the
// caller. The function executor synthesizes a credential-request function
// call from the accumulated configs and pauses the original call.
func (tc *ToolContext) RequestCredential(authConfig any) {
	if tc.eventActions.RequestedAuthConfigs == nil {
		tc.eventActions.RequestedAuthConfigs = map[string]any{}
	}

	tc.eventActions.RequestedAuthConfigs[tc.functionCallID] = authConfig
}

// GetAuthResponse returns the credential payload supplied for this call when
// the invocation resumed after a credential request.
func (tc *ToolContext) GetAuthResponse() (any, bool) {
	return tc.GetState(StateTempPrefix + "auth_response:" + tc.functionCallID)
}

// SaveArtifact persists a new artifact version and records the version bump
// for emission.
func (tc *ToolContext) SaveArtifact(filename string, a Artifact) (int, error) {
	if tc.ictx.ArtifactService == nil {
		return 0, fmt.Errorf("artifact service not configured")
	}

	version, err := tc.ictx.ArtifactService.Save(tc.Context(), tc.ictx.AppName(), tc.ictx.UserID(), tc.SessionID(), filename, a)
	if err != nil {
		return 0, err
	}

	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}

	tc.eventActions.ArtifactDelta[filename] = version

	return version, nil
}

// LoadArtifact retrieves an artifact version; negative loads the latest.
func (tc *ToolContext) LoadArtifact(filename string, version int) (*Artifact, error) {
	if tc.ictx.ArtifactService == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}

	return tc.ictx.ArtifactService.Load(tc.Context(), tc.ictx.AppName(), tc.ictx.UserID(), tc.SessionID(), filename, version)
}

// ListArtifactKeys returns the artifact filenames visible to the session.
func (tc *ToolContext) ListArtifactKeys() ([]string, error) {
	if tc.ictx.ArtifactService == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}

	return tc.ictx.ArtifactService.ListKeys(tc.Context(), tc.ictx.AppName(), tc.ictx.UserID(), tc.SessionID())
}

// SearchMemory performs a recall query against the configured MemoryService.
func (tc *ToolContext) SearchMemory(query string) ([]MemoryResult, error) {
	if tc.ictx.MemoryService == nil {
		return nil, fmt.Errorf("memory service not configured")
	}

	return tc.ictx.MemoryService.Search(tc.Context(), tc.ictx.AppName(), tc.ictx.UserID(), query)
}

// GetSessionHistory returns the persisted conversation history.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.ictx.Session == nil {
		return nil
	}

	return tc.ictx.Session.GetConversationHistory()
}

// InternalApplyActions merges accumulated EventActions into the provided
// event. Used by the function executor when finalizing the merged function
// response event; state delta keys apply last-writer-wins in call order.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, tc.eventActions.StateDelta)
	}

	if len(tc.eventActions.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		maps.Copy(ev.Actions.ArtifactDelta, tc.eventActions.ArtifactDelta)
	}

	if len(tc.eventActions.RequestedAuthConfigs) > 0 {
		if ev.Actions.RequestedAuthConfigs == nil {
			ev.Actions.RequestedAuthConfigs = map[string]any{}
		}
		maps.Copy(ev.Actions.RequestedAuthConfigs, tc.eventActions.RequestedAuthConfigs)
	}

	if tc.eventActions.SkipSummarization != nil {
		ev.Actions.SkipSummarization = tc.eventActions.SkipSummarization
	}

	if tc.eventActions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.eventActions.TransferToAgent

		tc.LogInfo("tool.transfer.applied", "from_agent", tc.AgentName(), "to_agent", *tc.eventActions.TransferToAgent, "function_call_id", tc.functionCallID)
	}

	if tc.eventActions.Escalate != nil {
		ev.Actions.Escalate = tc.eventActions.Escalate

		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
	}
}
