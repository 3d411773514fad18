package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side effects or orchestration signals attached to an
// Event. All fields are optional pointers / maps so absence can be
// distinguished from zero values. Session services interpret StateDelta and
// ArtifactDelta when the event is appended; the flow engine interprets the
// rest.
type EventActions struct {
	SkipSummarization    *bool          `json:"skip_summarization,omitempty"`
	StateDelta           map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta        map[string]int `json:"artifact_delta,omitempty"`
	TransferToAgent      *string        `json:"transfer_to_agent,omitempty"`
	Escalate             *bool          `json:"escalate,omitempty"`
	RequestedAuthConfigs map[string]any `json:"requested_auth_configs,omitempty"`
}

// Event is the primary unit of communication between agents, the flow engine
// and external clients. After emission it should be treated as immutable.
//
// An Event is a model Response enriched with identity and orchestration
// metadata: correlation ids (ID, InvocationID), authorship (Author, Branch),
// side effects (Actions) and pending long-running tool hints. The embedded
// Response may be empty for control or error-only events.
type Event struct {
	Response

	ID                 string            `json:"id"`
	InvocationID       string            `json:"invocation_id"`
	Author             string            `json:"author"`
	Branch             *string           `json:"branch,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	Actions            EventActions      `json:"actions"`
	LongRunningToolIDs []string          `json:"long_running_tool_ids,omitempty"`
	CustomMetadata     map[string]string `json:"custom_metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// Prefer helper constructors for common semantic categories (message,
// function response, error).
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewResponseEvent wraps a model response chunk in an event envelope.
func NewResponseEvent(invocationID, author string, resp Response) Event {
	e := NewEvent(invocationID, author)
	e.Response = resp
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = NewTextContent("user", message)
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
// Useful when the input is not just a simple text message.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// tool invocation. The content role is "user" so providers treat tool
// results as incoming turns, while Author stays the dispatching agent.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result map[string]any, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "user", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent creates an event carrying error metadata and no content.
func NewErrorEvent(invocationID, author, code, message string) Event {
	e := NewEvent(invocationID, author)
	e.ErrorCode = strPtr(code)
	e.ErrorMessage = strPtr(message)
	return e
}

// NewID generates a new unique identifier for events, invocations and
// function calls.
func NewID() string { return uuid.NewString() }

// WithBranch returns a copy of the event labeled with the given branch path.
func (e Event) WithBranch(branch string) Event {
	if branch != "" {
		e.Branch = &branch
	}
	return e
}

// BranchPath returns the branch label or "" when unset.
func (e Event) BranchPath() string {
	if e.Branch == nil {
		return ""
	}
	return *e.Branch
}

// IsFinalResponse reports whether this event completes the assistant turn.
// Pending long-running operations and skipped summarization both mean the
// caller gets control back now, so they count as final. Otherwise an event
// is final when nothing remains in flight: no function calls awaiting
// dispatch, no function responses awaiting a follow-up model call, not a
// streaming fragment, and no trailing code execution result.
func (e Event) IsFinalResponse() bool {
	if (e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization) || len(e.LongRunningToolIDs) > 0 {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial() &&
		!e.HasTrailingCodeExecutionResult()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
