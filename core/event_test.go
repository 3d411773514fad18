package core

import "testing"

func TestEvent_IsFinalResponse_PlainText(t *testing.T) {
	ev := NewEvent("inv-1", "agent")
	ev.Content = NewTextContent("assistant", "done")

	if !ev.IsFinalResponse() {
		t.Error("plain text event should be final")
	}
}

func TestEvent_IsFinalResponse_PendingWork(t *testing.T) {
	withCall := NewEvent("inv-1", "agent")
	withCall.Content = &Content{Role: "assistant", Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "lookup"}},
	}}
	if withCall.IsFinalResponse() {
		t.Error("event with pending function call should not be final")
	}

	withResponse := NewFunctionResponseEvent("inv-1", "agent", "c1", "lookup", map[string]any{"ok": true}, nil)
	if withResponse.IsFinalResponse() {
		t.Error("function response event should not be final")
	}

	partial := NewEvent("inv-1", "agent")
	partial.Content = NewTextContent("assistant", "chu")
	partial.Partial = boolPtr(true)
	if partial.IsFinalResponse() {
		t.Error("partial chunk should not be final")
	}

	trailing := NewEvent("inv-1", "agent")
	trailing.Content = &Content{Role: "user", Parts: []Part{
		CodeExecutionResultPart{Outcome: "success", Output: "42"},
	}}
	if trailing.IsFinalResponse() {
		t.Error("trailing code execution result should keep the turn open")
	}
}

func TestEvent_IsFinalResponse_LongRunningOverride(t *testing.T) {
	ev := NewEvent("inv-1", "agent")
	ev.Content = &Content{Role: "assistant", Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "background_job"}},
	}}
	ev.LongRunningToolIDs = []string{"c1"}

	if !ev.IsFinalResponse() {
		t.Error("pending long-running work hands control back to the caller")
	}
}

func TestEvent_IsFinalResponse_SkipSummarization(t *testing.T) {
	ev := NewFunctionResponseEvent("inv-1", "agent", "c1", "lookup", map[string]any{"raw": true}, nil)
	ev.Actions.SkipSummarization = boolPtr(true)

	if !ev.IsFinalResponse() {
		t.Error("skip summarization should make the function response final")
	}
}

func TestEvent_WithBranch(t *testing.T) {
	ev := NewEvent("inv-1", "agent")
	if ev.BranchPath() != "" {
		t.Errorf("unexpected default branch %q", ev.BranchPath())
	}

	labeled := ev.WithBranch("fanout.worker1")
	if labeled.BranchPath() != "fanout.worker1" {
		t.Errorf("branch not applied: %q", labeled.BranchPath())
	}
	if ev.Branch != nil {
		t.Error("WithBranch must not mutate the receiver")
	}
}

func TestNewErrorEvent(t *testing.T) {
	ev := NewErrorEvent("inv-1", "agent", "GRAPH_NODE_FAILED", "node exploded")

	if !ev.IsError() {
		t.Fatal("error event should report IsError")
	}
	if *ev.ErrorCode != "GRAPH_NODE_FAILED" {
		t.Errorf("unexpected code %q", *ev.ErrorCode)
	}
	if ev.Content != nil {
		t.Error("error events carry no content")
	}
}
