package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// MockModel is a lightweight in-memory Model useful for tests and examples.
// It serves scripted responses in order when any are enqueued, otherwise it
// echoes canned completions registered per prompt.
type MockModel struct {
	info      Info
	responses map[string]string
	scripted  []Response
	mu        sync.Mutex
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input
// prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses[prompt] = response
}

// EnqueueResponse appends a scripted response chunk. Scripted responses take
// precedence over canned completions and are consumed one per Generate call.
func (m *MockModel) EnqueueResponse(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scripted = append(m.scripted, resp)
}

// EnqueueFunctionCall is a shorthand for scripting a tool call turn.
func (m *MockModel) EnqueueFunctionCall(name, args string) {
	m.EnqueueResponse(Response{
		Content: &core.Content{
			Role: "assistant",
			Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{Name: name, Arguments: args}},
			},
		},
		FinishReason: "tool_calls",
	})
}

// EnqueueText is a shorthand for scripting a plain text turn.
func (m *MockModel) EnqueueText(text string) {
	m.EnqueueResponse(Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	})
}

func (m *MockModel) nextScripted() (Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.scripted) == 0 {
		return Response{}, false
	}

	resp := m.scripted[0]
	m.scripted = m.scripted[1:]

	return resp, true
}

// Generate implements Model; serves one scripted response or streams a
// canned completion char by char followed by the final chunk.
func (m *MockModel) Generate(ctx context.Context, req *Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if resp, ok := m.nextScripted(); ok {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- resp:
			}
			return
		}

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		last := req.Contents[len(req.Contents)-1]

		var inputText string
		for _, p := range last.Parts {
			if tp, ok := p.(core.TextPart); ok {
				inputText += tp.Text
			}
		}

		m.mu.Lock()
		full := m.responses[inputText]
		m.mu.Unlock()

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: boolPtr(true),
					Content: core.NewTextContent("assistant", string(r)),
				}:
				}
			}
		}

		respCh <- Response{
			Content:      core.NewTextContent("assistant", full),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements the Model interface.
func (m *MockModel) Info() Info { return m.info }

func boolPtr(b bool) *bool { return &b }
