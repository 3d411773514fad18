package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment. Thought marks text produced as
// intermediate reasoning by a planner; thought parts are stripped before the
// conversation is resent to a model.
type TextPart struct {
	Text    string
	Thought bool
}

func (TextPart) isPart() {}

// InlineDataPart carries raw bytes (file uploads, images, tabular data)
// embedded directly in the conversation.
type InlineDataPart struct {
	Name     string
	MimeType string
	Data     []byte
}

func (InlineDataPart) isPart() {}

// FunctionCall describes a tool/function invocation request emitted by a
// model. Arguments is the serialized JSON argument payload.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call. Response is
// always an object; non-object tool results are coerced into
// {"result": <value>} before they reach an event.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

func (FunctionResponsePart) isPart() {}

// ExecutableCodePart holds a code block the model asked to run.
type ExecutableCodePart struct {
	Language string
	Code     string
}

func (ExecutableCodePart) isPart() {}

// CodeExecutionResultPart holds the outcome of running an ExecutableCodePart.
type CodeExecutionResultPart struct {
	Outcome string // "ok" or "error"
	Output  string
}

func (CodeExecutionResultPart) isPart() {}

// Content holds a conversation role plus ordered heterogeneous parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewTextContent builds single-text-part content for the given role.
func NewTextContent(role, text string) *Content {
	return &Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates all non-thought text parts.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok && !tp.Thought {
			out += tp.Text
		}
	}
	return out
}
