package core

// TokenUsage captures token accounting for a model response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized model output chunk shared by every provider
// adapter. A Response is either content-bearing or error-bearing; the
// fields are pointers so absence is distinguishable from zero values.
//
// Events compose a Response (see Event), so everything a model says is
// representable as an event without copying fields around.
type Response struct {
	Content      *Content    `json:"content,omitempty"`
	Partial      *bool       `json:"partial,omitempty"`
	TurnComplete *bool       `json:"turn_complete,omitempty"`
	ErrorCode    *string     `json:"error_code,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// IsPartial reports whether this is a streaming fragment that will be
// followed by further chunks of the same turn.
func (r Response) IsPartial() bool { return r.Partial != nil && *r.Partial }

// IsError reports whether the response carries error metadata.
func (r Response) IsError() bool { return r.ErrorCode != nil || r.ErrorMessage != nil }

// GetFunctionCalls returns the FunctionCall parts in content order.
func (r Response) GetFunctionCalls() []FunctionCall {
	if r.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range r.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns the FunctionResponse parts in content order.
func (r Response) GetFunctionResponses() []FunctionResponse {
	if r.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range r.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// HasTrailingCodeExecutionResult reports whether the last content part is a
// code execution result, meaning the model still owes a summarizing turn.
func (r Response) HasTrailingCodeExecutionResult() bool {
	if r.Content == nil || len(r.Content.Parts) == 0 {
		return false
	}
	_, ok := r.Content.Parts[len(r.Content.Parts)-1].(CodeExecutionResultPart)
	return ok
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
