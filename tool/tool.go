// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, side effects) with
// schema described arguments, consistent error handling and rich metadata
// for LLM guidance.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// RequestCredentialName is the function name of the synthesized credential
// request call emitted when a tool asks for authentication.
const RequestCredentialName = "request_credential"

// AuthRequestIDPrefix marks function call ids synthesized for credential
// requests. The prefix is reserved; regular calls never carry it.
const AuthRequestIDPrefix = "authreq_"

// FunctionDeclaration is the model-facing description of a callable tool.
// Parameters is a JSON Schema object (minimal subset expected).
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tools registered with an agent are declared to the model and dispatched by
// name when the model emits function calls. Through the ToolContext a tool
// can read and stage session state, control agent flow (transfer, escalate),
// request credentials, and manage artifacts and memory.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case
	// recommended, [A-Za-z0-9_]+ enforced at construction).
	Name() string

	// Description returns a human-readable description of what this tool
	// does. It is provided to the LLM to guide tool selection.
	Description() string

	// Declaration returns the model-facing function declaration. A nil
	// declaration marks a self-managed tool: it may alter the outgoing
	// request but is never dispatched by name.
	Declaration() *FunctionDeclaration

	// IsLongRunning reports whether the tool completes out of band. A
	// long-running tool returning a nil result produces no function
	// response part; its call id is recorded on the step's event instead.
	IsLongRunning() bool

	// Run executes the tool. Arguments are parsed from the function call's
	// JSON payload before dispatch.
	Run(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Retryable is implemented by tools that opt into automatic retries. Tools
// without a policy (or returning nil) run exactly once.
type Retryable interface {
	RetryPolicy() *RetryPolicy
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
