// Package code provides code execution support for agents: an Executor
// contract, a local subprocess executor and helpers for extracting fenced
// code blocks from model output.
package code

import "context"

// Outcome values reported by executors.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Execution describes one code snippet to run.
type Execution struct {
	// Language is the fenced block language tag ("python", "bash", ...).
	Language string
	// Code is the snippet body.
	Code string
	// InputFiles are named data files available to the snippet.
	InputFiles []InputFile
}

// InputFile is a data file staged for an execution.
type InputFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// ExecutionResult is the outcome of running a snippet.
type ExecutionResult struct {
	// Outcome is OutcomeOK or OutcomeError.
	Outcome string
	// Output is combined stdout/stderr, truncated by the executor.
	Output string
}

// Executor runs code snippets on behalf of an agent. Implementations must
// respect context cancellation; sandboxing is the implementation's concern.
type Executor interface {
	Execute(ctx context.Context, execution Execution) (*ExecutionResult, error)
}
