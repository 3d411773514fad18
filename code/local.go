package code

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// LocalExecutorOptions configures the subprocess executor.
type LocalExecutorOptions struct {
	// Timeout bounds a single execution. Default 30s.
	Timeout time.Duration
	// MaxOutputBytes truncates combined output. Default 16KiB.
	MaxOutputBytes int
	// WorkDir is the parent for per-execution scratch dirs. Default os temp.
	WorkDir string
}

// LocalExecutor runs snippets as local subprocesses. It supports python and
// shell language tags and stages input files into a per-execution scratch
// directory. Use only in trusted environments; there is no sandboxing.
type LocalExecutor struct {
	opts LocalExecutorOptions
}

// NewLocalExecutor constructs a LocalExecutor.
func NewLocalExecutor(optFns ...func(o *LocalExecutorOptions)) *LocalExecutor {
	opts := LocalExecutorOptions{
		Timeout:        30 * time.Second,
		MaxOutputBytes: 16 * 1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LocalExecutor{opts: opts}
}

func interpreterFor(language string) ([]string, string, error) {
	switch language {
	case "python", "python3", "py", "":
		return []string{"python3"}, "snippet.py", nil
	case "bash", "sh", "shell":
		return []string{"bash"}, "snippet.sh", nil
	default:
		return nil, "", fmt.Errorf("unsupported language %q", language)
	}
}

// Execute implements Executor.
func (e *LocalExecutor) Execute(ctx context.Context, execution Execution) (*ExecutionResult, error) {
	argv, filename, err := interpreterFor(execution.Language)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(e.opts.WorkDir, "agentflow-exec-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, filename)
	if err := os.WriteFile(scriptPath, []byte(execution.Code), 0o600); err != nil {
		return nil, fmt.Errorf("write snippet: %w", err)
	}

	for _, f := range execution.InputFiles {
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(f.Name)), f.Data, 0o600); err != nil {
			return nil, fmt.Errorf("stage input file %q: %w", f.Name, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], append(argv[1:], scriptPath)...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()

	output := buf.String()
	if len(output) > e.opts.MaxOutputBytes {
		output = output[:e.opts.MaxOutputBytes] + "\n... (truncated)"
	}

	if runErr != nil {
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}

		return &ExecutionResult{Outcome: OutcomeError, Output: output}, nil
	}

	return &ExecutionResult{Outcome: OutcomeOK, Output: output}, nil
}
