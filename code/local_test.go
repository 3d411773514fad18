package code

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestLocalExecutor_RunsShellSnippet(t *testing.T) {
	requireBash(t)

	e := NewLocalExecutor()

	result, err := e.Execute(t.Context(), Execution{Language: "bash", Code: "echo hello"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, "hello\n", result.Output)
}

func TestLocalExecutor_NonZeroExitIsErrorOutcome(t *testing.T) {
	requireBash(t)

	e := NewLocalExecutor()

	result, err := e.Execute(t.Context(), Execution{Language: "sh", Code: "echo oops >&2; exit 3"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.Contains(t, result.Output, "oops")
}

func TestLocalExecutor_StagesInputFiles(t *testing.T) {
	requireBash(t)

	e := NewLocalExecutor()

	result, err := e.Execute(t.Context(), Execution{
		Language:   "bash",
		Code:       "cat data.csv",
		InputFiles: []InputFile{{Name: "data.csv", Data: []byte("a,b\n1,2\n")}},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, "a,b\n1,2\n", result.Output)
}

func TestLocalExecutor_TruncatesOutput(t *testing.T) {
	requireBash(t)

	e := NewLocalExecutor(func(o *LocalExecutorOptions) {
		o.MaxOutputBytes = 10
	})

	result, err := e.Execute(t.Context(), Execution{Language: "bash", Code: "printf 'aaaaaaaaaaaaaaaaaaaa'"})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "truncated")
	assert.Less(t, len(result.Output), 40)
}

func TestLocalExecutor_Timeout(t *testing.T) {
	requireBash(t)

	e := NewLocalExecutor(func(o *LocalExecutorOptions) {
		o.Timeout = 100 * time.Millisecond
	})

	_, err := e.Execute(t.Context(), Execution{Language: "bash", Code: "sleep 5"})
	assert.Error(t, err)
}

func TestLocalExecutor_UnsupportedLanguage(t *testing.T) {
	e := NewLocalExecutor()

	_, err := e.Execute(t.Context(), Execution{Language: "cobol", Code: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cobol")
}
