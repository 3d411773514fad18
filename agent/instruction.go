package agent

import (
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/prompt"
)

// InstructionProvider supplies dynamic instruction text at runtime, e.g.
// derived from session state or external configuration.
type InstructionProvider interface {
	Instruction(ictx *core.InvocationContext) (string, error)
}

// InstructionFunc adapts an ordinary function to an InstructionProvider.
type InstructionFunc func(ictx *core.InvocationContext) (string, error)

// Instruction implements InstructionProvider.
func (f InstructionFunc) Instruction(ictx *core.InvocationContext) (string, error) { return f(ictx) }

// Instruction is either a static template string or a dynamic provider; a
// Go-idiomatic union of string | provider. Static text supports the
// {variable} template grammar; provider output is rendered the same way.
type Instruction struct {
	text     string
	provider InstructionProvider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p InstructionProvider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ictx *core.InvocationContext) (string, error)) Instruction {
	return Instruction{provider: InstructionFunc(f)}
}

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.text == "" && i.provider == nil }

// Resolve produces the final instruction text: provider invocation (if any)
// followed by template rendering against session state and artifacts.
func (i Instruction) Resolve(ictx *core.InvocationContext) (string, error) {
	text := i.text

	if i.provider != nil {
		resolved, err := i.provider.Instruction(ictx)
		if err != nil {
			return "", err
		}
		text = resolved
	}

	if text == "" {
		return "", nil
	}

	return prompt.Render(text, prompt.Context{
		State: ictx.GetState,
		Artifact: func(name string) (string, error) {
			a, err := ictx.LoadArtifact(name, -1)
			if err != nil {
				return "", err
			}
			return string(a.Data), nil
		},
	})
}
