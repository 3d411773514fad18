package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// loadArtifactTool loads a stored artifact into the conversation so the
// model can reference its content.
type loadArtifactTool struct{}

// NewLoadArtifactTool constructs the artifact loading tool.
func NewLoadArtifactTool() Tool { return &loadArtifactTool{} }

func (t *loadArtifactTool) Name() string { return "load_artifact" }

func (t *loadArtifactTool) Description() string {
	return "Load a previously saved artifact by filename. Returns the artifact content."
}

func (t *loadArtifactTool) Declaration() *FunctionDeclaration {
	return &FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{"type": "string", "description": "Artifact filename"},
				"version":  map[string]any{"type": "integer", "description": "Version to load, omit for latest"},
			},
			"required": []string{"filename"},
		},
	}
}

func (t *loadArtifactTool) IsLongRunning() bool { return false }

func (t *loadArtifactTool) Run(tc *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["filename"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'filename'")
	}

	filename, ok := raw.(string)
	if !ok || filename == "" {
		return nil, fmt.Errorf("field 'filename' must be a non-empty string")
	}

	version := -1
	if v, ok := args["version"].(float64); ok {
		version = int(v)
	}

	artifact, err := tc.LoadArtifact(filename, version)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"filename":  filename,
		"mime_type": artifact.MimeType,
		"content":   string(artifact.Data),
	}, nil
}
