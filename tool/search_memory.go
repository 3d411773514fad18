package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// searchMemoryTool queries long-term memory for content relevant to the
// current conversation.
type searchMemoryTool struct{}

// NewSearchMemoryTool constructs the memory recall tool.
func NewSearchMemoryTool() Tool { return &searchMemoryTool{} }

func (t *searchMemoryTool) Name() string { return "search_memory" }

func (t *searchMemoryTool) Description() string {
	return "Search long-term memory of past conversations for content relevant to a query."
}

func (t *searchMemoryTool) Declaration() *FunctionDeclaration {
	return &FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
			},
			"required": []string{"query"},
		},
	}
}

func (t *searchMemoryTool) IsLongRunning() bool { return false }

func (t *searchMemoryTool) Run(tc *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["query"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'query'")
	}

	query, ok := raw.(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("field 'query' must be a non-empty string")
	}

	results, err := tc.SearchMemory(query)
	if err != nil {
		return nil, err
	}

	memories := make([]map[string]any, 0, len(results))
	for _, r := range results {
		memories = append(memories, map[string]any{
			"session_id": r.SessionID,
			"author":     r.Author,
			"text":       r.Content.Text(),
			"timestamp":  r.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return map[string]any{"memories": memories}, nil
}
