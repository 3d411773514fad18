package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bububa/ljson"

	"github.com/hupe1980/agentflow/code"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// OutputSchemaValidationFailed is set as the event error code when the final
// answer does not satisfy the agent's output schema. Schema violations are
// surfaced on the event, never escalated to a fatal flow error.
const OutputSchemaValidationFailed = "OUTPUT_SCHEMA_VALIDATION_FAILED"

// planningResponseProcessor lets the planner rewrite the response, typically
// re-tagging reasoning text as thought.
type planningResponseProcessor struct{}

func (p *planningResponseProcessor) Name() string { return "planning" }

func (p *planningResponseProcessor) ProcessResponse(ictx *core.InvocationContext, resp *model.Response, agent FlowAgent) ([]core.Event, error) {
	pl := agent.GetPlanner()
	if pl == nil {
		return nil, nil
	}

	pl.ProcessPlanningResponse(ictx, resp)

	return nil, nil
}

// codeExecutionResponseProcessor extracts the first fenced code block from
// the answer, executes it and emits the result as a trailing event. The
// trailing result keeps the turn open so the model can summarize it.
type codeExecutionResponseProcessor struct{}

func (p *codeExecutionResponseProcessor) Name() string { return "code_execution" }

func (p *codeExecutionResponseProcessor) ProcessResponse(ictx *core.InvocationContext, resp *model.Response, agent FlowAgent) ([]core.Event, error) {
	executor := agent.GetCodeExecutor()
	if executor == nil || resp.Content == nil || len(resp.GetFunctionCalls()) > 0 {
		return nil, nil
	}

	block, before, after, ok := code.ExtractFirstBlock(resp.Content.Text())
	if !ok {
		return nil, nil
	}

	var parts []core.Part
	for _, part := range resp.Content.Parts {
		if tp, isText := part.(core.TextPart); isText && tp.Thought {
			parts = append(parts, tp)
		}
	}

	if text := strings.TrimSpace(before); text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	parts = append(parts, core.ExecutableCodePart{Language: block.Language, Code: block.Code})
	if text := strings.TrimSpace(after); text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}

	resp.Content.Parts = parts

	execution := code.Execution{Language: block.Language, Code: block.Code}
	if files := collectInputFiles(ictx); len(files) > 0 {
		execution.InputFiles = files
		if block.Language == "python" {
			execution.Code = loaderPreamble(files) + "\n" + block.Code
		}
	}

	result, err := executor.Execute(ictx.Context, execution)
	if err != nil {
		return nil, fmt.Errorf("execute code block: %w", err)
	}

	ictx.LogInfo("flow.code.executed", "agent", agent.GetName(), "language", block.Language, "outcome", result.Outcome)

	ev := core.NewEvent(ictx.InvocationID, agent.GetName())
	ev.Content = &core.Content{
		Role:  "user",
		Parts: []core.Part{core.CodeExecutionResultPart{Outcome: result.Outcome, Output: result.Output}},
	}

	return []core.Event{ev}, nil
}

// outputSchemaResponseProcessor validates the final answer against the
// agent's output schema. Fenced or slightly malformed JSON is repaired; a
// valid document replaces the answer text in canonical form.
type outputSchemaResponseProcessor struct{}

func (p *outputSchemaResponseProcessor) Name() string { return "output_schema" }

func (p *outputSchemaResponseProcessor) ProcessResponse(_ *core.InvocationContext, resp *model.Response, agent FlowAgent) ([]core.Event, error) {
	schema := agent.GetOutputSchema()
	if schema == nil || resp.Content == nil || len(resp.GetFunctionCalls()) > 0 {
		return nil, nil
	}

	text := strings.TrimSpace(resp.Content.Text())
	if text == "" {
		return nil, nil
	}

	raw := text
	if block, _, _, ok := code.ExtractFirstBlock(text); ok {
		raw = block.Code
	}

	doc, err := decodeJSONObject(raw)
	if err != nil {
		markSchemaFailure(resp, fmt.Sprintf("answer is not valid JSON: %v", err))
		return nil, nil
	}

	if err := validateAgainstSchema(doc, schema); err != nil {
		markSchemaFailure(resp, err.Error())
		return nil, nil
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal validated answer: %w", err)
	}

	var parts []core.Part
	for _, part := range resp.Content.Parts {
		if tp, isText := part.(core.TextPart); isText && tp.Thought {
			parts = append(parts, tp)
		}
	}
	parts = append(parts, core.TextPart{Text: string(canonical)})
	resp.Content.Parts = parts

	return nil, nil
}

// decodeJSONObject parses raw strictly first, then leniently to repair the
// truncation and quoting mistakes models commonly make.
func decodeJSONObject(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err == nil {
		return doc, nil
	}

	if err := ljson.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}

	return doc, nil
}

func markSchemaFailure(resp *model.Response, message string) {
	resp.ErrorCode = strPtr(OutputSchemaValidationFailed)
	resp.ErrorMessage = strPtr(message)
}

// validateAgainstSchema checks doc against the JSON schema subset the
// framework understands: object type, required properties and primitive
// property types. Unknown schema constructs are ignored.
func validateAgainstSchema(doc map[string]any, schema map[string]any) error {
	if t, ok := schema["type"].(string); ok && t != "object" {
		return fmt.Errorf("unsupported root schema type %q", t)
	}

	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := doc[name]; !present {
				return fmt.Errorf("missing required property %q", name)
			}
		}
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	for name, ps := range props {
		value, present := doc[name]
		if !present {
			continue
		}

		propSchema, ok := ps.(map[string]any)
		if !ok {
			continue
		}

		expected, ok := propSchema["type"].(string)
		if !ok {
			continue
		}

		if err := checkType(name, value, expected); err != nil {
			return err
		}
	}

	return nil
}

func checkType(name string, value any, expected string) error {
	okByType := false

	switch expected {
	case "string":
		_, okByType = value.(string)
	case "number":
		_, okByType = value.(float64)
	case "integer":
		f, isNum := value.(float64)
		okByType = isNum && f == float64(int64(f))
	case "boolean":
		_, okByType = value.(bool)
	case "array":
		_, okByType = value.([]any)
	case "object":
		_, okByType = value.(map[string]any)
	case "null":
		okByType = value == nil
	default:
		return nil
	}

	if !okByType {
		return fmt.Errorf("property %q is not of type %q", name, expected)
	}

	return nil
}

func strPtr(s string) *string { return &s }
