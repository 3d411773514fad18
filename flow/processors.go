package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentflow/code"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// appendInstruction adds a block to the accumulated system prompt.
func appendInstruction(req *model.Request, block string) {
	block = strings.TrimSpace(block)
	if block == "" {
		return
	}

	if req.Instructions == "" {
		req.Instructions = block
		return
	}

	req.Instructions += "\n\n" + block
}

// basicConfigProcessor seeds the request with the agent's model name,
// generation config, streaming preference and tools.
type basicConfigProcessor struct{}

func (p *basicConfigProcessor) Name() string { return "basic_config" }

func (p *basicConfigProcessor) ProcessRequest(_ *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	req.Model = agent.GetModelName()
	req.Config = agent.GetGenerationConfig()
	req.Stream = agent.IsStreamingEnabled()

	for _, t := range agent.GetTools() {
		req.AddTool(t)
	}

	return nil
}

// identityProcessor tells the model who it is.
type identityProcessor struct{}

func (p *identityProcessor) Name() string { return "identity" }

func (p *identityProcessor) ProcessRequest(_ *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	ident := fmt.Sprintf("You are %s.", agent.GetName())
	if desc := agent.GetDescription(); desc != "" {
		ident += " " + desc
	}

	appendInstruction(req, ident)

	return nil
}

// globalInstructionProvider is implemented by root agents that carry a
// tree-wide instruction.
type globalInstructionProvider interface {
	GlobalInstruction(ictx *core.InvocationContext) (string, error)
}

// instructionsProcessor appends the tree-wide instruction of the root agent
// followed by the current agent's own instruction. Both are rendered against
// session state before use.
type instructionsProcessor struct{}

func (p *instructionsProcessor) Name() string { return "instructions" }

func (p *instructionsProcessor) ProcessRequest(ictx *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	if gp, ok := ictx.RootAgent.(globalInstructionProvider); ok {
		global, err := gp.GlobalInstruction(ictx)
		if err != nil {
			return fmt.Errorf("render global instruction: %w", err)
		}
		appendInstruction(req, global)
	}

	instruction, err := agent.Instruction(ictx)
	if err != nil {
		return fmt.Errorf("render instruction: %w", err)
	}
	appendInstruction(req, instruction)

	return nil
}

// contentsProcessor builds the conversation history sent to the model:
// branch-filtered session events, foreign-agent turns rewritten as context
// notes, function responses paired back to their calls and an optional cap
// on history length.
type contentsProcessor struct{}

func (p *contentsProcessor) Name() string { return "contents" }

func (p *contentsProcessor) ProcessRequest(ictx *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if ictx.Session != nil {
		for _, ev := range ictx.Session.GetEvents() {
			if ev.IsPartial() || ev.Content == nil || len(ev.Content.Parts) == 0 {
				continue
			}

			if !branchVisible(ictx.Branch, ev.BranchPath()) {
				continue
			}

			if c := convertEvent(ictx.AgentName(), ev); c != nil {
				contents = append(contents, *c)
			}
		}
	}

	if maxEvents := agent.MaxHistoryEvents(); maxEvents > 0 && len(contents) > maxEvents {
		contents = contents[len(contents)-maxEvents:]
	}

	contents = pairFunctionResponses(contents)

	if len(contents) == 0 && ictx.UserContent != nil {
		contents = append(contents, *ictx.UserContent)
	}

	req.Contents = contents

	return nil
}

// branchVisible reports whether an event on evBranch belongs to the history
// of an agent running on current. Events from ancestor branches (or the
// unbranched main line) are visible; sibling branches are not.
func branchVisible(current, evBranch string) bool {
	if evBranch == "" || evBranch == current {
		return true
	}

	return strings.HasPrefix(current, evBranch+".")
}

// convertEvent maps a session event to a model content. Own turns keep their
// parts (executed code dropped, results rendered as text); other agents'
// turns become read-only context notes so the model never impersonates them.
func convertEvent(currentAgent string, ev core.Event) *core.Content {
	if ev.Author != "user" && ev.Author != currentAgent {
		return foreignContext(ev)
	}

	parts := make([]core.Part, 0, len(ev.Content.Parts))
	for _, part := range ev.Content.Parts {
		if rendered, keep := renderPart(part); keep {
			parts = append(parts, rendered)
		}
	}

	if len(parts) == 0 {
		return nil
	}

	role := "assistant"
	if ev.Author == "user" || len(ev.GetFunctionResponses()) > 0 {
		role = "user"
	}

	return &core.Content{Role: role, Parts: parts}
}

// renderPart converts code execution results into plain text so every provider
// adapter can transport them. Executed code blocks are dropped entirely: the
// model only sees the execution result on the next turn, never its own code
// again.
func renderPart(part core.Part) (core.Part, bool) {
	switch v := part.(type) {
	case core.ExecutableCodePart:
		return nil, false
	case core.CodeExecutionResultPart:
		return core.TextPart{Text: fmt.Sprintf("Code execution result (%s):\n%s", v.Outcome, v.Output)}, true
	default:
		return part, true
	}
}

// foreignContext renders another agent's turn as a user-role note.
func foreignContext(ev core.Event) *core.Content {
	var lines []string

	if text := ev.Content.Text(); text != "" {
		lines = append(lines, fmt.Sprintf("[%s] said: %s", ev.Author, text))
	}

	for _, fc := range ev.GetFunctionCalls() {
		lines = append(lines, fmt.Sprintf("[%s] called tool %s", ev.Author, fc.Name))
	}

	for _, fr := range ev.GetFunctionResponses() {
		payload, _ := json.Marshal(fr.Response)
		lines = append(lines, fmt.Sprintf("[%s] tool %s returned: %s", ev.Author, fr.Name, string(payload)))
	}

	if len(lines) == 0 {
		return nil
	}

	return &core.Content{
		Role:  "user",
		Parts: []core.Part{core.TextPart{Text: "For context:\n" + strings.Join(lines, "\n")}},
	}
}

// pairFunctionResponses moves function response contents directly after the
// content carrying their call. Long-running tools complete turns later, so
// responses may arrive far from their calls in the raw history.
func pairFunctionResponses(contents []core.Content) []core.Content {
	responses := map[string][]core.Content{}
	var orphanOrder []string

	isResponseContent := func(c core.Content) (string, bool) {
		var id string
		for _, part := range c.Parts {
			fr, ok := part.(core.FunctionResponsePart)
			if !ok {
				return "", false
			}
			if id == "" {
				id = fr.FunctionResponse.ID
			}
		}
		return id, id != ""
	}

	for _, c := range contents {
		if id, ok := isResponseContent(c); ok {
			if _, seen := responses[id]; !seen {
				orphanOrder = append(orphanOrder, id)
			}
			responses[id] = append(responses[id], c)
		}
	}

	if len(responses) == 0 {
		return contents
	}

	out := make([]core.Content, 0, len(contents))
	placed := map[string]bool{}

	for _, c := range contents {
		if _, ok := isResponseContent(c); ok {
			continue
		}

		out = append(out, c)

		for _, part := range c.Parts {
			fc, ok := part.(core.FunctionCallPart)
			if !ok {
				continue
			}
			id := fc.FunctionCall.ID
			if placed[id] {
				continue
			}
			out = append(out, responses[id]...)
			placed[id] = true
		}
	}

	// Responses whose call fell out of the window stay at the end.
	for _, id := range orphanOrder {
		if !placed[id] {
			out = append(out, responses[id]...)
		}
	}

	return out
}

// memoryProcessor recalls related past conversation via the memory service
// and appends it as context.
type memoryProcessor struct{}

func (p *memoryProcessor) Name() string { return "memory" }

func (p *memoryProcessor) ProcessRequest(ictx *core.InvocationContext, req *model.Request, _ FlowAgent) error {
	if ictx.MemoryService == nil || ictx.UserContent == nil {
		return nil
	}

	query := ictx.UserContent.Text()
	if query == "" {
		return nil
	}

	results, err := ictx.SearchMemory(query)
	if err != nil {
		return fmt.Errorf("search memory: %w", err)
	}

	if len(results) == 0 {
		return nil
	}

	// Turns already present in the request (typically archived from the
	// current session) must not be injected a second time.
	present := map[string]bool{}
	for _, c := range req.Contents {
		if text := strings.TrimSpace(c.Text()); text != "" {
			present[text] = true
		}
	}

	const maxRecalled = 5

	var lines []string
	for _, r := range results {
		if len(lines) == maxRecalled {
			break
		}
		if r.Content == nil {
			continue
		}
		text := strings.TrimSpace(r.Content.Text())
		if text == "" || present[text] {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", r.Author, text))
	}

	if len(lines) == 0 {
		return nil
	}

	req.Contents = append(req.Contents, core.Content{
		Role:  "user",
		Parts: []core.Part{core.TextPart{Text: "Relevant past conversation:\n" + strings.Join(lines, "\n")}},
	})

	return nil
}

// planningProcessor appends the planner's instruction to the system prompt.
type planningProcessor struct{}

func (p *planningProcessor) Name() string { return "planning" }

func (p *planningProcessor) ProcessRequest(ictx *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	pl := agent.GetPlanner()
	if pl == nil {
		return nil
	}

	appendInstruction(req, pl.BuildPlanningInstruction(ictx))

	return nil
}

// codeExecutionProcessor tells the model how to request code execution and
// announces the tabular data files staged for it, each preloaded into a named
// DataFrame variable.
type codeExecutionProcessor struct{}

func (p *codeExecutionProcessor) Name() string { return "code_execution" }

func (p *codeExecutionProcessor) ProcessRequest(ictx *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	if agent.GetCodeExecutor() == nil {
		return nil
	}

	blocks := []string{strings.Join([]string{
		"When a computation is needed, write exactly one fenced code block (```python or ```bash).",
		"The code is executed and its output is returned to you in the next turn; use it to answer.",
	}, "\n")}

	if files := collectInputFiles(ictx); len(files) > 0 {
		lines := []string{"These data files are staged in the working directory for python code:"}
		for _, f := range files {
			lines = append(lines, fmt.Sprintf("- %s, preloaded as the pandas DataFrame `%s`", f.Name, dataFrameVar(f.Name)))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	appendInstruction(req, strings.Join(blocks, "\n\n"))

	return nil
}

// isTabularMime reports whether an inline data part holds tabular file data
// worth staging for code execution.
func isTabularMime(mimeType string) bool {
	switch mimeType {
	case "text/csv", "text/tab-separated-values":
		return true
	}

	return false
}

// collectInputFiles gathers tabular inline data from the visible session
// history and the current user message, first occurrence per filename.
func collectInputFiles(ictx *core.InvocationContext) []code.InputFile {
	var files []code.InputFile
	seen := map[string]bool{}

	add := func(c *core.Content) {
		if c == nil {
			return
		}
		for _, part := range c.Parts {
			dp, ok := part.(core.InlineDataPart)
			if !ok || dp.Name == "" || !isTabularMime(dp.MimeType) || seen[dp.Name] {
				continue
			}
			seen[dp.Name] = true
			files = append(files, code.InputFile{Name: dp.Name, MimeType: dp.MimeType, Data: dp.Data})
		}
	}

	if ictx.Session != nil {
		for _, ev := range ictx.Session.GetEvents() {
			if ev.IsPartial() || ev.Content == nil {
				continue
			}
			if !branchVisible(ictx.Branch, ev.BranchPath()) {
				continue
			}
			add(ev.Content)
		}
	}

	add(ictx.UserContent)

	return files
}

// dataFrameVar derives the python variable a staged file is loaded into:
// "q3 sales.csv" becomes "df_q3_sales".
func dataFrameVar(filename string) string {
	base := filename
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-', r == ' ', r == '.':
			b.WriteRune('_')
		}
	}

	name := b.String()
	if name == "" {
		name = "data"
	}

	return "df_" + name
}

// loaderPreamble builds the python lines that load each staged file into its
// DataFrame variable before the model's code runs.
func loaderPreamble(files []code.InputFile) string {
	lines := []string{"import pandas as pd"}
	for _, f := range files {
		if f.MimeType == "text/tab-separated-values" {
			lines = append(lines, fmt.Sprintf("%s = pd.read_csv(%q, sep=%q)", dataFrameVar(f.Name), f.Name, "\t"))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s = pd.read_csv(%q)", dataFrameVar(f.Name), f.Name))
	}

	return strings.Join(lines, "\n")
}

// outputSchemaProcessor constrains the final answer to a JSON schema. The
// schema is only attached to the request when no tools are declared; with
// tools present only the post-hoc validation applies. Runs after all tool
// registration.
type outputSchemaProcessor struct{}

func (p *outputSchemaProcessor) Name() string { return "output_schema" }

func (p *outputSchemaProcessor) ProcessRequest(_ *core.InvocationContext, req *model.Request, agent FlowAgent) error {
	schema := agent.GetOutputSchema()
	if schema == nil {
		return nil
	}

	if len(req.Declarations()) == 0 {
		req.Config.ResponseSchema = schema
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal output schema: %w", err)
	}

	appendInstruction(req, "Your final answer must be a single JSON object matching this schema, with no surrounding prose:\n"+string(raw))

	return nil
}
