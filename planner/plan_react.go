package planner

import (
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// Section markers the PlanReActPlanner instructs the model to emit. They are
// an internal protocol between instruction and response processing; consumers
// of events only see Thought flags.
const (
	planningTag    = "/*PLANNING*/"
	reasoningTag   = "/*REASONING*/"
	actionTag      = "/*ACTION*/"
	replanningTag  = "/*REPLANNING*/"
	finalAnswerTag = "/*FINAL_ANSWER*/"
)

// PlanReActPlanner instructs the model to produce an explicit plan, reason
// between tool uses and mark its final answer. Everything before the final
// answer marker is re-tagged as thought.
type PlanReActPlanner struct{}

// NewPlanReActPlanner constructs a PlanReActPlanner.
func NewPlanReActPlanner() *PlanReActPlanner { return &PlanReActPlanner{} }

// Name returns the planner's identifier.
func (p *PlanReActPlanner) Name() string { return "plan_re_act" }

// BuildPlanningInstruction returns the structured planning instruction.
func (p *PlanReActPlanner) BuildPlanningInstruction(_ *core.InvocationContext) string {
	return strings.Join([]string{
		"Answer the question using the available tools. Work in the following structure:",
		"Start with " + planningTag + " and write a short plan of the tool calls you intend to make.",
		"Between tool calls, use " + reasoningTag + " to note what the results mean and " + actionTag + " before acting.",
		"If the plan turns out to be wrong, revise it under " + replanningTag + ".",
		"When you have the answer, write it after " + finalAnswerTag + ". Only the text after " + finalAnswerTag + " is shown to the user.",
	}, "\n")
}

// ProcessPlanningResponse splits text parts on the final answer marker and
// marks everything before it as thought.
func (p *PlanReActPlanner) ProcessPlanningResponse(_ *core.InvocationContext, resp *model.Response) {
	if resp == nil || resp.Content == nil {
		return
	}

	var (
		parts      []core.Part
		afterFinal bool
	)

	for _, part := range resp.Content.Parts {
		tp, ok := part.(core.TextPart)
		if !ok {
			parts = append(parts, part)
			continue
		}

		if afterFinal {
			parts = append(parts, tp)
			continue
		}

		idx := strings.Index(tp.Text, finalAnswerTag)
		if idx < 0 {
			tp.Thought = true
			parts = append(parts, tp)
			continue
		}

		afterFinal = true

		if thought := strings.TrimSpace(tp.Text[:idx]); thought != "" {
			parts = append(parts, core.TextPart{Text: thought, Thought: true})
		}

		if answer := strings.TrimSpace(tp.Text[idx+len(finalAnswerTag):]); answer != "" {
			parts = append(parts, core.TextPart{Text: answer})
		}
	}

	resp.Content.Parts = parts
}
