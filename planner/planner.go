// Package planner adapts planning strategies for LLM agents. A planner
// contributes a planning instruction to the outgoing request and re-tags the
// response so provider specific section markers never leak past this
// package: the rest of the framework only ever sees Thought flags on text
// parts.
package planner

import (
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// Planner guides a model through explicit plan-then-act reasoning.
type Planner interface {
	// Name returns the planner's identifier.
	Name() string

	// BuildPlanningInstruction returns the instruction appended to the
	// system prompt. Empty means no planning instruction.
	BuildPlanningInstruction(ictx *core.InvocationContext) string

	// ProcessPlanningResponse rewrites the response in place, typically
	// marking reasoning text as thought.
	ProcessPlanningResponse(ictx *core.InvocationContext, resp *model.Response)
}

// BuiltInPlanner relies on the model's native reasoning support. It emits no
// instruction and performs no response rewriting; providers that surface
// reasoning content already tag it as thought in their adapters.
type BuiltInPlanner struct{}

// NewBuiltInPlanner constructs a BuiltInPlanner.
func NewBuiltInPlanner() *BuiltInPlanner { return &BuiltInPlanner{} }

// Name returns the planner's identifier.
func (p *BuiltInPlanner) Name() string { return "built_in" }

// BuildPlanningInstruction returns no instruction.
func (p *BuiltInPlanner) BuildPlanningInstruction(_ *core.InvocationContext) string { return "" }

// ProcessPlanningResponse leaves the response untouched.
func (p *BuiltInPlanner) ProcessPlanningResponse(_ *core.InvocationContext, _ *model.Response) {}
