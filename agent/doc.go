// Package agent provides the agent implementations of agentflow: the
// model-driven LLMAgent and the composition primitives (Sequential,
// Parallel, Loop, Graph) that coordinate child agents into larger systems.
//
// All agents embed BaseAgent for hierarchy management and implement
// core.Agent. Coordinators forward their children's events unchanged; only
// the Parallel agent relabels them with per-child branches.
package agent
