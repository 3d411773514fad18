// Package core provides the foundational domain types, interfaces and execution
// contexts used by agentflow. It defines the core abstractions for:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication + orchestration records)
//   - InvocationContext / ToolContext (scoped execution & tool sandboxing)
//   - Pluggable services for session state, artifacts and memory recall
//
// The package intentionally keeps implementation concerns (persistence, flow
// orchestration, concrete agents) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
