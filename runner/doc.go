// Package runner implements the orchestration layer of agentflow.
//
// The Runner owns one agent tree and executes invocations against it: it
// resolves which agent resumes a conversation, creates the invocation
// context, persists every non-partial event through the session service and
// streams events to the caller. Persistence and emission are synchronized
// through the resume channel so an agent never runs ahead of its own
// history.
package runner
