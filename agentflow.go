// Package agentflow provides a high-level façade over the runner and the
// service abstractions (sessions, artifacts, memory, logging) for building
// LLM agent systems. Most applications:
//  1. Build an agent tree (agent.NewLLMAgent plus the composition agents)
//  2. Create an AgentFlow via New, optionally overriding the in-memory
//     services
//  3. Invoke it asynchronously (Run) or synchronously (RunSync)
//
// Defaults are safe for local development and tests; production deployments
// supply durable service implementations and a structured logger.
package agentflow

import (
	"context"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/runner"
)

// Options configures an AgentFlow instance.
type Options struct {
	// MaxModelCalls caps model calls per invocation. <= 0 is unlimited.
	MaxModelCalls int
	// EventBufferSize sets channel buffering for event delivery.
	EventBufferSize int
	// SessionService persists sessions. Defaults to in-memory.
	SessionService core.SessionService
	// ArtifactService persists artifacts. Defaults to in-memory.
	ArtifactService core.ArtifactService
	// MemoryService provides long-term recall. Defaults to in-memory.
	MemoryService core.MemoryService
	// Logger receives framework diagnostics. Defaults to no-op.
	Logger logging.Logger
}

// AgentFlow aggregates one agent tree with the services it runs against.
type AgentFlow struct {
	runner *runner.Runner
}

// New creates an AgentFlow for the given application name and root agent.
func New(appName string, root core.Agent, optFns ...func(o *Options)) *AgentFlow {
	opts := Options{
		MaxModelCalls:   100,
		EventBufferSize: 100,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(appName, root, func(o *runner.Options) {
		o.MaxModelCalls = opts.MaxModelCalls
		o.EventBufferSize = opts.EventBufferSize
		if opts.SessionService != nil {
			o.SessionService = opts.SessionService
		}
		if opts.ArtifactService != nil {
			o.ArtifactService = opts.ArtifactService
		}
		if opts.MemoryService != nil {
			o.MemoryService = opts.MemoryService
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	})

	return &AgentFlow{runner: r}
}

// Runner exposes the underlying runner for advanced use.
func (f *AgentFlow) Runner() *runner.Runner { return f.runner }

// Run starts an asynchronous invocation with a plain text user message.
func (f *AgentFlow) Run(ctx context.Context, userID, sessionID, message string) (string, <-chan core.Event, <-chan error, error) {
	content := core.NewTextContent("user", message)
	return f.runner.Run(ctx, userID, sessionID, content)
}

// RunContent starts an asynchronous invocation with arbitrary user content.
func (f *AgentFlow) RunContent(ctx context.Context, userID, sessionID string, content *core.Content) (string, <-chan core.Event, <-chan error, error) {
	return f.runner.Run(ctx, userID, sessionID, content)
}

// RunSync drains an invocation and returns all emitted events. The first
// fatal error ends collection and is returned alongside the events gathered
// so far.
func (f *AgentFlow) RunSync(ctx context.Context, userID, sessionID, message string) ([]core.Event, error) {
	_, eventsCh, errorsCh, err := f.Run(ctx, userID, sessionID, message)
	if err != nil {
		return nil, err
	}

	var events []core.Event

	for {
		select {
		case <-ctx.Done():
			return events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				select {
				case runErr := <-errorsCh:
					return events, runErr
				default:
					return events, nil
				}
			}
			events = append(events, ev)

		case runErr, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if runErr != nil {
				return events, runErr
			}
		}
	}
}

// FinalResponseText returns the text of the last final response event, or ""
// when the invocation produced none.
func FinalResponseText(events []core.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IsFinalResponse() && events[i].Content != nil {
			return events[i].Content.Text()
		}
	}
	return ""
}
