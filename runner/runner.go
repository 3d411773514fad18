package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentflow/artifact"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/memory"
	"github.com/hupe1980/agentflow/session"
)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// EventBufferSize sets channel buffering for emitted events.
	EventBufferSize int
	// MaxModelCalls caps model calls per invocation. <= 0 is unlimited.
	MaxModelCalls int
	// SessionService persists sessions. Defaults to in-memory.
	SessionService core.SessionService
	// ArtifactService persists artifacts. Defaults to in-memory.
	ArtifactService core.ArtifactService
	// MemoryService provides long-term recall. Defaults to in-memory.
	MemoryService core.MemoryService
	// Logger receives framework diagnostics. Defaults to no-op.
	Logger logging.Logger
}

// Runner executes invocations against one agent tree. Public methods are
// safe for concurrent use.
type Runner struct {
	appName string
	agent   core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessionService  core.SessionService
	artifactService core.ArtifactService
	memoryService   core.MemoryService
	logger          logging.Logger
	tracer          trace.Tracer

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner for the given application and root agent.
func New(appName string, agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionService:  session.NewInMemoryService(),
		ArtifactService: artifact.NewInMemoryService(),
		MemoryService:   memory.NewInMemoryService(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		appName:         appName,
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionService:  opts.SessionService,
		artifactService: opts.ArtifactService,
		memoryService:   opts.MemoryService,
		logger:          opts.Logger,
		tracer:          otel.Tracer("github.com/hupe1980/agentflow/runner"),
		activeRuns:      map[string]context.CancelFunc{},
	}
}

// Run starts an asynchronous invocation and returns its id plus the event
// and error streams. Both channels are closed when the invocation finishes.
// Fatal errors surface on the error channel; recoverable conditions travel
// as events with error fields.
func (r *Runner) Run(ctx context.Context, userID, sessionID string, newMessage *core.Content) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionService.Get(ctx, r.appName, userID, sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		sess, err = r.sessionService.Create(ctx, r.appName, userID, sessionID, nil)
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("get session %q: %w", sessionID, err)
	}

	invocationID := core.NewID()
	agentToRun := r.resolveAgentToRun(sess)

	emit := make(chan core.Event, r.eventBufferSize)
	resume := make(chan struct{}, 1)
	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[invocationID] = cancel
	r.mu.Unlock()

	runCtx, span := r.tracer.Start(runCtx, "runner.invocation", trace.WithAttributes(
		attribute.String("app.name", r.appName),
		attribute.String("session.id", sess.ID),
		attribute.String("invocation.id", invocationID),
		attribute.String("agent.name", agentToRun.Name()),
	))

	ictx := core.NewInvocationContext(
		runCtx,
		invocationID,
		agentToRun,
		r.agent,
		newMessage,
		sess,
		r.sessionService,
		emit,
		resume,
		func(o *core.InvocationContextOptions) {
			o.MaxModelCalls = r.maxModelCalls
			o.Logger = r.logger
			o.ArtifactService = r.artifactService
			o.MemoryService = r.memoryService
		},
	)

	if newMessage != nil {
		userEvent := core.NewUserContentEvent(invocationID, newMessage)
		if err := r.sessionService.AppendEvent(runCtx, sess, userEvent); err != nil {
			cancel()
			r.removeRun(invocationID)
			return "", nil, nil, fmt.Errorf("append user event: %w", err)
		}
	}

	r.logger.Info("runner.invocation.start", "invocation_id", invocationID, "session_id", sess.ID, "agent", agentToRun.Name())

	agentErr := make(chan error, 1)

	go func() {
		agentErr <- agentToRun.Run(ictx)
		close(emit)
	}()

	go func() {
		defer func() {
			cancel()

			// The agent goroutine is unblocked by the cancellation above, so
			// this wait is bounded.
			if runErr := <-agentErr; runErr != nil {
				span.SetStatus(codes.Error, runErr.Error())

				select {
				case errorsCh <- fmt.Errorf("agent %q: %w", agentToRun.Name(), runErr):
				default:
				}
			}

			span.End()
			r.removeRun(invocationID)
			close(eventsCh)
			close(errorsCh)
		}()

		r.pumpEvents(runCtx, sess, emit, resume, eventsCh, errorsCh)
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// Cancel aborts a running invocation.
func (r *Runner) Cancel(invocationID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[invocationID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("invocation %q not found", invocationID)
	}

	cancel()

	return nil
}

// ArchiveSession ingests a session's conversation into long-term memory.
func (r *Runner) ArchiveSession(ctx context.Context, userID, sessionID string) error {
	sess, err := r.sessionService.Get(ctx, r.appName, userID, sessionID)
	if err != nil {
		return fmt.Errorf("get session %q: %w", sessionID, err)
	}

	return r.memoryService.AddSession(ctx, sess)
}

// pumpEvents persists and delivers agent events. Every non-partial event is
// appended to the session before the resume signal lets the agent continue,
// so agents never observe their own unpersisted history.
func (r *Runner) pumpEvents(
	ctx context.Context,
	sess *core.Session,
	emit <-chan core.Event,
	resume chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-emit:
			if !ok {
				return
			}

			if !ev.IsPartial() {
				if err := r.sessionService.AppendEvent(ctx, sess, ev); err != nil {
					select {
					case errorsCh <- fmt.Errorf("append event %q: %w", ev.ID, err):
					default:
					}
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case eventsCh <- ev:
			}

			if !ev.IsPartial() {
				select {
				case <-ctx.Done():
					return
				case resume <- struct{}{}:
				}
			}
		}
	}
}

// resolveAgentToRun picks the agent that handles the new message: the author
// of the most recent non-user event when that agent is still reachable from
// the root and every agent on its path up allows returning control to its
// parent. Everything else starts at the root.
func (r *Runner) resolveAgentToRun(sess *core.Session) core.Agent {
	events := sess.GetEvents()

	for i := len(events) - 1; i >= 0; i-- {
		author := events[i].Author
		if author == "" || author == "user" {
			continue
		}

		if candidate := r.agent.FindAgent(author); candidate != nil && allowsParentHops(candidate) {
			return candidate
		}

		break
	}

	return r.agent
}

func allowsParentHops(a core.Agent) bool {
	for cur := a; cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		if tp, ok := cur.(core.TransferPolicy); ok && !tp.AllowTransferToParent() {
			return false
		}
	}

	return true
}

func (r *Runner) removeRun(invocationID string) {
	r.mu.Lock()
	delete(r.activeRuns, invocationID)
	r.mu.Unlock()
}
