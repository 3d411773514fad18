package flow

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// Engine runs the step loop for one LLM agent: assemble request, call model,
// post-process, dispatch function calls, repeat until a final response.
type Engine struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           *FunctionExecutor
	tracer             trace.Tracer
}

func newEngine(agent FlowAgent, reqPs []RequestProcessor, respPs []ResponseProcessor) *Engine {
	return &Engine{
		agent:              agent,
		requestProcessors:  reqPs,
		responseProcessors: respPs,
		executor:           NewFunctionExecutor(agent),
		tracer:             otel.Tracer("github.com/hupe1980/agentflow/flow"),
	}
}

// AddRequestProcessor appends a request processor. Registration order defines
// execution order.
func (e *Engine) AddRequestProcessor(p RequestProcessor) {
	e.requestProcessors = append(e.requestProcessors, p)
}

// AddResponseProcessor appends a response processor run on each final model
// response.
func (e *Engine) AddResponseProcessor(p ResponseProcessor) {
	e.responseProcessors = append(e.responseProcessors, p)
}

// Run executes steps until the last emitted event is a final response. A
// trailing partial means the model stream broke off mid-turn; that is fatal
// rather than silently accepted as an answer.
func (e *Engine) Run(ictx *core.InvocationContext) error {
	first := true

	for {
		last, err := e.runStep(ictx, first)
		first = false

		if err != nil {
			return err
		}

		if last == nil {
			return nil
		}

		if last.IsPartial() {
			return core.ErrIncompleteStream
		}

		if last.IsFinalResponse() {
			return nil
		}
	}
}

// runStep performs one model turn including tool dispatch and returns the
// last emitted event. A nil event signals termination without a further turn.
func (e *Engine) runStep(ictx *core.InvocationContext, first bool) (*core.Event, error) {
	_, span := e.tracer.Start(ictx.Context, "flow.step", trace.WithAttributes(
		attribute.String("agent.name", e.agent.GetName()),
		attribute.String("invocation.id", ictx.InvocationID),
	))
	defer span.End()

	fail := func(err error) (*core.Event, error) {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if first {
		last, resumed, err := e.resumePausedCalls(ictx)
		if err != nil {
			return fail(err)
		}
		if resumed {
			return last, nil
		}
	}

	req := model.NewRequest(e.agent.GetModelName())

	for _, p := range e.requestProcessors {
		if err := p.ProcessRequest(ictx, req, e.agent); err != nil {
			return fail(fmt.Errorf("request processor %s: %w", p.Name(), err))
		}
	}

	if ictx.EndInvocation {
		return nil, nil
	}

	modelEv, lastEv, err := e.callModel(ictx, req)
	if err != nil {
		return fail(err)
	}
	if modelEv == nil {
		return nil, nil
	}

	calls := modelEv.GetFunctionCalls()
	if len(calls) == 0 {
		return lastEv, nil
	}

	respEv, err := e.executor.Execute(ictx, req.Tools, calls)
	if err != nil {
		return fail(err)
	}

	if err := emitAndResume(ictx, *respEv); err != nil {
		return fail(err)
	}

	if respEv.Actions.TransferToAgent != nil {
		if err := e.transferTo(ictx, *respEv.Actions.TransferToAgent); err != nil {
			return fail(err)
		}
		return nil, nil
	}

	return respEv, nil
}

// callModel performs one model call including callbacks and streaming. It
// returns the finalized model event and the last event emitted during the
// call (the model event or a trailing processor event).
func (e *Engine) callModel(ictx *core.InvocationContext, req *model.Request) (*core.Event, *core.Event, error) {
	if err := ictx.Limiter.Increment(); err != nil {
		return nil, nil, err
	}

	for _, cb := range e.agent.BeforeModelCallbacks() {
		resp, err := cb(ictx, req)
		if err != nil {
			return nil, nil, fmt.Errorf("before model callback: %w", err)
		}
		if resp != nil {
			return e.finalizeResponse(ictx, req, *resp)
		}
	}

	m, err := e.agent.ResolveModel()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve model %q: %w", req.Model, err)
	}

	ictx.LogDebug("flow.model.call", "agent", e.agent.GetName(), "model", req.Model, "stream", req.Stream, "tools", req.Tools.Len())

	respCh, errCh := m.Generate(ictx.Context, req)

	// Partial chunks of one turn share an event id; the finalized event
	// gets a fresh one.
	partialID := core.NewID()

	var modelEv, lastEv *core.Event
	sawPartial := false

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if resp.IsPartial() {
				sawPartial = true

				ev := core.NewEvent(ictx.InvocationID, e.agent.GetName())
				ev.ID = partialID
				ev.Response = resp

				if err := ictx.EmitEvent(ev); err != nil {
					return nil, nil, err
				}
				continue
			}

			me, le, err := e.finalizeResponse(ictx, req, resp)
			if err != nil {
				return nil, nil, err
			}
			modelEv, lastEv = me, le

		case genErr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if genErr != nil {
				return nil, nil, fmt.Errorf("model call failed: %w", genErr)
			}

		case <-ictx.Context.Done():
			return nil, nil, ictx.Context.Err()
		}
	}

	// A stream that breaks off after partial chunks never delivered the
	// turn's final response.
	if modelEv == nil && sawPartial {
		return nil, nil, core.ErrIncompleteStream
	}

	return modelEv, lastEv, nil
}

// finalizeResponse runs after-model callbacks and response processors on the
// final chunk, wraps it in an event and emits it plus any trailing processor
// events.
func (e *Engine) finalizeResponse(ictx *core.InvocationContext, req *model.Request, resp model.Response) (*core.Event, *core.Event, error) {
	for _, cb := range e.agent.AfterModelCallbacks() {
		replaced, err := cb(ictx, &resp)
		if err != nil {
			return nil, nil, fmt.Errorf("after model callback: %w", err)
		}
		if replaced != nil {
			resp = *replaced
		}
	}

	assignFunctionCallIDs(&resp)

	var followUps []core.Event

	for _, p := range e.responseProcessors {
		evs, err := p.ProcessResponse(ictx, &resp, e.agent)
		if err != nil {
			return nil, nil, fmt.Errorf("response processor %s: %w", p.Name(), err)
		}
		followUps = append(followUps, evs...)
	}

	ev := core.NewEvent(ictx.InvocationID, e.agent.GetName())
	ev.Response = resp

	calls := resp.GetFunctionCalls()
	for _, fc := range calls {
		if t, ok := req.Tools.Get(fc.Name); ok && t.IsLongRunning() {
			ev.LongRunningToolIDs = append(ev.LongRunningToolIDs, fc.ID)
		}
	}

	if key := e.agent.GetOutputKey(); key != "" && len(calls) == 0 && resp.Content != nil {
		if text := resp.Content.Text(); text != "" {
			ictx.SetState(key, text)
		}
	}

	if err := emitAndResume(ictx, ev); err != nil {
		return nil, nil, err
	}

	lastEv := &ev
	for i := range followUps {
		if err := emitAndResume(ictx, followUps[i]); err != nil {
			return nil, nil, err
		}
		lastEv = &followUps[i]
	}

	return &ev, lastEv, nil
}

// resumePausedCalls re-dispatches function calls that were paused for a
// credential request. It matches credential responses in the new user content
// (ids carry the auth request prefix) back to the original calls recorded in
// session history, stages the supplied credentials for the tools to read and
// executes the originals.
func (e *Engine) resumePausedCalls(ictx *core.InvocationContext) (*core.Event, bool, error) {
	if ictx.UserContent == nil || ictx.Session == nil {
		return nil, false, nil
	}

	creds := map[string]map[string]any{}
	for _, part := range ictx.UserContent.Parts {
		fr, ok := part.(core.FunctionResponsePart)
		if !ok || !strings.HasPrefix(fr.FunctionResponse.ID, tool.AuthRequestIDPrefix) {
			continue
		}
		originalID := strings.TrimPrefix(fr.FunctionResponse.ID, tool.AuthRequestIDPrefix)
		creds[originalID] = fr.FunctionResponse.Response
	}

	if len(creds) == 0 {
		return nil, false, nil
	}

	var calls []core.FunctionCall
	events := ictx.Session.GetEvents()
	for i := len(events) - 1; i >= 0 && len(calls) < len(creds); i-- {
		for _, fc := range events[i].GetFunctionCalls() {
			if _, ok := creds[fc.ID]; ok {
				calls = append(calls, fc)
			}
		}
	}

	if len(calls) == 0 {
		return nil, false, nil
	}

	for id, payload := range creds {
		ictx.SetState(core.StateTempPrefix+"auth_response:"+id, payload)
	}

	req := model.NewRequest(e.agent.GetModelName())
	for _, t := range e.agent.GetTools() {
		req.AddTool(t)
	}

	ictx.LogInfo("flow.auth.resume", "agent", e.agent.GetName(), "calls", len(calls))

	respEv, err := e.executor.Execute(ictx, req.Tools, calls)
	if err != nil {
		return nil, false, err
	}

	if err := emitAndResume(ictx, *respEv); err != nil {
		return nil, false, err
	}

	if respEv.Actions.TransferToAgent != nil {
		if err := e.transferTo(ictx, *respEv.Actions.TransferToAgent); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	return respEv, true, nil
}

// transferTo splices the target agent's run into the current invocation. The
// target emits on the same channels and its completion completes the turn.
func (e *Engine) transferTo(ictx *core.InvocationContext, name string) error {
	target := ictx.FindAgent(name)
	if target == nil {
		return fmt.Errorf("%w: transfer target %q", core.ErrInvalidAgentName, name)
	}

	ictx.LogInfo("flow.transfer", "from_agent", e.agent.GetName(), "to_agent", name)

	return target.Run(ictx.WithAgent(target))
}

// assignFunctionCallIDs fills in ids for function calls the provider left
// unidentified so responses can be paired with their calls.
func assignFunctionCallIDs(resp *model.Response) {
	if resp.Content == nil {
		return
	}

	for i, part := range resp.Content.Parts {
		fc, ok := part.(core.FunctionCallPart)
		if !ok || fc.FunctionCall.ID != "" {
			continue
		}
		fc.FunctionCall.ID = core.NewID()
		resp.Content.Parts[i] = fc
	}
}

// emitAndResume emits the event and, for non-partial events, blocks until the
// runner has persisted it. Partial chunks are fire-and-forget.
func emitAndResume(ictx *core.InvocationContext, ev core.Event) error {
	if err := ictx.EmitEvent(ev); err != nil {
		return err
	}

	if ev.IsPartial() {
		return nil
	}

	return ictx.WaitForResume()
}
