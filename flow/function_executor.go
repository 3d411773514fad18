package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// defaultToolParallelism bounds concurrent tool executions per batch.
const defaultToolParallelism = 4

// FunctionExecutor dispatches the function calls of one model turn to their
// tools and merges all results into a single function response event. Tools
// run concurrently on a bounded pool; response parts keep call order.
type FunctionExecutor struct {
	agent       FlowAgent
	parallelism int
}

// NewFunctionExecutor creates an executor for the given agent's callbacks.
func NewFunctionExecutor(agent FlowAgent) *FunctionExecutor {
	return &FunctionExecutor{agent: agent, parallelism: defaultToolParallelism}
}

// callResult holds the outcome of one dispatched call, indexed by call order.
type callResult struct {
	call    core.FunctionCall
	toolCtx *core.ToolContext
	tool    tool.Tool
	result  any
	err     error
}

// Execute runs all calls against the registry and returns the merged function
// response event. An unknown tool name is fatal for the invocation. A
// long-running tool returning nil contributes no response part; its call id
// is recorded on the event instead. A tool that requested a credential is
// paused: its result is replaced by a synthesized credential request call.
func (fe *FunctionExecutor) Execute(ictx *core.InvocationContext, registry *model.ToolRegistry, calls []core.FunctionCall) (*core.Event, error) {
	results := make([]*callResult, len(calls))

	for i, call := range calls {
		t, ok := registry.Get(call.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrToolNotFound, call.Name)
		}

		results[i] = &callResult{
			call:    call,
			tool:    t,
			toolCtx: core.NewToolContext(ictx, call.ID),
		}
	}

	pool, err := ants.NewPool(fe.parallelism)
	if err != nil {
		return nil, fmt.Errorf("create tool pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup

	for _, r := range results {
		r := r
		wg.Add(1)

		submitErr := pool.Submit(func() {
			defer wg.Done()
			fe.runOne(ictx, r)
		})
		if submitErr != nil {
			wg.Done()
			r.err = fmt.Errorf("submit tool call: %w", submitErr)
		}
	}

	wg.Wait()

	ev := core.NewEvent(ictx.InvocationID, ictx.AgentName())
	content := &core.Content{Role: "user"}

	for _, r := range results {
		r.toolCtx.InternalApplyActions(&ev)

		if cfg, ok := r.toolCtx.Actions().RequestedAuthConfigs[r.call.ID]; ok {
			args, _ := json.Marshal(cfg)
			content.Parts = append(content.Parts, core.FunctionCallPart{
				FunctionCall: core.FunctionCall{
					ID:        tool.AuthRequestIDPrefix + r.call.ID,
					Name:      tool.RequestCredentialName,
					Arguments: string(args),
				},
			})
			ev.LongRunningToolIDs = append(ev.LongRunningToolIDs, tool.AuthRequestIDPrefix+r.call.ID)
			continue
		}

		if r.tool.IsLongRunning() && r.result == nil && r.err == nil {
			ev.LongRunningToolIDs = append(ev.LongRunningToolIDs, r.call.ID)
			continue
		}

		fr := core.FunctionResponse{
			ID:       r.call.ID,
			Name:     r.call.Name,
			Response: coerceResult(r.result),
		}
		if r.err != nil {
			fr.Error = r.err.Error()
		}

		content.Parts = append(content.Parts, core.FunctionResponsePart{FunctionResponse: fr})
	}

	if len(content.Parts) > 0 {
		ev.Content = content
	}

	return &ev, nil
}

// runOne executes a single call including callbacks, retries and panic
// containment.
func (fe *FunctionExecutor) runOne(ictx *core.InvocationContext, r *callResult) {
	defer func() {
		if rec := recover(); rec != nil {
			ictx.LogError("flow.tool.panic", "tool", r.call.Name, "function_call_id", r.call.ID, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			r.result = nil
			r.err = tool.NewToolError(r.call.Name, fmt.Sprintf("panic: %v", rec), "PANIC")
		}
	}()

	args, err := parseArguments(r.call.Arguments)
	if err != nil {
		r.err = tool.NewToolError(r.call.Name, fmt.Sprintf("invalid arguments: %v", err), "INVALID_ARGUMENTS")
		return
	}

	for _, cb := range fe.agent.BeforeToolCallbacks() {
		replaced, cbErr := cb(r.toolCtx, r.tool, args)
		if cbErr != nil {
			r.err = cbErr
			return
		}
		if replaced != nil {
			r.result = replaced
			fe.runAfterCallbacks(r, args)
			return
		}
	}

	ictx.LogDebug("flow.tool.dispatch", "tool", r.call.Name, "function_call_id", r.call.ID)

	r.result, r.err = tool.RunWithRetry(r.tool, r.toolCtx, args)

	fe.runAfterCallbacks(r, args)
}

func (fe *FunctionExecutor) runAfterCallbacks(r *callResult, args map[string]any) {
	for _, cb := range fe.agent.AfterToolCallbacks() {
		replaced, cbErr := cb(r.toolCtx, r.tool, args, r.result)
		if cbErr != nil {
			r.err = cbErr
			return
		}
		if replaced != nil {
			r.result = replaced
		}
	}
}

// parseArguments decodes the call's JSON argument payload. Empty payloads
// yield an empty map.
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

// coerceResult normalizes a tool result to the object shape function
// responses require. Non-object results are wrapped under "result".
func coerceResult(result any) map[string]any {
	switch v := result.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	default:
		return map[string]any{"result": v}
	}
}
