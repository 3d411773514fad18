package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// ParallelAgent executes its children concurrently, each on an isolated
// branch named "<parallel>.<child>" under the current branch. Events are
// fanned in first-ready; consumers must not assume cross-branch ordering.
//
// A failing child is logged and its branch dropped; siblings keep running.
// Only when every child fails does the parallel run itself fail.
type ParallelAgent struct {
	BaseAgent
}

// NewParallelAgent creates a parallel coordinator over the given children.
func NewParallelAgent(name string, children ...core.Agent) (*ParallelAgent, error) {
	if err := validateAgentName(name); err != nil {
		return nil, err
	}

	a := &ParallelAgent{
		BaseAgent: NewBaseAgent(name, fmt.Sprintf("Runs its sub-agents concurrently: %s", childNames(children))),
	}
	a.bindSelf(a)

	if err := a.SetSubAgents(children...); err != nil {
		return nil, err
	}

	return a, nil
}

// Run implements core.Agent.
func (a *ParallelAgent) Run(ictx *core.InvocationContext) error {
	children := a.SubAgents()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, child := range children {
		wg.Add(1)

		go func(c core.Agent) {
			defer wg.Done()

			branch := ictx.ChildBranch(a.Name() + "." + c.Name())

			if err := runIntercepted(ictx, c, branch, nil); err != nil {
				ictx.LogError("agent.parallel.branch_failed", "parent", a.Name(), "child", c.Name(), "error", err.Error())

				mu.Lock()
				errs = append(errs, fmt.Errorf("branch %q: %w", c.Name(), err))
				mu.Unlock()
			}
		}(child)
	}

	wg.Wait()

	if len(errs) > 0 && len(errs) == len(children) {
		return fmt.Errorf("parallel agent %q: all branches failed: %w", a.Name(), errors.Join(errs...))
	}

	return nil
}
