package agent

import (
	"github.com/hupe1980/agentflow/core"
)

// forwardEvent passes an already-finalized child event to the parent's
// emission channel without re-merging the parent's pending deltas.
func forwardEvent(ictx *core.InvocationContext, ev core.Event) error {
	select {
	case ictx.Emit <- ev:
		return nil
	case <-ictx.Context.Done():
		return ictx.Context.Err()
	}
}

// runIntercepted executes a child agent on private channels and relays every
// event to the parent. observe sees each event before it is forwarded, which
// lets coordinators watch for escalation or capture the child's last output.
//
// Resume signals are counted, not addressed: when several relays run
// concurrently (Parallel) a persistence acknowledgement may reach a sibling
// first. Branches are independent, so per-branch ordering still holds.
func runIntercepted(ictx *core.InvocationContext, child core.Agent, branch string, observe func(core.Event)) error {
	childEmit := make(chan core.Event)
	childResume := make(chan struct{})

	cctx := ictx.NewChildContext(child, branch, childEmit, childResume)

	done := make(chan error, 1)
	go func() { done <- child.Run(cctx) }()

	for {
		select {
		case ev := <-childEmit:
			if observe != nil {
				observe(ev)
			}

			if err := forwardEvent(ictx, ev); err != nil {
				return err
			}

			if ev.IsPartial() {
				continue
			}

			if err := ictx.WaitForResume(); err != nil {
				return err
			}

			select {
			case childResume <- struct{}{}:
			case <-ictx.Context.Done():
				return ictx.Context.Err()
			}

		case err := <-done:
			return err

		case <-ictx.Context.Done():
			return ictx.Context.Err()
		}
	}
}
