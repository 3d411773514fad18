package core

import (
	"fmt"
	"sync"
)

// ModelLimiter enforces a maximum number of model calls per invocation. The
// limiter is shared across the whole agent tree of an invocation, so nested
// transfers and sub-agent runs count against the same ceiling.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a limiter with a max number of calls.
// max <= 0 disables the ceiling.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment counts a model call and returns ErrTooManyModelCalls once the
// ceiling is exceeded.
func (ml *ModelLimiter) Increment() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.count++
	if ml.max > 0 && ml.count > ml.max {
		return fmt.Errorf("%w: limit %d", ErrTooManyModelCalls, ml.max)
	}

	return nil
}

// Count returns the number of calls made so far.
func (ml *ModelLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max <= 0 {
		return -1
	}

	return ml.max - ml.count
}
