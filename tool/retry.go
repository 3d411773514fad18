package tool

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/agentflow/core"
)

// RetryPolicy describes opt-in retry behavior for a tool. Zero fields fall
// back to the documented defaults.
type RetryPolicy struct {
	// MaxAttempts caps total attempts including the first. Default 3.
	MaxAttempts int
	// InitialInterval is the first backoff delay. Default 100ms.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts. Default 5s.
	MaxInterval time.Duration
	// Multiplier grows the delay between attempts. Default 2.0.
	Multiplier float64
	// RandomizationFactor jitters each delay. Default 0.5.
	RandomizationFactor float64
}

// DefaultRetryPolicy returns the standard policy used when a tool opts into
// retries without tuning.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:         3,
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

func (p *RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p *RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	if p.RandomizationFactor > 0 {
		b.RandomizationFactor = p.RandomizationFactor
	}
	b.Reset()
	return b
}

// RunWithRetry executes the tool, retrying per its policy when it implements
// Retryable. The invocation context governs cancellation between attempts.
// The final error after exhausted attempts is returned unchanged so callers
// keep the original *ToolError codes.
func RunWithRetry(t Tool, toolCtx *core.ToolContext, args map[string]any) (any, error) {
	var policy *RetryPolicy
	if r, ok := t.(Retryable); ok {
		policy = r.RetryPolicy()
	}

	if policy == nil {
		return t.Run(toolCtx, args)
	}

	var result any

	operation := func() error {
		var err error
		result, err = t.Run(toolCtx, args)
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(policy.newBackOff(), uint64(policy.maxAttempts()-1)),
		toolCtx.Context(),
	)

	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}

	return result, nil
}
