package oracle

import (
	"context"
	"errors"
	"time"
)

// Policy is the caller-owned retry schedule for reveal: a fixed number of
// attempts with a fixed delay in between. Only not-resolved failures are
// retried; everything else is terminal for the attempt.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy matches the keeper's observed behavior against the real
// randomness service.
var DefaultPolicy = Policy{Attempts: 10, Delay: time.Second}

// RetryReveal polls Reveal until the randomness resolves, the attempts run
// out, or the context is done.
func RetryReveal(ctx context.Context, o Oracle, requestID string, p Policy) ([]byte, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var lastErr error
	for i := 0; i < p.Attempts; i++ {
		entropy, err := o.Reveal(ctx, requestID)
		if err == nil {
			return entropy, nil
		}
		if !errors.Is(err, ErrRandomnessNotResolved) {
			return nil, err
		}
		lastErr = err
		if i == p.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return nil, lastErr
}
