package connector

import (
	"context"
	"time"
)

const defaultBaseDelay = time.Second

// retry calls fn until it succeeds, the attempts run out or ctx ends. The
// delay between attempts starts at BaseDelay and grows by Backoff, capped at
// MaxDelay.
func retry[T any](ctx context.Context, opts RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	delay := opts.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	backoff := opts.Backoff
	if backoff < 1 {
		backoff = 2
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == opts.MaxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * backoff)
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return result, err
}
