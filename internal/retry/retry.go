// Package retry provides an explicit retry policy value object and a
// call-with-retry helper. Retry semantics live in the Policy value rather
// than at call sites, so they can be tested and tuned in one place.
package retry

import (
	"context"
	"time"

	"github.com/ddunnock/sekb-go/internal/kberr"
)

// Policy describes how a fallible call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff is the wait schedule between attempts. Attempt i waits
	// Backoff[i-1]; when attempts exceed the schedule the last entry repeats.
	Backoff []time.Duration

	// Retryable decides whether a failed attempt should be retried.
	// A nil predicate retries nothing.
	Retryable func(error) bool
}

// Embedding is the policy for remote embedding calls: three attempts with
// exponential backoff (1s, 2s, 4s), retrying only connect and timeout
// failures. Auth and rate-limit rejections surface immediately.
var Embedding = Policy{
	MaxAttempts: 3,
	Backoff:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	Retryable: func(err error) bool {
		switch kberr.KindOf(err) {
		case kberr.KindConnection, kberr.KindTimeout:
			return true
		default:
			return false
		}
	},
}

// Do invokes fn up to p.MaxAttempts times, sleeping per the backoff
// schedule between attempts. It returns nil on the first success, the last
// error once attempts are exhausted or the error is not retryable, and the
// context error if ctx is cancelled while waiting.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if werr := wait(ctx, p.delay(attempt)); werr != nil {
			return werr
		}
	}
	return err
}

// delay returns the wait before the attempt following attempt n (1-based).
func (p Policy) delay(n int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if n > len(p.Backoff) {
		n = len(p.Backoff)
	}
	return p.Backoff[n-1]
}

// wait sleeps for d or until ctx is done, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
