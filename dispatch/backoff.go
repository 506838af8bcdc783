package dispatch

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// maxThrottleFactor caps how far rate-limit feedback can widen the delays.
const maxThrottleFactor = 8

func newBackoff(base, max time.Duration) *backoff {
	b := &backoff{base: base, max: max}
	b.throttle.Store(1)
	return b
}

// backoff computes the pause between delivery rounds: exponential doubling
// from base, capped at max, with half-jitter. The throttle factor is shared
// across all requests of the engine and widens after rate-limited rounds.
type backoff struct {
	base     time.Duration
	max      time.Duration
	throttle atomic.Int64
}

// delay returns the jittered pause after the given completed attempt,
// drawn from [d/2, d). Delays stay strictly increasing until d hits max.
func (b *backoff) delay(attempt int) time.Duration {
	d := b.base << (attempt - 1)
	if f := time.Duration(b.throttle.Load()); f > 1 {
		d *= f
	}
	if d > b.max || d <= 0 {
		d = b.max
	}
	if d < 2 {
		return d
	}
	return d/2 + time.Duration(rand.Int64N(int64(d/2)))
}

// observeThrottle doubles the shared factor after a rate-limited round and
// halves it back towards 1 after a clean one.
func (b *backoff) observeThrottle(rateLimited bool) {
	for {
		cur := b.throttle.Load()
		next := cur
		if rateLimited {
			if next = cur * 2; next > maxThrottleFactor {
				next = maxThrottleFactor
			}
		} else {
			if next = cur / 2; next < 1 {
				next = 1
			}
		}
		if next == cur || b.throttle.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (b *backoff) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
