// Package bandwidth throttles aggregate download throughput across all
// in-flight transfers, independent of the per-domain pacing in
// internal/ratelimit (which spaces request starts, not byte flow).
package bandwidth

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limiter caps total bytes/sec across every concurrent download. It is
// safe for concurrent use; a zero-value *Limiter from New(0) never
// blocks.
type Limiter struct {
	limiter *rate.Limiter
	enabled atomic.Bool
}

// New builds a Limiter. bytesPerSec <= 0 means unlimited.
func New(bytesPerSec int) *Limiter {
	l := &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	l.SetLimit(bytesPerSec)
	return l
}

// SetLimit changes the cap at runtime. bytesPerSec <= 0 disables throttling.
func (l *Limiter) SetLimit(bytesPerSec int) {
	if bytesPerSec <= 0 {
		l.enabled.Store(false)
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.enabled.Store(true)
	l.limiter.SetLimit(rate.Limit(bytesPerSec))
	burst := bytesPerSec
	if burst < minBurst {
		burst = minBurst
	}
	l.limiter.SetBurst(burst)
}

// minBurst keeps the token bucket at least one read-buffer's worth wide,
// so a single WaitN call for one chunk never exceeds burst capacity.
const minBurst = 64 * 1024

// WaitN blocks until n bytes may be consumed under the current cap, or
// until ctx is cancelled. It returns immediately when unlimited.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if !l.enabled.Load() {
		return nil
	}
	return l.limiter.WaitN(ctx, n)
}
