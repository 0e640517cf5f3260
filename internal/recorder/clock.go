// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"time"
)

// Clock abstracts time for the scheduler so tests can drive ticks and
// absolute waits deterministically.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer abstracts time.Timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// maxWaitSlice bounds a single timer arm so long absolute waits re-check
// the target instead of trusting one-shot accuracy across clock
// adjustments and coarse platform timers.
const maxWaitSlice = 5 * time.Minute

// WaitUntil blocks until the clock reaches target or ctx is done. It never
// returns early: after every wake the remaining distance to the target is
// re-checked. Returns ctx.Err() on cancellation, nil once the target has
// been reached or was already in the past.
func WaitUntil(ctx context.Context, clock Clock, target time.Time) error {
	for {
		remaining := target.Sub(clock.Now())
		if remaining <= 0 {
			return nil
		}
		if remaining > maxWaitSlice {
			remaining = maxWaitSlice
		}
		timer := clock.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C():
		}
	}
}
