package logx

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttle bounds how often a repeating log line is emitted.
// Lines dropped in between are counted and reported with the next allowed line.
type Throttle struct {
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewThrottle allows burst lines immediately, then one line per every.
func NewThrottle(every time.Duration, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Inf, burst)
	if every > 0 {
		lim = rate.NewLimiter(rate.Every(every), burst)
	}
	return &Throttle{lim: lim}
}

// Allow reports whether a line may be written now and how many lines were
// suppressed since the last allowed one.
func (t *Throttle) Allow() (bool, uint64) {
	if t == nil || t.lim == nil {
		return true, 0
	}
	if !t.lim.Allow() {
		t.suppressed.Add(1)
		return false, 0
	}
	return true, t.suppressed.Swap(0)
}
