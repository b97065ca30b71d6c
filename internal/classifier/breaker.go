package classifier

import (
	"sync"
	"time"
)

// breaker is a time-gated circuit breaker. After failureThreshold
// consecutive failures, calls short-circuit until resetWindow has
// elapsed since the last failure; the first observation past the
// window clears the count and lets the call through. There is no
// half-open trial state.
type breaker struct {
	enabled          bool
	failureThreshold int
	resetWindow      time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time

	now func() time.Time
}

func newBreaker(enabled bool, failureThreshold int, resetWindow time.Duration) *breaker {
	return &breaker{
		enabled:          enabled,
		failureThreshold: failureThreshold,
		resetWindow:      resetWindow,
		now:              time.Now,
	}
}

// Open reports whether calls must be short-circuited right now. The
// check-and-reset is atomic: concurrent callers cannot both observe a
// stale failure count across the reset boundary.
func (b *breaker) Open() bool {
	if !b.enabled {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.failureThreshold {
		return false
	}
	if b.now().After(b.lastFailure.Add(b.resetWindow)) {
		b.failures = 0
		return false
	}
	return true
}

func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}
