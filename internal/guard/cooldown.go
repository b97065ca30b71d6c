package guard

import (
	"sync"
	"time"
)

// Cooldowns is a keyed rate gate: one timestamp per key, an attempt
// inside the window is rejected without refreshing it.
type Cooldowns struct {
	delay time.Duration
	mu    sync.Mutex
	last  map[string]time.Time
	now   func() time.Time
}

func NewCooldowns(delay time.Duration) *Cooldowns {
	return &Cooldowns{
		delay: delay,
		last:  make(map[string]time.Time),
		now:   time.Now,
	}
}

// TryAcquire reports whether the key is past its cooldown, claiming
// the new window when it is. The second return is the time remaining
// when it is not.
func (c *Cooldowns) TryAcquire(key string) (bool, time.Duration) {
	if c.delay <= 0 {
		return true, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok {
		if remaining := c.delay - now.Sub(last); remaining > 0 {
			return false, remaining
		}
	}
	c.last[key] = now
	return true, 0
}

func (c *Cooldowns) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, key)
}
