package llm

import (
	"sync"
	"time"
)

// DefaultCooldown is how long remote calls are refused after a rate-limit
// signal.
const DefaultCooldown = 60 * time.Second

// Breaker is a cooldown circuit breaker for remote providers. After a
// rate-limit or quota signal, remote calls are refused until the cooldown
// window elapses, bounding caller latency during provider outages. It is an
// injectable value, not package state, so tests can run isolated instances.
type Breaker struct {
	now          func() time.Time
	limitedUntil time.Time
	cooldown     time.Duration
	mu           sync.Mutex
}

// NewBreaker creates a breaker with the given cooldown window. A zero or
// negative cooldown uses DefaultCooldown.
func NewBreaker(cooldown time.Duration) *Breaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		cooldown: cooldown,
		now:      time.Now,
	}
}

// MarkRateLimited starts (or restarts) the cooldown window.
func (b *Breaker) MarkRateLimited() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limitedUntil = b.now().Add(b.cooldown)
}

// IsRateLimited reports whether the cooldown window is still open.
func (b *Breaker) IsRateLimited() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.limitedUntil)
}

// Reset clears the cooldown window.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limitedUntil = time.Time{}
}
