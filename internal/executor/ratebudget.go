package executor

import (
	"sync"
	"time"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

// RateBudget is a fixed-window counter of remaining mailbox-mutating
// actions. Every call path must acquire from it before an outbound
// mutation; the read-then-decrement is atomic across callers.
type RateBudget struct {
	mu          sync.Mutex
	capacity    int
	window      time.Duration
	remaining   int
	windowStart time.Time
	clock       core.Clock
}

// NewRateBudget creates a budget of capacity actions per window.
func NewRateBudget(capacity int, window time.Duration, clock core.Clock) *RateBudget {
	return &RateBudget{
		capacity:    capacity,
		window:      window,
		remaining:   capacity,
		windowStart: clock.Now(),
		clock:       clock,
	}
}

// TryAcquire consumes one action from the current window. It returns false
// when the budget is exhausted; the caller defers rather than drops.
func (b *RateBudget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollWindow()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining reports how many actions are left in the current window.
func (b *RateBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollWindow()
	return b.remaining
}

// RetryAfter reports how long until the current window resets.
func (b *RateBudget) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollWindow()
	d := b.window - b.clock.Now().Sub(b.windowStart)
	if d < 0 {
		return 0
	}
	return d
}

// rollWindow lazily resets the counter once the window has elapsed.
// Callers must hold b.mu.
func (b *RateBudget) rollWindow() {
	now := b.clock.Now()
	if now.Sub(b.windowStart) >= b.window {
		b.windowStart = now
		b.remaining = b.capacity
	}
}
