package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateBudgetExhaustion(t *testing.T) {
	clock := newFakeClock()
	budget := NewRateBudget(3, time.Hour, clock)

	assert.Equal(t, 3, budget.Remaining())
	for i := 0; i < 3; i++ {
		assert.True(t, budget.TryAcquire())
	}
	assert.False(t, budget.TryAcquire())
	assert.Equal(t, 0, budget.Remaining())
}

func TestRateBudgetWindowReset(t *testing.T) {
	clock := newFakeClock()
	budget := NewRateBudget(1, time.Hour, clock)

	assert.True(t, budget.TryAcquire())
	assert.False(t, budget.TryAcquire())

	clock.Advance(59 * time.Minute)
	assert.False(t, budget.TryAcquire())

	clock.Advance(time.Minute)
	assert.True(t, budget.TryAcquire())
	assert.Equal(t, 0, budget.Remaining())
}

func TestRateBudgetRetryAfter(t *testing.T) {
	clock := newFakeClock()
	budget := NewRateBudget(1, time.Hour, clock)

	assert.Equal(t, time.Hour, budget.RetryAfter())

	clock.Advance(40 * time.Minute)
	assert.Equal(t, 20*time.Minute, budget.RetryAfter())

	// Once the window rolls, the counter refills and the horizon resets.
	clock.Advance(20 * time.Minute)
	assert.Equal(t, time.Hour, budget.RetryAfter())
	assert.Equal(t, 1, budget.Remaining())
}
