package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

func TestQuarantineBeginIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	store := NewQuarantineStore(168*time.Hour, clock)

	first, created := store.Begin("m1", core.ActionTrash)
	require.True(t, created)
	assert.Equal(t, clock.Now().Add(168*time.Hour), first.UndoDeadline)

	clock.Advance(time.Hour)
	second, created := store.Begin("m1", core.ActionTrash)
	assert.False(t, created)
	// The original deadline stands; re-quarantining never extends it.
	assert.Equal(t, first.UndoDeadline, second.UndoDeadline)
	assert.Equal(t, 1, store.Len())
}

func TestQuarantineUndoBeforeDeadline(t *testing.T) {
	clock := newFakeClock()
	store := NewQuarantineStore(168*time.Hour, clock)

	store.Begin("m1", core.ActionTrash)
	clock.Advance(167 * time.Hour)
	assert.True(t, store.Undo("m1"))
	assert.Equal(t, 0, store.Len())

	// A second undo has nothing to act on.
	assert.False(t, store.Undo("m1"))
}

func TestQuarantineUndoAfterDeadline(t *testing.T) {
	clock := newFakeClock()
	store := NewQuarantineStore(168*time.Hour, clock)

	store.Begin("m1", core.ActionTrash)
	clock.Advance(169 * time.Hour)
	assert.False(t, store.Undo("m1"))
	// The entry remains pending so the sweeper can still execute it.
	assert.Equal(t, 1, store.Len())
}

func TestQuarantineExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewQuarantineStore(168*time.Hour, clock)

	store.Begin("old", core.ActionTrash)
	clock.Advance(100 * time.Hour)
	store.Begin("young", core.ActionTrash)

	assert.Empty(t, store.Expired())

	clock.Advance(69 * time.Hour)
	expired := store.Expired()
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].MessageID)

	clock.Advance(100 * time.Hour)
	assert.Len(t, store.Expired(), 2)
}

func TestQuarantineResolveOnce(t *testing.T) {
	clock := newFakeClock()
	store := NewQuarantineStore(168*time.Hour, clock)

	store.Begin("m1", core.ActionTrash)
	assert.True(t, store.Resolve("m1"))
	assert.False(t, store.Resolve("m1"))
	assert.Equal(t, 0, store.Len())
}
