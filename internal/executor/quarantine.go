package executor

import (
	"sync"
	"time"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

// QuarantineEntry tracks a trash decision during its review window. It
// exists only between "trash decided" and "trash executed or undone".
type QuarantineEntry struct {
	MessageID     string
	Action        core.Action
	QuarantinedAt time.Time
	UndoDeadline  time.Time
}

// QuarantineStore holds pending quarantine entries, keyed by message ID.
// Transitions are idempotent: beginning an existing quarantine is a no-op
// and an entry resolves at most once.
type QuarantineStore struct {
	mu      sync.Mutex
	entries map[string]QuarantineEntry
	window  time.Duration
	clock   core.Clock
}

// NewQuarantineStore creates a store whose entries expire after window.
func NewQuarantineStore(window time.Duration, clock core.Clock) *QuarantineStore {
	return &QuarantineStore{
		entries: make(map[string]QuarantineEntry),
		window:  window,
		clock:   clock,
	}
}

// Begin opens a quarantine for a message. created is false when the
// message is already quarantined, which callers treat as a no-op.
func (q *QuarantineStore) Begin(messageID string, action core.Action) (QuarantineEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.entries[messageID]; ok {
		return existing, false
	}
	now := q.clock.Now()
	entry := QuarantineEntry{
		MessageID:     messageID,
		Action:        action,
		QuarantinedAt: now,
		UndoDeadline:  now.Add(q.window),
	}
	q.entries[messageID] = entry
	return entry, true
}

// Get returns the entry for a message, if any.
func (q *QuarantineStore) Get(messageID string) (QuarantineEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[messageID]
	return entry, ok
}

// Undo removes a pending entry before its deadline. It returns false when
// there is nothing to undo or the deadline has already passed.
func (q *QuarantineStore) Undo(messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[messageID]
	if !ok || q.clock.Now().After(entry.UndoDeadline) {
		return false
	}
	delete(q.entries, messageID)
	return true
}

// Expired returns entries whose undo deadline has elapsed without an undo.
func (q *QuarantineStore) Expired() []QuarantineEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock.Now()
	var expired []QuarantineEntry
	for _, entry := range q.entries {
		if now.After(entry.UndoDeadline) {
			expired = append(expired, entry)
		}
	}
	return expired
}

// Resolve removes an entry after its action has been executed. It returns
// false when the entry was already resolved, making retries no-ops.
func (q *QuarantineStore) Resolve(messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[messageID]; !ok {
		return false
	}
	delete(q.entries, messageID)
	return true
}

// Len reports how many quarantines are pending.
func (q *QuarantineStore) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
