package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

type fakeMailbox struct {
	mu sync.Mutex

	metadata core.EmailMetadata

	modifyErrs  []error
	archiveErrs []error
	trashErrs   []error

	getCalls     int
	modifyCalls  int
	archiveCalls int
	trashCalls   int

	addedLabels   [][]string
	removedLabels [][]string
}

func (f *fakeMailbox) Search(ctx context.Context, query string, max int64) ([]string, error) {
	return nil, nil
}

func (f *fakeMailbox) GetMetadata(ctx context.Context, id string) (core.EmailMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	m := f.metadata
	m.ID = id
	return m, nil
}

func (f *fakeMailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyCalls++
	if len(f.modifyErrs) > 0 {
		err := f.modifyErrs[0]
		f.modifyErrs = f.modifyErrs[1:]
		if err != nil {
			return err
		}
	}
	f.addedLabels = append(f.addedLabels, add)
	f.removedLabels = append(f.removedLabels, remove)
	return nil
}

func (f *fakeMailbox) Archive(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls++
	if len(f.archiveErrs) > 0 {
		err := f.archiveErrs[0]
		f.archiveErrs = f.archiveErrs[1:]
		return err
	}
	return nil
}

func (f *fakeMailbox) Trash(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trashCalls++
	if len(f.trashErrs) > 0 {
		err := f.trashErrs[0]
		f.trashErrs = f.trashErrs[1:]
		return err
	}
	return nil
}

type fakeSafety struct {
	override func(m core.EmailMetadata) *core.TierResult
}

func (f *fakeSafety) Safety(m core.EmailMetadata) *core.TierResult {
	if f.override == nil {
		return nil
	}
	return f.override(m)
}

func newTestExecutor(mailbox *fakeMailbox, safety *fakeSafety, capacity int) (*Executor, *fakeClock, *QuarantineStore) {
	clock := newFakeClock()
	budget := NewRateBudget(capacity, time.Hour, clock)
	store := NewQuarantineStore(168*time.Hour, clock)
	exec := New(mailbox, safety, budget, store, clock, zap.NewNop(), Config{
		QuarantineLabel: "Janitor/Quarantine",
		ReviewLabel:     "Janitor/Review",
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
	})
	return exec, clock, store
}

func trashResult() core.ClassificationResult {
	return core.ClassificationResult{Action: core.ActionTrash, Confidence: 0.95, Reason: "promotional"}
}

func TestApplyKeepTouchesNothing(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, _, _ := newTestExecutor(mailbox, &fakeSafety{}, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"},
		core.ClassificationResult{Action: core.ActionKeep, Reason: "starred"}, ModeLive)

	assert.Equal(t, StateKeptInPlace, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, 0, mailbox.modifyCalls)
	assert.Equal(t, 0, mailbox.archiveCalls)
	assert.Equal(t, 0, mailbox.trashCalls)
}

func TestApplyTrashLiveQuarantines(t *testing.T) {
	mailbox := &fakeMailbox{metadata: core.EmailMetadata{From: "deals@shop.com"}}
	exec, _, store := newTestExecutor(mailbox, &fakeSafety{}, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive)

	assert.Equal(t, StateQuarantined, out.State)
	assert.Equal(t, 0, mailbox.trashCalls)
	require.Equal(t, 1, mailbox.modifyCalls)
	assert.Equal(t, []string{"Janitor/Quarantine"}, mailbox.addedLabels[0])
	assert.Equal(t, 1, store.Len())

	// Re-applying the same verdict is a no-op against the mailbox.
	out = exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive)
	assert.Equal(t, StateQuarantined, out.State)
	assert.Equal(t, 1, mailbox.modifyCalls)
	assert.Equal(t, 1, store.Len())
}

func TestApplyTrashSafeModeArchivesInstead(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, _, store := newTestExecutor(mailbox, &fakeSafety{}, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeSafe)

	assert.Equal(t, StateArchived, out.State)
	assert.Equal(t, core.ActionArchive, out.Action)
	assert.Equal(t, 1, mailbox.archiveCalls)
	assert.Equal(t, 0, mailbox.trashCalls)
	assert.Equal(t, 0, store.Len())
}

func TestApplyTrashLateSafetyOverrideCancels(t *testing.T) {
	// The message was starred after classification; the fresh metadata
	// fetch must see it and abort the trash.
	mailbox := &fakeMailbox{metadata: core.EmailMetadata{IsStarred: true}}
	safety := &fakeSafety{override: func(m core.EmailMetadata) *core.TierResult {
		if m.IsStarred {
			return &core.TierResult{Action: core.ActionKeep, Confidence: 1.0, Reason: "starred"}
		}
		return nil
	}}
	exec, _, store := newTestExecutor(mailbox, safety, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive)

	assert.Equal(t, StateKeptInPlace, out.State)
	assert.Equal(t, "starred", out.Reason)
	assert.Equal(t, 1, mailbox.getCalls)
	assert.Equal(t, 0, mailbox.modifyCalls)
	assert.Equal(t, 0, store.Len())
}

func TestApplyDefersWhenBudgetExhausted(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, _, _ := newTestExecutor(mailbox, &fakeSafety{}, 1)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"},
		core.ClassificationResult{Action: core.ActionArchive, Confidence: 0.9}, ModeLive)
	require.Equal(t, StateArchived, out.State)

	out = exec.Apply(context.Background(), core.EmailMetadata{ID: "m2"},
		core.ClassificationResult{Action: core.ActionArchive, Confidence: 0.9}, ModeLive)
	assert.Equal(t, StateDeferred, out.State)
	assert.ErrorIs(t, out.Err, ErrBudgetExhausted)
	assert.Greater(t, out.RetryAfter, time.Duration(0))
	assert.Equal(t, 1, mailbox.archiveCalls)
}

func TestApplyRetriesTransientFailures(t *testing.T) {
	transient := errors.New("rate limited")
	mailbox := &fakeMailbox{modifyErrs: []error{transient, transient, nil}}
	exec, _, _ := newTestExecutor(mailbox, &fakeSafety{}, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"},
		core.ClassificationResult{Action: core.ActionReview, Reason: "uncertain"}, ModeLive)

	assert.Equal(t, StateReviewLabeled, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, 3, mailbox.modifyCalls)
}

func TestApplyArchiveFailureSurfacesAsReview(t *testing.T) {
	persistent := errors.New("backend down")
	mailbox := &fakeMailbox{archiveErrs: []error{persistent, persistent, persistent}}
	exec, _, _ := newTestExecutor(mailbox, &fakeSafety{}, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"},
		core.ClassificationResult{Action: core.ActionArchive, Confidence: 0.9}, ModeLive)

	assert.Equal(t, StateReviewLabeled, out.State)
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, persistent)
	assert.Equal(t, 3, mailbox.archiveCalls)
	// The failure is surfaced via the review label, never swallowed.
	require.Equal(t, 1, mailbox.modifyCalls)
	assert.Equal(t, []string{"Janitor/Review"}, mailbox.addedLabels[0])
}

func TestSweepTrashesExpiredExactlyOnce(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, clock, store := newTestExecutor(mailbox, &fakeSafety{}, 10)

	out := exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive)
	require.Equal(t, StateQuarantined, out.State)

	trashed, err := exec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, trashed)
	assert.Equal(t, 0, mailbox.trashCalls)

	clock.Advance(169 * time.Hour)
	trashed, err = exec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, trashed)
	assert.Equal(t, 1, mailbox.trashCalls)
	assert.Equal(t, 0, store.Len())

	// A repeated sweep finds the entry already resolved.
	trashed, err = exec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, trashed)
	assert.Equal(t, 1, mailbox.trashCalls)
}

func TestSweepDefersOnExhaustedBudget(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, clock, store := newTestExecutor(mailbox, &fakeSafety{}, 2)

	require.Equal(t, StateQuarantined, exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive).State)
	require.Equal(t, StateQuarantined, exec.Apply(context.Background(), core.EmailMetadata{ID: "m2"}, trashResult(), ModeLive).State)

	clock.Advance(169 * time.Hour)
	// The window rolled with the clock, so two actions are available; both
	// sweeps fit. Drain the refreshed budget first to force a deferral.
	require.True(t, exec.budget.TryAcquire())
	require.True(t, exec.budget.TryAcquire())

	trashed, err := exec.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 0, trashed)
	assert.Equal(t, 2, store.Len())

	clock.Advance(time.Hour)
	trashed, err = exec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, trashed)
	assert.Equal(t, 0, store.Len())
}

func TestUndoBeforeDeadline(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, clock, store := newTestExecutor(mailbox, &fakeSafety{}, 10)

	require.Equal(t, StateQuarantined, exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive).State)

	out, err := exec.Undo(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, StateKeptInPlace, out.State)
	assert.Equal(t, 0, store.Len())
	assert.Contains(t, mailbox.removedLabels[len(mailbox.removedLabels)-1], "Janitor/Quarantine")

	// Nothing left for the sweeper.
	clock.Advance(200 * time.Hour)
	trashed, err := exec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, trashed)
	assert.Equal(t, 0, mailbox.trashCalls)

	_, err = exec.Undo(context.Background(), "m1")
	assert.Error(t, err)
}

func TestUndoAfterDeadlineFails(t *testing.T) {
	mailbox := &fakeMailbox{}
	exec, clock, _ := newTestExecutor(mailbox, &fakeSafety{}, 10)

	require.Equal(t, StateQuarantined, exec.Apply(context.Background(), core.EmailMetadata{ID: "m1"}, trashResult(), ModeLive).State)

	clock.Advance(169 * time.Hour)
	_, err := exec.Undo(context.Background(), "m1")
	assert.Error(t, err)
}
