package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/executor"
)

type fakeEngine struct {
	calls   int
	results map[string]core.ClassificationResult
	errs    map[string]error
}

func (f *fakeEngine) Classify(ctx context.Context, m core.EmailMetadata) (core.ClassificationResult, error) {
	f.calls++
	if err, ok := f.errs[m.ID]; ok {
		return core.ClassificationResult{}, err
	}
	return f.results[m.ID], nil
}

type fakeApplier struct {
	calls    int
	outcomes map[string]executor.Outcome
}

func (f *fakeApplier) Apply(ctx context.Context, m core.EmailMetadata, result core.ClassificationResult, mode executor.Mode) executor.Outcome {
	f.calls++
	if out, ok := f.outcomes[m.ID]; ok {
		return out
	}
	state := executor.StateKeptInPlace
	switch result.Action {
	case core.ActionArchive:
		state = executor.StateArchived
	case core.ActionTrash:
		state = executor.StateQuarantined
	case core.ActionReview:
		state = executor.StateReviewLabeled
	}
	return executor.Outcome{MessageID: m.ID, State: state, Action: result.Action}
}

type fakeMailbox struct {
	getErrs map[string]error
}

func (f *fakeMailbox) Search(ctx context.Context, query string, max int64) ([]string, error) {
	return nil, nil
}

func (f *fakeMailbox) GetMetadata(ctx context.Context, id string) (core.EmailMetadata, error) {
	if err, ok := f.getErrs[id]; ok {
		return core.EmailMetadata{}, err
	}
	return core.EmailMetadata{ID: id, From: "sender@example.com", Subject: "subject " + id}, nil
}

func (f *fakeMailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	return nil
}

func (f *fakeMailbox) Archive(ctx context.Context, id string) error { return nil }

func (f *fakeMailbox) Trash(ctx context.Context, id string) error { return nil }

func TestRunAggregatesOutcomes(t *testing.T) {
	engine := &fakeEngine{results: map[string]core.ClassificationResult{
		"m1": {Action: core.ActionKeep, Confidence: 1.0},
		"m2": {Action: core.ActionArchive, Confidence: 0.9, CostUSD: 0.002},
		"m3": {Action: core.ActionTrash, Confidence: 0.95, CostUSD: 0.003},
		"m4": {Action: core.ActionReview, Confidence: 0.6},
	}}
	applier := &fakeApplier{}
	r := New(engine, &fakeMailbox{}, applier, zap.NewNop(), 50)

	summary := r.Run(context.Background(), []string{"m1", "m2", "m3", "m4"}, executor.ModeLive)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 1, summary.Archived)
	assert.Equal(t, 1, summary.Quarantined)
	assert.Equal(t, 1, summary.Reviewed)
	assert.Equal(t, 0, summary.Errors)
	assert.InDelta(t, 0.005, summary.CostUSD, 1e-9)
	assert.False(t, summary.Cancelled)
}

func TestRunCountsFailuresWithoutAborting(t *testing.T) {
	engine := &fakeEngine{
		results: map[string]core.ClassificationResult{
			"m3": {Action: core.ActionKeep, Confidence: 1.0},
		},
		errs: map[string]error{"m2": core.ErrInFlight},
	}
	applier := &fakeApplier{}
	mailbox := &fakeMailbox{getErrs: map[string]error{"m1": errors.New("not found")}}
	r := New(engine, mailbox, applier, zap.NewNop(), 50)

	summary := r.Run(context.Background(), []string{"m1", "m2", "m3"}, executor.ModeLive)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 1, summary.Kept)
	// m1 never reached the engine.
	assert.Equal(t, 2, engine.calls)
	assert.Equal(t, 1, applier.calls)
}

func TestRunCountsApplyErrors(t *testing.T) {
	engine := &fakeEngine{results: map[string]core.ClassificationResult{
		"m1": {Action: core.ActionArchive, Confidence: 0.9},
	}}
	applier := &fakeApplier{outcomes: map[string]executor.Outcome{
		"m1": {
			MessageID: "m1",
			State:     executor.StateReviewLabeled,
			Action:    core.ActionReview,
			Err:       errors.New("archive failed after retries"),
		},
	}}
	r := New(engine, &fakeMailbox{}, applier, zap.NewNop(), 50)

	summary := r.Run(context.Background(), []string{"m1"}, executor.ModeLive)

	assert.Equal(t, 1, summary.Reviewed)
	assert.Equal(t, 1, summary.Errors)
}

func TestRunCountsDeferrals(t *testing.T) {
	engine := &fakeEngine{results: map[string]core.ClassificationResult{
		"m1": {Action: core.ActionArchive, Confidence: 0.9},
	}}
	applier := &fakeApplier{outcomes: map[string]executor.Outcome{
		"m1": {
			MessageID: "m1",
			State:     executor.StateDeferred,
			Err:       executor.ErrBudgetExhausted,
		},
	}}
	r := New(engine, &fakeMailbox{}, applier, zap.NewNop(), 50)

	summary := r.Run(context.Background(), []string{"m1"}, executor.ModeLive)

	// A deferral is not an error; the message retries next window.
	assert.Equal(t, 1, summary.Deferred)
	assert.Equal(t, 0, summary.Errors)
}

func TestRunTruncatesToMaxBatch(t *testing.T) {
	engine := &fakeEngine{results: map[string]core.ClassificationResult{}}
	r := New(engine, &fakeMailbox{}, &fakeApplier{}, zap.NewNop(), 2)

	summary := r.Run(context.Background(), []string{"m1", "m2", "m3", "m4"}, executor.ModeSafe)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, engine.calls)
}

func TestRunHonorsCancellationBetweenMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine := &fakeEngine{results: map[string]core.ClassificationResult{}}
	applier := &fakeApplier{}
	cancelling := &cancellingEngine{inner: engine, cancel: cancel, after: 2}
	r := New(cancelling, &fakeMailbox{}, applier, zap.NewNop(), 50)

	summary := r.Run(ctx, []string{"m1", "m2", "m3", "m4"}, executor.ModeLive)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, engine.calls)
}

// cancellingEngine cancels the run's context after a fixed number of
// classifications, simulating a shutdown mid-batch.
type cancellingEngine struct {
	inner  *fakeEngine
	cancel context.CancelFunc
	after  int
}

func (c *cancellingEngine) Classify(ctx context.Context, m core.EmailMetadata) (core.ClassificationResult, error) {
	result, err := c.inner.Classify(ctx, m)
	if c.inner.calls >= c.after {
		c.cancel()
	}
	return result, err
}

func TestRunEmptyBatch(t *testing.T) {
	r := New(&fakeEngine{}, &fakeMailbox{}, &fakeApplier{}, zap.NewNop(), 50)

	summary := r.Run(context.Background(), nil, executor.ModeSafe)

	require.Equal(t, 0, summary.Processed)
	assert.False(t, summary.Cancelled)
}
