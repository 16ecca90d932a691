package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
)

// Mode selects how destructive the executor may be. Safe mode maps trash
// decisions to archive at this boundary; live mode quarantines them.
type Mode string

const (
	ModeSafe Mode = "safe"
	ModeLive Mode = "live"
)

// State is the terminal (or pending) state a message reached.
type State string

const (
	StateKeptInPlace   State = "kept"
	StateArchived      State = "archived"
	StateQuarantined   State = "quarantined"
	StateTrashed       State = "trashed"
	StateReviewLabeled State = "review"
	StateDeferred      State = "deferred"
)

// ErrBudgetExhausted signals that the rate window has no actions left.
// It is a deferral, not a failure: the caller retries after the window
// resets.
var ErrBudgetExhausted = errors.New("rate budget exhausted")

// SafetyChecker re-evaluates the safety rails against fresh metadata.
type SafetyChecker interface {
	Safety(m core.EmailMetadata) *core.TierResult
}

// Outcome reports what the executor actually did with one message.
type Outcome struct {
	MessageID  string
	State      State
	Action     core.Action
	Reason     string
	RetryAfter time.Duration
	Err        error
}

// Executor applies classification verdicts to the mailbox. Trash is always
// two-phase: a quarantine label for the review window first, then the
// platform's recoverable trash. No code path deletes permanently.
type Executor struct {
	mailbox core.Mailbox
	safety  SafetyChecker
	budget  *RateBudget
	store   *QuarantineStore
	clock   core.Clock
	logger  *zap.Logger

	quarantineLabel string
	reviewLabel     string
	maxAttempts     int
	baseDelay       time.Duration
}

// Config carries the executor's tunables.
type Config struct {
	QuarantineLabel string
	ReviewLabel     string
	MaxAttempts     int
	BaseDelay       time.Duration
}

// New creates an action executor.
func New(
	mailbox core.Mailbox,
	safety SafetyChecker,
	budget *RateBudget,
	store *QuarantineStore,
	clock core.Clock,
	logger *zap.Logger,
	cfg Config,
) *Executor {
	return &Executor{
		mailbox:         mailbox,
		safety:          safety,
		budget:          budget,
		store:           store,
		clock:           clock,
		logger:          logger,
		quarantineLabel: cfg.QuarantineLabel,
		reviewLabel:     cfg.ReviewLabel,
		maxAttempts:     cfg.MaxAttempts,
		baseDelay:       cfg.BaseDelay,
	}
}

// Apply commits a final classification to the mailbox.
func (e *Executor) Apply(ctx context.Context, m core.EmailMetadata, result core.ClassificationResult, mode Mode) Outcome {
	action := result.Action
	if action == core.ActionTrash && mode == ModeSafe {
		e.logger.Info("Safe mode: mapping trash to archive",
			zap.String("message_id", m.ID))
		action = core.ActionArchive
	}

	switch action {
	case core.ActionKeep:
		// Keeping is the absence of a mutation.
		return Outcome{MessageID: m.ID, State: StateKeptInPlace, Action: core.ActionKeep, Reason: result.Reason}
	case core.ActionReview:
		return e.applyReview(ctx, m, result.Reason)
	case core.ActionArchive:
		return e.applyArchive(ctx, m, result.Reason)
	case core.ActionTrash:
		return e.applyTrash(ctx, m, result.Reason)
	default:
		return Outcome{
			MessageID: m.ID,
			State:     StateReviewLabeled,
			Action:    core.ActionReview,
			Err:       fmt.Errorf("unknown action %q", result.Action),
		}
	}
}

func (e *Executor) applyReview(ctx context.Context, m core.EmailMetadata, reason string) Outcome {
	if !e.budget.TryAcquire() {
		return e.deferred(m.ID)
	}
	err := e.withRetry(ctx, "apply review label", m.ID, func() error {
		return e.mailbox.ModifyLabels(ctx, m.ID, []string{e.reviewLabel}, nil)
	})
	if err != nil {
		return Outcome{MessageID: m.ID, State: StateReviewLabeled, Action: core.ActionReview, Reason: reason, Err: err}
	}
	return Outcome{MessageID: m.ID, State: StateReviewLabeled, Action: core.ActionReview, Reason: reason}
}

func (e *Executor) applyArchive(ctx context.Context, m core.EmailMetadata, reason string) Outcome {
	if !e.budget.TryAcquire() {
		return e.deferred(m.ID)
	}
	err := e.withRetry(ctx, "archive", m.ID, func() error {
		return e.mailbox.Archive(ctx, m.ID)
	})
	if err != nil {
		return e.surfaceFailure(ctx, m, err)
	}
	return Outcome{MessageID: m.ID, State: StateArchived, Action: core.ActionArchive, Reason: reason}
}

// applyTrash quarantines the message rather than trashing it directly. The
// safety rails are re-run against fresh metadata first: the user may have
// starred the thread since classification.
func (e *Executor) applyTrash(ctx context.Context, m core.EmailMetadata, reason string) Outcome {
	fresh, err := e.mailbox.GetMetadata(ctx, m.ID)
	if err != nil {
		e.logger.Warn("Could not refresh metadata before trash, using original",
			zap.String("message_id", m.ID), zap.Error(err))
		fresh = m
	}
	if override := e.safety.Safety(fresh); override != nil {
		e.logger.Info("Late safety override cancelled trash",
			zap.String("message_id", m.ID),
			zap.String("reason", override.Reason))
		return Outcome{MessageID: m.ID, State: StateKeptInPlace, Action: core.ActionKeep, Reason: override.Reason}
	}

	// Re-quarantining is a no-op keyed on the message ID.
	if _, ok := e.store.Get(m.ID); ok {
		return Outcome{MessageID: m.ID, State: StateQuarantined, Action: core.ActionTrash, Reason: reason}
	}

	if !e.budget.TryAcquire() {
		return e.deferred(m.ID)
	}
	err = e.withRetry(ctx, "apply quarantine label", m.ID, func() error {
		return e.mailbox.ModifyLabels(ctx, m.ID, []string{e.quarantineLabel}, nil)
	})
	if err != nil {
		return e.surfaceFailure(ctx, m, err)
	}

	entry, _ := e.store.Begin(m.ID, core.ActionTrash)
	e.logger.Info("Message quarantined",
		zap.String("message_id", m.ID),
		zap.Time("undo_deadline", entry.UndoDeadline))
	return Outcome{MessageID: m.ID, State: StateQuarantined, Action: core.ActionTrash, Reason: reason}
}

// Undo cancels a pending quarantine before its deadline, returning the
// message to its kept-in-place state.
func (e *Executor) Undo(ctx context.Context, messageID string) (Outcome, error) {
	if !e.store.Undo(messageID) {
		return Outcome{}, fmt.Errorf("no undoable quarantine for message %s", messageID)
	}
	if !e.budget.TryAcquire() {
		// The entry is already gone; the label is cleaned up lazily.
		return e.deferred(messageID), nil
	}
	err := e.withRetry(ctx, "remove quarantine label", messageID, func() error {
		return e.mailbox.ModifyLabels(ctx, messageID, nil, []string{e.quarantineLabel})
	})
	if err != nil {
		return Outcome{MessageID: messageID, State: StateKeptInPlace, Action: core.ActionKeep, Err: err}, nil
	}
	return Outcome{MessageID: messageID, State: StateKeptInPlace, Action: core.ActionKeep, Reason: "undo"}, nil
}

// Sweep moves quarantines whose undo deadline elapsed into the platform's
// recoverable trash. Each entry transitions exactly once; a repeated sweep
// finds it already resolved. ErrBudgetExhausted means the sweep deferred
// the remainder to a later window.
func (e *Executor) Sweep(ctx context.Context) (trashed int, err error) {
	for _, entry := range e.store.Expired() {
		if err := ctx.Err(); err != nil {
			return trashed, err
		}
		if !e.budget.TryAcquire() {
			return trashed, ErrBudgetExhausted
		}
		callErr := e.withRetry(ctx, "trash", entry.MessageID, func() error {
			return e.mailbox.Trash(ctx, entry.MessageID)
		})
		if callErr != nil {
			e.logger.Error("Failed to trash quarantined message",
				zap.String("message_id", entry.MessageID), zap.Error(callErr))
			continue
		}
		if e.store.Resolve(entry.MessageID) {
			trashed++
		}
		// The label is historical once the message is in trash; removal
		// is best-effort and unbudgeted.
		if labelErr := e.mailbox.ModifyLabels(ctx, entry.MessageID, nil, []string{e.quarantineLabel}); labelErr != nil {
			e.logger.Debug("Could not remove quarantine label after trash",
				zap.String("message_id", entry.MessageID), zap.Error(labelErr))
		}
	}
	return trashed, nil
}

// surfaceFailure marks a message for review after retries were exhausted,
// so it is surfaced rather than silently dropped.
func (e *Executor) surfaceFailure(ctx context.Context, m core.EmailMetadata, cause error) Outcome {
	if labelErr := e.mailbox.ModifyLabels(ctx, m.ID, []string{e.reviewLabel}, nil); labelErr != nil {
		e.logger.Error("Failed to mark message for review after action failure",
			zap.String("message_id", m.ID), zap.Error(labelErr))
	}
	return Outcome{
		MessageID: m.ID,
		State:     StateReviewLabeled,
		Action:    core.ActionReview,
		Reason:    "action failed after retries",
		Err:       cause,
	}
}

func (e *Executor) deferred(messageID string) Outcome {
	retryAfter := e.budget.RetryAfter()
	e.logger.Info("Action deferred: rate budget exhausted",
		zap.String("message_id", messageID),
		zap.Duration("retry_after", retryAfter))
	return Outcome{
		MessageID:  messageID,
		State:      StateDeferred,
		RetryAfter: retryAfter,
		Err:        ErrBudgetExhausted,
	}
}

// withRetry runs op with exponential backoff up to the attempt cap.
func (e *Executor) withRetry(ctx context.Context, what, messageID string, op func() error) error {
	var lastErr error
	delay := e.baseDelay
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		e.logger.Warn("Mailbox call failed",
			zap.String("op", what),
			zap.String("message_id", messageID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, e.maxAttempts, lastErr)
}
