package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/executor"
)

// Engine classifies one metadata record.
type Engine interface {
	Classify(ctx context.Context, m core.EmailMetadata) (core.ClassificationResult, error)
}

// Applier commits a classification to the mailbox.
type Applier interface {
	Apply(ctx context.Context, m core.EmailMetadata, result core.ClassificationResult, mode executor.Mode) executor.Outcome
}

// Summary aggregates one batch run. Individual message failures are
// counted here, never raised.
type Summary struct {
	Processed   int
	Kept        int
	Archived    int
	Quarantined int
	Trashed     int
	Reviewed    int
	Deferred    int
	Errors      int
	CostUSD     float64
	Cancelled   bool
}

// Runner is the batch boundary: a bounded list of message identifiers in,
// aggregate counts out.
type Runner struct {
	engine   Engine
	mailbox  core.Mailbox
	applier  Applier
	logger   *zap.Logger
	maxBatch int
}

// New creates a batch runner. maxBatch bounds how many identifiers a
// single run will process regardless of input length.
func New(engine Engine, mailbox core.Mailbox, applier Applier, logger *zap.Logger, maxBatch int) *Runner {
	return &Runner{
		engine:   engine,
		mailbox:  mailbox,
		applier:  applier,
		logger:   logger,
		maxBatch: maxBatch,
	}
}

// Run classifies and applies each message in turn. Cancellation is honored
// between messages, never mid-message; partially processed batches report
// whatever they completed.
func (r *Runner) Run(ctx context.Context, ids []string, mode executor.Mode) Summary {
	if r.maxBatch > 0 && len(ids) > r.maxBatch {
		r.logger.Info("Truncating batch to configured maximum",
			zap.Int("requested", len(ids)),
			zap.Int("max", r.maxBatch))
		ids = ids[:r.maxBatch]
	}

	var summary Summary
	for _, id := range ids {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		r.processOne(ctx, id, mode, &summary)
	}
	r.logger.Info("Batch complete",
		zap.String("mode", string(mode)),
		zap.Int("processed", summary.Processed),
		zap.Int("kept", summary.Kept),
		zap.Int("archived", summary.Archived),
		zap.Int("quarantined", summary.Quarantined),
		zap.Int("review", summary.Reviewed),
		zap.Int("deferred", summary.Deferred),
		zap.Int("errors", summary.Errors),
		zap.Float64("cost_usd", summary.CostUSD))
	return summary
}

func (r *Runner) processOne(ctx context.Context, id string, mode executor.Mode, summary *Summary) {
	summary.Processed++

	meta, err := r.mailbox.GetMetadata(ctx, id)
	if err != nil {
		r.logger.Error("Failed to read message metadata",
			zap.String("message_id", id), zap.Error(err))
		summary.Errors++
		return
	}

	result, err := r.engine.Classify(ctx, meta)
	if err != nil {
		if errors.Is(err, core.ErrInFlight) {
			r.logger.Warn("Message already being classified, skipping",
				zap.String("message_id", id))
		} else {
			r.logger.Error("Classification failed",
				zap.String("message_id", id), zap.Error(err))
		}
		summary.Errors++
		return
	}
	summary.CostUSD += result.CostUSD

	outcome := r.applier.Apply(ctx, meta, result, mode)
	switch outcome.State {
	case executor.StateKeptInPlace:
		summary.Kept++
	case executor.StateArchived:
		summary.Archived++
	case executor.StateQuarantined:
		summary.Quarantined++
	case executor.StateTrashed:
		summary.Trashed++
	case executor.StateReviewLabeled:
		summary.Reviewed++
	case executor.StateDeferred:
		summary.Deferred++
		return
	}
	if outcome.Err != nil {
		summary.Errors++
	}
}
