package core

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrInFlight is returned when a message is already being classified by a
// concurrent call. Re-entering would risk duplicate classifier spend and
// duplicate quarantine entries.
var ErrInFlight = errors.New("message classification already in flight")

// EngineService runs the full disposition pipeline for one email:
// user rules, safety rails, heuristic signals, the external classifier,
// then arbitration. Earlier tiers short-circuit later ones.
type EngineService struct {
	rules      *RuleMatcher
	safety     *SafetyEvaluator
	signals    *SignalScorer
	classifier Classifier
	cache      CacheRepository
	arbiter    *Arbiter
	logger     *zap.Logger
	clock      Clock

	cacheEnabled bool
	cacheTTL     time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewEngineService creates the pipeline service.
func NewEngineService(
	rules *RuleMatcher,
	safety *SafetyEvaluator,
	signals *SignalScorer,
	classifier Classifier,
	cache CacheRepository,
	arbiter *Arbiter,
	logger *zap.Logger,
	clock Clock,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *EngineService {
	return &EngineService{
		rules:        rules,
		safety:       safety,
		signals:      signals,
		classifier:   classifier,
		cache:        cache,
		arbiter:      arbiter,
		logger:       logger,
		clock:        clock,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		inFlight:     make(map[string]struct{}),
	}
}

// Safety re-evaluates the safety rails for a message. The executor calls
// this immediately before committing a trash action, closing the race
// where metadata changed after the initial classification.
func (s *EngineService) Safety(m EmailMetadata) *TierResult {
	return s.safety.Evaluate(m)
}

// Classify runs the pipeline over one metadata record. It never returns an
// error for classifier outages; those degrade to a review verdict. The only
// errors are re-entry (ErrInFlight) and context cancellation.
func (s *EngineService) Classify(ctx context.Context, m EmailMetadata) (ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return ClassificationResult{}, err
	}

	if reason := missingField(m); reason != "" {
		s.logger.Warn("Malformed metadata routed to review",
			zap.String("message_id", m.ID),
			zap.String("missing", reason))
		return s.finalize(ClassificationResult{
			Action:     ActionReview,
			Confidence: 0,
			Reason:     "malformed metadata: missing " + reason,
			Tier:       TierArbiterDefault,
			Terminal:   true,
		}), nil
	}

	if !s.acquire(m.ID) {
		return ClassificationResult{}, ErrInFlight
	}
	defer s.release(m.ID)

	// Tier 3: user rules terminate the pipeline outright.
	if hit := s.rules.Match(m); hit != nil {
		s.logger.Debug("User rule matched",
			zap.String("message_id", m.ID),
			zap.String("action", string(hit.Action)))
		return s.finalize(s.arbiter.Arbitrate(hit)), nil
	}

	// Safety rails, checked up front so no classifier call is wasted on
	// mail that can only ever be kept.
	if hit := s.safety.Evaluate(m); hit != nil {
		return s.finalize(s.arbiter.Arbitrate(hit)), nil
	}

	tier1 := s.signals.Score(m)

	var tier2 *TierResult
	if tier1 == nil || tier1.Confidence < signalTrashThreshold {
		res, degraded := s.classifyTier2(ctx, m)
		if degraded {
			return s.finalize(ClassificationResult{
				Action:     ActionReview,
				Confidence: 0,
				Reason:     "classifier unavailable",
				Tier:       TierClassifier,
				Terminal:   true,
			}), nil
		}
		tier2 = res
	}

	proposal := s.arbiter.Choose(tier1, tier2)
	return s.finalize(s.arbiter.Arbitrate(proposal)), nil
}

// classifyTier2 consults the cache, then the external classifier. degraded
// is true when the classifier failed and the pipeline must fall back to
// the synthetic review verdict.
func (s *EngineService) classifyTier2(ctx context.Context, m EmailMetadata) (res *TierResult, degraded bool) {
	fingerprint := Fingerprint(m)

	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, fingerprint); err == nil {
			s.logger.Debug("Classifier cache hit",
				zap.String("message_id", m.ID),
				zap.String("fingerprint", fingerprint))
			return &TierResult{
				Action:     entry.Result.Action,
				Confidence: entry.Result.Confidence,
				Reason:     entry.Result.Reason,
				Tier:       TierClassifier,
				FromCache:  true,
			}, false
		}
	}

	req := ClassifyRequest{
		FromDomain: m.SenderDomain(),
		Subject:    truncate(m.Subject, 120),
		Snippet:    truncate(m.Snippet, SnippetLimit),
		DaysOld:    m.AgeDays,
	}

	result, err := s.classifier.Classify(ctx, req)
	if err != nil {
		s.logger.Warn("Classifier call failed, degrading to review",
			zap.String("message_id", m.ID),
			zap.Error(err))
		return nil, true
	}
	if !IsValidAction(string(result.Action)) || result.Confidence < 0 || result.Confidence > 1 {
		s.logger.Warn("Classifier returned malformed verdict, degrading to review",
			zap.String("message_id", m.ID),
			zap.String("action", string(result.Action)),
			zap.Float64("confidence", result.Confidence))
		return nil, true
	}
	result.Tier = TierClassifier

	if s.cacheEnabled {
		now := s.clock.Now()
		entry := &CacheEntry{
			Fingerprint: fingerprint,
			Result: ClassificationResult{
				Action:     result.Action,
				Confidence: result.Confidence,
				Reason:     result.Reason,
				Tier:       TierClassifier,
				DecidedAt:  now,
			},
			FirstSeen: now,
			ExpiresAt: now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update classifier cache", zap.Error(err))
		}
	}

	return result, false
}

func (s *EngineService) finalize(result ClassificationResult) ClassificationResult {
	result.DecidedAt = s.clock.Now()
	return result
}

func (s *EngineService) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *EngineService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func missingField(m EmailMetadata) string {
	switch {
	case m.ID == "":
		return "message id"
	case m.From == "":
		return "sender"
	default:
		return ""
	}
}

// truncate bounds a string to max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
