package core

import (
	"strings"

	"go.uber.org/zap"
)

// exceptionKeywords maps a category name to the keywords that force a
// message to stay in place. Matching is case-insensitive substring on the
// subject and snippet.
var exceptionKeywords = map[string][]string{
	"financial":  {"invoice", "receipt", "payment", "statement", "refund", "tax", "bill due"},
	"travel":     {"itinerary", "boarding pass", "flight", "reservation", "check-in", "booking confirm"},
	"shipping":   {"tracking number", "shipped", "out for delivery", "delivered", "your order"},
	"security":   {"verification code", "security alert", "password reset", "sign-in attempt", "2fa"},
	"employment": {"interview", "offer letter", "job application", "recruiter", "onboarding"},
	"medical":    {"appointment", "prescription", "lab result", "test result", "medical"},
	"legal":      {"contract", "legal notice", "subpoena", "court", "settlement"},
}

// SafetyEvaluator implements the safety rails that dominate every other
// signal. It is consulted before scoring, and again immediately before any
// trash action is committed.
type SafetyEvaluator struct {
	blockedSenders []string
	logger         *zap.Logger
}

// NewSafetyEvaluator creates a safety evaluator. blockedSenders is the
// user's explicit block list; a blocked sender never receives the
// known-contact override.
func NewSafetyEvaluator(blockedSenders []string, logger *zap.Logger) *SafetyEvaluator {
	normalized := make([]string, len(blockedSenders))
	for i, s := range blockedSenders {
		normalized[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return &SafetyEvaluator{blockedSenders: normalized, logger: logger}
}

// Evaluate returns a forced outcome, or nil when no rail fires. Order
// matters: starred beats keywords beats the known-contact soft override,
// so a contact's medical update is kept rather than archived.
func (s *SafetyEvaluator) Evaluate(m EmailMetadata) *TierResult {
	if m.IsStarred {
		return &TierResult{
			Action:     ActionKeep,
			Confidence: 1.0,
			Reason:     "starred",
			Tier:       TierSafety,
		}
	}

	if category := s.matchKeyword(m); category != "" {
		return &TierResult{
			Action:     ActionKeep,
			Confidence: 0.90,
			Reason:     "exception keyword: " + category,
			Tier:       TierSafety,
		}
	}

	if m.IsContact && !s.isBlocked(m.From) {
		return &TierResult{
			Action:     ActionArchive,
			Confidence: 0.95,
			Reason:     "known contact",
			Tier:       TierSafety,
		}
	}

	return nil
}

func (s *SafetyEvaluator) matchKeyword(m EmailMetadata) string {
	haystack := strings.ToLower(m.Subject + " " + m.Snippet)
	for category, keywords := range exceptionKeywords {
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				s.logger.Debug("Safety keyword matched",
					zap.String("message_id", m.ID),
					zap.String("category", category),
					zap.String("keyword", kw))
				return category
			}
		}
	}
	return ""
}

func (s *SafetyEvaluator) isBlocked(from string) bool {
	sender := strings.ToLower(from)
	for _, blocked := range s.blockedSenders {
		if blocked != "" && strings.Contains(sender, blocked) {
			return true
		}
	}
	return false
}
