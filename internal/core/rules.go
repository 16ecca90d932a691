package core

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// RuleMatcher evaluates user rules (Tier 3), the highest-priority tier.
// A match terminates the pipeline with confidence 1.0.
type RuleMatcher struct {
	rules  []UserRule
	logger *zap.Logger
}

// NewRuleMatcher creates a rule matcher over an ordered rule list. Rules
// are sorted by ascending priority; the original list order breaks ties.
func NewRuleMatcher(rules []UserRule, logger *zap.Logger) *RuleMatcher {
	sorted := make([]UserRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &RuleMatcher{rules: sorted, logger: logger}
}

// Match returns the result of the first matching rule, or nil when no rule
// matches. Malformed rules are skipped with a logged anomaly; they are
// never treated as matching everything.
func (r *RuleMatcher) Match(m EmailMetadata) *TierResult {
	for _, rule := range r.rules {
		if strings.TrimSpace(rule.Pattern) == "" || !IsValidAction(string(rule.Action)) {
			r.logger.Warn("Skipping malformed user rule",
				zap.String("field", string(rule.Field)),
				zap.String("pattern", rule.Pattern),
				zap.String("action", string(rule.Action)))
			continue
		}
		if ruleMatches(rule, m) {
			return &TierResult{
				Action:     rule.Action,
				Confidence: 1.0,
				Reason:     "user rule: " + string(rule.Field) + " contains " + strings.ToLower(rule.Pattern),
				Tier:       TierRule,
			}
		}
	}
	return nil
}

func ruleMatches(rule UserRule, m EmailMetadata) bool {
	pattern := strings.ToLower(rule.Pattern)
	switch rule.Field {
	case RuleFieldSender:
		return strings.Contains(strings.ToLower(m.From), pattern)
	case RuleFieldSubject:
		return strings.Contains(strings.ToLower(m.Subject), pattern)
	case RuleFieldCategory:
		return strings.EqualFold(strings.TrimSpace(m.Category), strings.TrimSpace(rule.Pattern))
	default:
		return false
	}
}
