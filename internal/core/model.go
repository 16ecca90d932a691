package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Action is the disposition applied to an email.
type Action string

const (
	ActionKeep    Action = "keep"
	ActionArchive Action = "archive"
	ActionTrash   Action = "trash"
	ActionReview  Action = "review"
)

// actionSeverity orders actions from safest to most destructive. Ties
// between tiers are always broken toward the lower severity.
var actionSeverity = map[Action]int{
	ActionKeep:    0,
	ActionReview:  1,
	ActionArchive: 2,
	ActionTrash:   3,
}

// SaferAction returns whichever of the two actions is less destructive.
func SaferAction(a, b Action) Action {
	if actionSeverity[a] <= actionSeverity[b] {
		return a
	}
	return b
}

// IsValidAction reports whether s names a known action.
func IsValidAction(s string) bool {
	_, ok := actionSeverity[Action(s)]
	return ok
}

// Tier identifies which stage of the pipeline produced a result.
type Tier string

const (
	TierRule           Tier = "rule"
	TierSafety         Tier = "safety"
	TierSignals        Tier = "tier1"
	TierClassifier     Tier = "tier2"
	TierArbiterDefault Tier = "arbiter-default"
)

// SnippetLimit is the maximum number of bytes of message content that may
// leave the process. Anything longer is truncated before use.
const SnippetLimit = 200

// EmailMetadata is the bounded per-message input to the pipeline. It never
// carries the message body; the snippet is the only content excerpt.
type EmailMetadata struct {
	ID             string
	ThreadID       string
	From           string
	Subject        string
	Snippet        string
	Category       string
	HasUnsubscribe bool
	IsStarred      bool
	IsContact      bool
	AgeDays        int
}

// SenderDomain extracts the domain part of the sender address, lowercased.
func (m EmailMetadata) SenderDomain() string {
	parts := strings.Split(m.From, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(strings.TrimRight(parts[1], ">"))
}

// ClassificationResult is the final verdict for one email.
type ClassificationResult struct {
	Action     Action
	Confidence float64
	Reason     string
	Tier       Tier
	CostUSD    float64
	FromCache  bool
	// Terminal marks a result that must not be re-thresholded by the
	// arbiter, e.g. the degraded outcome when the classifier is down.
	Terminal  bool
	DecidedAt time.Time
}

// TierResult is a tentative proposal from a single tier, before arbitration.
type TierResult struct {
	Action     Action
	Confidence float64
	Reason     string
	Tier       Tier
	CostUSD    float64
	FromCache  bool
}

// RuleField selects which metadata field a user rule matches against.
type RuleField string

const (
	RuleFieldSender   RuleField = "sender"
	RuleFieldSubject  RuleField = "subject"
	RuleFieldCategory RuleField = "category"
)

// UserRule is a user-authored pattern that forces an action. Matching is
// case-insensitive substring on the selected field. Rules are evaluated by
// ascending Priority, then by list order.
type UserRule struct {
	Field    RuleField
	Pattern  string
	Action   Action
	Priority int
}

// CacheEntry stores a previously computed classification keyed by
// fingerprint, so repeated issues of the same mailing don't pay for a
// second classifier call.
type CacheEntry struct {
	Fingerprint string
	Result      ClassificationResult
	FirstSeen   time.Time
	ExpiresAt   time.Time
}

// Fingerprint derives the cache key for an email: sender domain plus the
// normalized subject. Normalization lowercases, collapses runs of digits
// (issue numbers, dates) and whitespace, so "Issue 41" and "Issue 42" of
// the same newsletter share a key.
func Fingerprint(m EmailMetadata) string {
	sum := sha256.Sum256([]byte(m.SenderDomain() + "|" + normalizeSubject(m.Subject)))
	return hex.EncodeToString(sum[:])
}

func normalizeSubject(subject string) string {
	var b strings.Builder
	lastDigit := false
	lastSpace := false
	for _, r := range strings.ToLower(subject) {
		switch {
		case unicode.IsDigit(r):
			if !lastDigit {
				b.WriteByte('#')
			}
			lastDigit, lastSpace = true, false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastDigit, lastSpace = false, true
		default:
			b.WriteRune(r)
			lastDigit, lastSpace = false, false
		}
	}
	return strings.TrimSpace(b.String())
}
