package core

import "strings"

// Signal weights for Tier 1. The combined score is the MAX of applicable
// weights, never a sum, so several weak signals cannot inflate into a
// confident trash verdict on their own.
const (
	weightUnsubscribe  = 0.92
	weightBulkPlatform = 0.75

	// signalTrashThreshold is the Tier 1 score at which trash is proposed.
	signalTrashThreshold = 0.90
	// signalArchiveThreshold is the floor of the archive-leaning band.
	signalArchiveThreshold = 0.60
)

// categoryWeights scores how strongly a mailbox category leans toward
// "not valuable". A negative weight is a sentinel: the category may never
// be auto-trashed no matter what other signals say.
var categoryWeights = map[string]float64{
	"promotions": 0.85,
	"social":     0.65,
	"updates":    0.50,
	"forums":     0.45,
	"primary":    -1,
	"personal":   -1,
}

// bulkPlatformDomains are sending domains of known bulk-mail platforms.
var bulkPlatformDomains = map[string]bool{
	"mailchimp.com":       true,
	"mailchimpapp.net":    true,
	"sendgrid.net":        true,
	"constantcontact.com": true,
	"mailgun.org":         true,
	"campaign-archive.com": true,
	"substack.com":        true,
	"klaviyomail.com":     true,
}

// SignalScorer is Tier 1: weighted heuristic signals over metadata alone.
type SignalScorer struct{}

// NewSignalScorer creates a Tier 1 scorer.
func NewSignalScorer() *SignalScorer {
	return &SignalScorer{}
}

// Score computes the strongest applicable trash-leaning signal and turns
// it into a proposal. It returns nil when Tier 1 declines and the decision
// falls through to Tier 2.
func (s *SignalScorer) Score(m EmailMetadata) *TierResult {
	score, reason, noTrash := s.combine(m)
	if noTrash {
		// Primary-like category: never propose trash from heuristics,
		// and let the classifier weigh in instead.
		return nil
	}

	switch {
	case score >= signalTrashThreshold:
		return &TierResult{
			Action:     ActionTrash,
			Confidence: score,
			Reason:     reason,
			Tier:       TierSignals,
		}
	case score >= signalArchiveThreshold:
		return &TierResult{
			Action:     ActionArchive,
			Confidence: score,
			Reason:     reason,
			Tier:       TierSignals,
		}
	default:
		return nil
	}
}

func (s *SignalScorer) combine(m EmailMetadata) (score float64, reason string, noTrash bool) {
	if w, ok := categoryWeights[strings.ToLower(strings.TrimSpace(m.Category))]; ok {
		if w < 0 {
			return 0, "", true
		}
		score, reason = w, "category: "+strings.ToLower(m.Category)
	}
	if m.HasUnsubscribe && weightUnsubscribe > score {
		score, reason = weightUnsubscribe, "bulk unsubscribe header"
	}
	if bulkPlatformDomains[m.SenderDomain()] && weightBulkPlatform > score {
		score, reason = weightBulkPlatform, "bulk-mail platform sender"
	}
	return score, reason, false
}
