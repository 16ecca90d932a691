package core

// Arbiter applies the final confidence thresholding policy to whichever
// tier produced a tentative result.
type Arbiter struct {
	autoActThreshold float64
	reviewThreshold  float64
}

// NewArbiter creates an arbiter with the given thresholds. autoAct is the
// confidence at or above which the proposed action is used as-is; below
// review the safest default (keep) is forced; between the two the action
// is downgraded to review.
func NewArbiter(autoAct, review float64) *Arbiter {
	return &Arbiter{autoActThreshold: autoAct, reviewThreshold: review}
}

// Choose picks between the Tier 1 and Tier 2 proposals. The classifier is
// preferred whenever it ran; an equal-confidence disagreement resolves to
// the safer action so a tie can never favor the destructive branch.
func (a *Arbiter) Choose(tier1, tier2 *TierResult) *TierResult {
	if tier2 == nil {
		return tier1
	}
	if tier1 == nil {
		return tier2
	}
	if tier1.Confidence == tier2.Confidence && tier1.Action != tier2.Action {
		safer := SaferAction(tier1.Action, tier2.Action)
		if safer == tier1.Action {
			return tier1
		}
	}
	return tier2
}

// Arbitrate turns a tentative tier result into the final classification by
// applying the threshold bands.
func (a *Arbiter) Arbitrate(proposal *TierResult) ClassificationResult {
	if proposal == nil {
		return ClassificationResult{
			Action:     ActionKeep,
			Confidence: 0,
			Reason:     "no tier produced a result",
			Tier:       TierArbiterDefault,
		}
	}

	result := ClassificationResult{
		Action:     proposal.Action,
		Confidence: proposal.Confidence,
		Reason:     proposal.Reason,
		Tier:       proposal.Tier,
		CostUSD:    proposal.CostUSD,
		FromCache:  proposal.FromCache,
	}

	switch {
	case proposal.Confidence >= a.autoActThreshold:
		return result
	case proposal.Confidence >= a.reviewThreshold:
		result.Action = ActionReview
		result.Reason = "low confidence (" + proposal.Reason + ")"
		return result
	default:
		result.Action = ActionKeep
		result.Reason = "insufficient confidence (" + proposal.Reason + ")"
		return result
	}
}
