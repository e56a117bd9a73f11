package scoring

import "job-digest/internal/domain/job"

// Aggregator combines the three signals into one composite score and applies
// the adjustment rules. Weights come from configuration and are validated
// (together with the bonus budget) to sum to 1.0 before anything is scored.
type Aggregator struct {
	basicWeight           float64
	relevanceWeight       float64
	personalizationWeight float64
	rules                 []Rule
}

func NewAggregator(basicW, relevanceW, personalizationW float64, rules []Rule) *Aggregator {
	return &Aggregator{
		basicWeight:           basicW,
		relevanceWeight:       relevanceW,
		personalizationWeight: personalizationW,
		rules:                 rules,
	}
}

// Composite returns the clamped weighted sum plus rule adjustments. Callers
// must exclude basic-disqualified jobs before calling; a disqualification is
// an exclusion, not an input of zero.
func (a *Aggregator) Composite(basic, relevance, personalization float64, rctx RuleContext, j job.Job) float64 {
	s := a.basicWeight*basic + a.relevanceWeight*relevance + a.personalizationWeight*personalization
	for _, r := range a.rules {
		if r.Applies(rctx, j) {
			s += r.Adjustment
		}
	}
	return clamp(s)
}
