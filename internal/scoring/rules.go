package scoring

import (
	"fmt"
	"time"

	"job-digest/internal/config"
	"job-digest/internal/domain/event"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/user"
)

// RuleContext is the per-user state the adjustment rules may consult.
type RuleContext struct {
	Profile      user.Profile
	ProfileFound bool
	Recent       []event.Interaction
	Now          time.Time
}

// Rule is one declarative predicate → adjustment pair. Rules are evaluated
// in declaration order; positive adjustments are bonuses, negative ones
// penalties.
type Rule struct {
	Name       string
	Adjustment float64
	Applies    func(rctx RuleContext, j job.Job) bool
}

// BuildRules turns rule configuration into executable predicates. Unknown
// kinds are a configuration error, caught at startup.
func BuildRules(cfgs []config.RuleConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfgs))
	for _, rc := range cfgs {
		var applies func(RuleContext, job.Job) bool
		switch rc.Kind {
		case "category_match":
			applies = categoryMatch
		case "recent_application":
			within := time.Duration(rc.WithinDays) * 24 * time.Hour
			applies = recentApplication(within)
		case "high_benefit":
			applies = func(_ RuleContext, j job.Job) bool { return j.HighBenefit }
		default:
			return nil, fmt.Errorf("unknown rule kind %q", rc.Kind)
		}
		rules = append(rules, Rule{Name: rc.Name, Adjustment: rc.Adjustment, Applies: applies})
	}
	return rules, nil
}

// categoryMatch fires when one of the job's categories is among the user's
// three heaviest preference categories.
func categoryMatch(rctx RuleContext, j job.Job) bool {
	if !rctx.ProfileFound {
		return false
	}
	for _, top := range rctx.Profile.TopCategories(3) {
		if j.HasCategory(top) {
			return true
		}
	}
	return false
}

// recentApplication fires when the user already applied to this employer
// inside the window; re-surfacing the same employer right away wastes a
// slot.
func recentApplication(within time.Duration) func(RuleContext, job.Job) bool {
	return func(rctx RuleContext, j job.Job) bool {
		cutoff := rctx.Now.Add(-within)
		for _, in := range rctx.Recent {
			if in.Type != event.TypeApply {
				continue
			}
			if in.EmployerID == j.EmployerID && in.OccurredAt.After(cutoff) {
				return true
			}
		}
		return false
	}
}
