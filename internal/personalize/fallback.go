package personalize

import (
	"job-digest/internal/domain/event"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/user"
)

// Fallback scores a (user, job) pair without the trained model: a blend of
// profile similarity (what the user's aggregated history says they prefer)
// and a heuristic over their most recent click/apply categories. Used for
// cold-start users and jobs, and whenever no model is active.
func Fallback(profile user.Profile, profileFound bool, recentCategories map[string]bool, j job.Job) float64 {
	if !profileFound {
		// Nothing known at all: neutral midpoint, recency heuristic only.
		return clampScore(40 + recentBoost(recentCategories, j))
	}

	s := 0.0

	// Category affinity: the job's best matching category weight, where the
	// profile weights are normalized frequencies in [0,1].
	best := 0.0
	for _, c := range j.Categories {
		if w := profile.CategoryWeights[c]; w > best {
			best = w
		}
	}
	s += 45 * best

	// Location affinity by region weight.
	s += 25 * profile.RegionWeights[j.Region]

	// Compensation fit: full credit inside the preferred band, fading with
	// distance outside it.
	s += 15 * wageFit(profile, j)

	return clampScore(s + recentBoost(recentCategories, j))
}

// RecentCategories collects the categories of jobs the user clicked or
// applied to recently. Computed once per user, reused across all candidate
// jobs.
func RecentCategories(recent []event.Interaction, categoriesByJob map[string][]string) map[string]bool {
	out := make(map[string]bool)
	for _, in := range recent {
		if in.Type != event.TypeClick && in.Type != event.TypeApply {
			continue
		}
		for _, c := range categoriesByJob[in.JobID.String()] {
			out[c] = true
		}
	}
	return out
}

func recentBoost(recentCategories map[string]bool, j job.Job) float64 {
	for _, c := range j.Categories {
		if recentCategories[c] {
			return 15
		}
	}
	return 0
}

func wageFit(p user.Profile, j job.Job) float64 {
	if p.PreferredWageMax <= 0 {
		return 0.5
	}
	w := j.NormalizedWage()
	if w >= p.PreferredWageMin && w <= p.PreferredWageMax {
		return 1
	}
	var dist float64
	if w < p.PreferredWageMin {
		dist = (p.PreferredWageMin - w) / p.PreferredWageMin
	} else {
		dist = (w - p.PreferredWageMax) / p.PreferredWageMax
	}
	if dist > 1 {
		dist = 1
	}
	return 1 - dist
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
