// Package scoring implements the three per-(user, job) relevance signals and
// their weighted aggregation. All scores live in [0,100]. The basic and
// relevance scorers are pure; only the aggregator consults per-user state.
package scoring

import (
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/score"
)

type BasicConfig struct {
	WageWeight       float64
	FeeWeight        float64
	PopularityWeight float64
	MinFee           float64
	FeeCeiling       float64
	Accepted         map[job.CompensationType]bool
}

type BasicResult struct {
	Score        float64
	Disqualified bool
	Reason       string
}

// Basic computes the content-independent quality score. A fee at or below
// the minimum, or an unaccepted compensation type, disqualifies the job
// outright: the zero is a filter, not a penalty, and disqualified jobs are
// dropped before the other engines run.
func Basic(cfg BasicConfig, j job.Job, pop score.EmployerPopularity, area score.AreaStat) BasicResult {
	if j.Fee <= cfg.MinFee {
		return BasicResult{Disqualified: true, Reason: "fee below minimum"}
	}
	if len(cfg.Accepted) > 0 && !cfg.Accepted[j.CompensationType] {
		return BasicResult{Disqualified: true, Reason: "compensation type not accepted"}
	}

	s := cfg.WageWeight*wageScore(j, area) +
		cfg.FeeWeight*feeScore(j.Fee, cfg.FeeCeiling) +
		cfg.PopularityWeight*pop.Score
	return BasicResult{Score: clamp(s)}
}

// wageScore rescales the area z-score of the job's normalized wage into
// [0,100]: the area mean maps to 50 and each standard deviation moves the
// score 25 points, clipped at ±2 sigma.
func wageScore(j job.Job, area score.AreaStat) float64 {
	w := j.NormalizedWage()
	if w <= 0 || area.StdDev <= 0 {
		return 50
	}
	z := (w - area.Mean) / area.StdDev
	return clamp(50 + z*25)
}

// feeScore rescales the fee linearly up to the configured ceiling; anything
// above the ceiling earns the same full score.
func feeScore(fee, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	if fee >= ceiling {
		return 100
	}
	return fee / ceiling * 100
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
