package scoring

import (
	"math"
	"testing"

	"job-digest/internal/domain/job"
	"job-digest/internal/domain/score"
)

func testBasicConfig() BasicConfig {
	return BasicConfig{
		WageWeight:       0.40,
		FeeWeight:        0.30,
		PopularityWeight: 0.30,
		MinFee:           500,
		FeeCeiling:       10000,
		Accepted: map[job.CompensationType]bool{
			job.CompensationHourly:  true,
			job.CompensationDaily:   true,
			job.CompensationMonthly: true,
		},
	}
}

func TestBasic_DisqualifiesLowFee(t *testing.T) {
	cfg := testBasicConfig()
	j := job.Job{Fee: 400, CompensationType: job.CompensationHourly}

	res := Basic(cfg, j, score.EmployerPopularity{Score: 90}, score.AreaStat{Mean: 1200, StdDev: 150})
	if !res.Disqualified {
		t.Fatal("expected fee 400 to disqualify")
	}
	if res.Score != 0 {
		t.Fatalf("disqualified job must score 0, got %v", res.Score)
	}
}

func TestBasic_DisqualifiesFeeAtMinimum(t *testing.T) {
	cfg := testBasicConfig()
	j := job.Job{Fee: 500, CompensationType: job.CompensationHourly}

	res := Basic(cfg, j, score.EmployerPopularity{}, score.AreaStat{})
	if !res.Disqualified {
		t.Fatal("fee equal to the minimum must disqualify")
	}
}

func TestBasic_DisqualifiesUnacceptedCompensation(t *testing.T) {
	cfg := testBasicConfig()
	cfg.Accepted = map[job.CompensationType]bool{job.CompensationHourly: true}
	j := job.Job{Fee: 5000, CompensationType: job.CompensationMonthly, WageMin: 300000}

	res := Basic(cfg, j, score.EmployerPopularity{Score: 50}, score.AreaStat{Mean: 1200, StdDev: 150})
	if !res.Disqualified {
		t.Fatal("expected monthly compensation to disqualify")
	}
}

func TestBasic_WeightedScore(t *testing.T) {
	cfg := testBasicConfig()
	// Hourly wage 1500 against mean 1200 / stddev 150 gives z = 2.0, so
	// the wage component saturates at 100. Fee 5000 against ceiling 10000
	// gives 50.
	j := job.Job{
		Fee:              5000,
		WageMin:          1500,
		CompensationType: job.CompensationHourly,
	}
	pop := score.EmployerPopularity{Score: 70}
	area := score.AreaStat{Mean: 1200, StdDev: 150}

	res := Basic(cfg, j, pop, area)
	if res.Disqualified {
		t.Fatalf("unexpected disqualification: %s", res.Reason)
	}
	want := 0.40*100 + 0.30*50 + 0.30*70
	if math.Abs(res.Score-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, res.Score)
	}
}

func TestBasic_WageScoreNeutralWithoutStats(t *testing.T) {
	cfg := testBasicConfig()
	j := job.Job{Fee: 2000, WageMin: 1500, CompensationType: job.CompensationHourly}

	// Zero stddev means the area has no usable distribution; the wage
	// component falls back to the neutral midpoint.
	res := Basic(cfg, j, score.EmployerPopularity{Score: 0}, score.AreaStat{Mean: 0, StdDev: 0})
	want := 0.40*50 + 0.30*(2000.0/10000.0*100) + 0.30*0
	if math.Abs(res.Score-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, res.Score)
	}
}

func TestBasic_WageScoreClipsAtTwoSigma(t *testing.T) {
	area := score.AreaStat{Mean: 1000, StdDev: 100}

	high := job.Job{WageMin: 2000, CompensationType: job.CompensationHourly}
	if got := wageScore(high, area); got != 100 {
		t.Fatalf("z=10 should clip to 100, got %v", got)
	}

	low := job.Job{WageMin: 500, CompensationType: job.CompensationHourly}
	if got := wageScore(low, area); got != 0 {
		t.Fatalf("z=-5 should clip to 0, got %v", got)
	}
}

func TestBasic_NormalizedWageConvertsTypes(t *testing.T) {
	daily := job.Job{WageMin: 8000, CompensationType: job.CompensationDaily}
	if got := daily.NormalizedWage(); got != 1000 {
		t.Fatalf("daily 8000 should normalize to 1000, got %v", got)
	}

	monthly := job.Job{WageMin: 160000, WageMax: 320000, CompensationType: job.CompensationMonthly}
	if got := monthly.NormalizedWage(); got != 1500 {
		t.Fatalf("monthly midpoint 240000 should normalize to 1500, got %v", got)
	}
}

func TestFeeScore_CeilingCap(t *testing.T) {
	if got := feeScore(15000, 10000); got != 100 {
		t.Fatalf("fee above ceiling should score 100, got %v", got)
	}
	if got := feeScore(2500, 10000); got != 25 {
		t.Fatalf("expected 25, got %v", got)
	}
}
