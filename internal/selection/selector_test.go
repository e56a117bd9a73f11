package selection

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"job-digest/internal/config"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/score"
	"job-digest/internal/domain/user"

	"github.com/google/uuid"
)

func planSections() []config.SectionConfig {
	return []config.SectionConfig{
		{Name: "top", Kind: "top", Quota: 5},
		{Name: "regional", Kind: "regional", Quota: 10},
		{Name: "nearby", Kind: "nearby", Quota: 10},
		{Name: "benefits", Kind: "benefits", Quota: 10},
		{Name: "new", Kind: "fresh", Quota: 5, MaxAgeDays: 3},
	}
}

func planSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := New(planSections(), config.SelectionConfig{
		EmployerCap: 5,
		Adjacent:    map[string][]string{"shibuya": {"shinjuku", "meguro"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// seqUUID produces ids whose byte order follows n, so tie-break order in
// tests is predictable.
func seqUUID(n byte) uuid.UUID {
	var id uuid.UUID
	id[15] = n
	return id
}

func makeCandidate(n byte, composite float64, region, locality string, benefit bool, postedAgo time.Duration, now time.Time) Candidate {
	return Candidate{
		Job: job.Job{
			ID:          seqUUID(n),
			EmployerID:  uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("emp-%d", n))),
			Region:      region,
			Locality:    locality,
			HighBenefit: benefit,
			PostedAt:    now.Add(-postedAgo),
		},
		Composite: composite,
	}
}

func TestNew_UnknownSectionKind(t *testing.T) {
	_, err := New([]config.SectionConfig{{Name: "x", Kind: "mystery", Quota: 5}}, config.SelectionConfig{})
	if err == nil {
		t.Fatal("expected error for unknown section kind")
	}
}

func TestSelect_QuotasAndNoDuplicates(t *testing.T) {
	s := planSelector(t)
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	// Plenty of candidates eligible everywhere.
	var cs []Candidate
	for i := byte(1); i <= 60; i++ {
		cs = append(cs, makeCandidate(i, float64(100-int(i)), "tokyo", "shibuya", true, time.Hour, now))
	}

	got := s.Select(u, cs, now, now)

	perSection := map[string]int{}
	seen := map[uuid.UUID]bool{}
	for _, sel := range got {
		perSection[sel.Section]++
		if seen[sel.JobID] {
			t.Fatalf("job %s placed twice", sel.JobID)
		}
		seen[sel.JobID] = true
	}
	want := map[string]int{"top": 5, "regional": 10, "nearby": 10, "benefits": 10, "new": 5}
	if !reflect.DeepEqual(perSection, want) {
		t.Fatalf("section counts = %v, want %v", perSection, want)
	}
	if len(got) != s.Quota() {
		t.Fatalf("expected %d selections, got %d", s.Quota(), len(got))
	}
}

func TestSelect_EmployerCapIsGlobal(t *testing.T) {
	s := planSelector(t)
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	// One employer owning the 20 best-scored jobs: the cap must hold
	// across all sections combined, not per section.
	bigEmployer := uuid.New()
	var cs []Candidate
	for i := byte(1); i <= 20; i++ {
		c := makeCandidate(i, float64(200-int(i)), "tokyo", "shibuya", true, time.Hour, now)
		c.Job.EmployerID = bigEmployer
		cs = append(cs, c)
	}
	for i := byte(21); i <= 80; i++ {
		cs = append(cs, makeCandidate(i, float64(100-int(i)), "tokyo", "shibuya", true, time.Hour, now))
	}

	got := s.Select(u, cs, now, now)
	count := 0
	for _, sel := range got {
		for _, c := range cs {
			if c.Job.ID == sel.JobID && c.Job.EmployerID == bigEmployer {
				count++
			}
		}
	}
	if count != 5 {
		t.Fatalf("expected exactly 5 placements for the capped employer, got %d", count)
	}
}

func TestSelect_SectionEligibility(t *testing.T) {
	s := planSelector(t)
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	cs := []Candidate{
		makeCandidate(1, 90, "osaka", "namba", false, 10*24*time.Hour, now),   // top only
		makeCandidate(2, 80, "tokyo", "chiyoda", false, 10*24*time.Hour, now), // + regional
		makeCandidate(3, 70, "tokyo", "shinjuku", false, 10*24*time.Hour, now),
		makeCandidate(4, 60, "osaka", "namba", true, 10*24*time.Hour, now), // + benefits
		makeCandidate(5, 50, "osaka", "namba", false, 24*time.Hour, now),   // + fresh
	}

	bySection := map[string][]uuid.UUID{}
	for _, sel := range s.Select(u, cs, now, now) {
		bySection[sel.Section] = append(bySection[sel.Section], sel.JobID)
	}

	if len(bySection["top"]) != 5 {
		t.Fatalf("top should absorb all 5 candidates, got %v", bySection["top"])
	}
	// Everything was already placed by the top section, so the remaining
	// sections come up empty even where candidates were eligible.
	for _, name := range []string{"regional", "nearby", "benefits", "new"} {
		if len(bySection[name]) != 0 {
			t.Fatalf("section %s should be empty after top absorbed the pool, got %v", name, bySection[name])
		}
	}
}

func TestSelect_NearbyUsesAdjacency(t *testing.T) {
	s, err := New(
		[]config.SectionConfig{{Name: "nearby", Kind: "nearby", Quota: 10}},
		config.SelectionConfig{EmployerCap: 5, Adjacent: map[string][]string{"shibuya": {"shinjuku"}}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	cs := []Candidate{
		makeCandidate(1, 90, "tokyo", "shibuya", false, time.Hour, now),
		makeCandidate(2, 80, "tokyo", "shinjuku", false, time.Hour, now),
		makeCandidate(3, 70, "tokyo", "meguro", false, time.Hour, now),
	}
	got := s.Select(u, cs, now, now)
	if len(got) != 2 {
		t.Fatalf("expected own locality + adjacent only, got %d placements", len(got))
	}
	for _, sel := range got {
		if sel.JobID == seqUUID(3) {
			t.Fatal("meguro is not adjacent in this config and must not match")
		}
	}
}

func TestSelect_FreshExcludesFuturePostedAt(t *testing.T) {
	s, err := New(
		[]config.SectionConfig{{Name: "new", Kind: "fresh", Quota: 5, MaxAgeDays: 3}},
		config.SelectionConfig{EmployerCap: 5},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	fresh := makeCandidate(1, 80, "tokyo", "shibuya", false, time.Hour, now)
	future := makeCandidate(2, 90, "tokyo", "shibuya", false, -48*time.Hour, now)

	got := s.Select(u, []Candidate{fresh, future}, now, now)
	if len(got) != 1 {
		t.Fatalf("expected only the genuinely fresh job, got %d placements", len(got))
	}
	if got[0].JobID != seqUUID(1) {
		t.Fatal("job with a future posted-at date must not be eligible")
	}
}

func TestSelect_ShortFill(t *testing.T) {
	s := planSelector(t)
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	// 37 distinct-employer candidates, all broadly eligible, against a
	// 40-slot plan: the run still succeeds with 37 placements.
	var cs []Candidate
	for i := byte(1); i <= 37; i++ {
		cs = append(cs, makeCandidate(i, float64(100-int(i)), "tokyo", "shibuya", true, time.Hour, now))
	}

	got := s.Select(u, cs, now, now)
	if len(got) != 37 {
		t.Fatalf("expected 37 placements, got %d", len(got))
	}
}

func TestSelect_Deterministic(t *testing.T) {
	s := planSelector(t)
	now := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	var cs []Candidate
	for i := byte(1); i <= 30; i++ {
		// Deliberate score ties in groups of three to exercise the
		// job-id tie break.
		cs = append(cs, makeCandidate(i, float64(90-int(i)/3), "tokyo", "shibuya", i%2 == 0, time.Hour, now))
	}

	first := s.Select(u, cs, now, now)

	// Same candidates in reverse input order must yield the same output.
	rev := make([]Candidate, len(cs))
	for i, c := range cs {
		rev[len(cs)-1-i] = c
	}
	second := s.Select(u, rev, now, now)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("selection must be independent of candidate input order")
	}
}

func TestSelect_TieBreakByJobID(t *testing.T) {
	a := Candidate{Job: job.Job{ID: seqUUID(1)}, Composite: 50}
	b := Candidate{Job: job.Job{ID: seqUUID(2)}, Composite: 50}
	if !candidateLess(a, b) {
		t.Fatal("equal composites must order by ascending job id")
	}
	higher := Candidate{Job: job.Job{ID: seqUUID(9)}, Composite: 60}
	if !candidateLess(higher, a) {
		t.Fatal("higher composite must rank first regardless of id")
	}
}

func TestSelect_RanksStartAtOnePerSection(t *testing.T) {
	s := planSelector(t)
	now := time.Now().UTC()
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	var cs []Candidate
	for i := byte(1); i <= 60; i++ {
		cs = append(cs, makeCandidate(i, float64(100-int(i)), "tokyo", "shibuya", true, time.Hour, now))
	}

	lastRank := map[string]int{}
	for _, sel := range s.Select(u, cs, now, now) {
		if sel.Rank != lastRank[sel.Section]+1 {
			t.Fatalf("section %s rank jumped from %d to %d", sel.Section, lastRank[sel.Section], sel.Rank)
		}
		lastRank[sel.Section] = sel.Rank
	}
}

// score.Selection is what persists; sanity check the fields Select fills.
func TestSelect_SelectionFields(t *testing.T) {
	s := planSelector(t)
	now := time.Now().UTC()
	runDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	u := user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya"}

	cs := []Candidate{makeCandidate(1, 72.5, "tokyo", "shibuya", false, time.Hour, now)}
	got := s.Select(u, cs, runDate, now)
	if len(got) == 0 {
		t.Fatal("expected at least one placement")
	}
	sel := got[0]
	want := score.Selection{
		UserID:     u.ID,
		JobID:      seqUUID(1),
		RunDate:    runDate,
		Section:    "top",
		Rank:       1,
		Composite:  72.5,
		IsSelected: true,
	}
	if sel != want {
		t.Fatalf("selection = %+v, want %+v", sel, want)
	}
}
