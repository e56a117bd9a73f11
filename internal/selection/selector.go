// Package selection builds each user's final bounded job list from the
// scored candidates: a fixed plan of named, quota-bounded sections, filled
// greedily by composite score with a global per-employer cap and no
// duplicate jobs across sections.
package selection

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"job-digest/internal/config"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/score"
	"job-digest/internal/domain/user"

	"github.com/google/uuid"
)

// Candidate is one scored, non-disqualified job.
type Candidate struct {
	Job       job.Job
	Composite float64
}

type Section struct {
	Name       string
	Quota      int
	MaxAgeDays int
	eligible   func(u user.User, c Candidate, now time.Time) bool
}

type Selector struct {
	sections    []Section
	employerCap int
	adjacent    map[string][]string
}

func New(cfgs []config.SectionConfig, sel config.SelectionConfig) (*Selector, error) {
	s := &Selector{employerCap: sel.EmployerCap, adjacent: sel.Adjacent}
	for _, sc := range cfgs {
		sec := Section{Name: sc.Name, Quota: sc.Quota, MaxAgeDays: sc.MaxAgeDays}
		switch sc.Kind {
		case "top":
			sec.eligible = func(user.User, Candidate, time.Time) bool { return true }
		case "regional":
			sec.eligible = func(u user.User, c Candidate, _ time.Time) bool {
				return u.Region != "" && c.Job.Region == u.Region
			}
		case "nearby":
			sec.eligible = s.nearbyEligible
		case "benefits":
			sec.eligible = func(_ user.User, c Candidate, _ time.Time) bool {
				return c.Job.HighBenefit
			}
		case "fresh":
			maxAge := time.Duration(sc.MaxAgeDays) * 24 * time.Hour
			sec.eligible = func(_ user.User, c Candidate, now time.Time) bool {
				age := now.Sub(c.Job.PostedAt)
				return age >= 0 && age <= maxAge
			}
		default:
			return nil, fmt.Errorf("unknown section kind %q", sc.Kind)
		}
		s.sections = append(s.sections, sec)
	}
	return s, nil
}

// nearbyEligible matches the user's own locality or a configured adjacent
// one.
func (s *Selector) nearbyEligible(u user.User, c Candidate, _ time.Time) bool {
	if u.Locality == "" {
		return false
	}
	if c.Job.Locality == u.Locality {
		return true
	}
	for _, adj := range s.adjacent[u.Locality] {
		if c.Job.Locality == adj {
			return true
		}
	}
	return false
}

// Select fills the sections in plan order. Within a section candidates rank
// by composite score descending with job id ascending as the tie break, so
// identical inputs always produce identical output. A candidate is skipped
// (not failed) when it would repeat a job already placed or push its
// employer past the cap; a section that runs out of eligible candidates is
// filled short.
func (s *Selector) Select(u user.User, candidates []Candidate, runDate time.Time, now time.Time) []score.Selection {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sortCandidates(ranked)

	placed := make(map[uuid.UUID]bool)
	employerCount := make(map[uuid.UUID]int)
	var out []score.Selection

	for _, sec := range s.sections {
		taken := 0
		for _, c := range ranked {
			if taken >= sec.Quota {
				break
			}
			if placed[c.Job.ID] {
				continue
			}
			if s.employerCap > 0 && employerCount[c.Job.EmployerID] >= s.employerCap {
				continue
			}
			if !sec.eligible(u, c, now) {
				continue
			}
			placed[c.Job.ID] = true
			employerCount[c.Job.EmployerID]++
			taken++
			out = append(out, score.Selection{
				UserID:     u.ID,
				JobID:      c.Job.ID,
				RunDate:    runDate,
				Section:    sec.Name,
				Rank:       taken,
				Composite:  c.Composite,
				IsSelected: true,
			})
		}
	}
	return out
}

// Quota returns the total across all sections, the upper bound on one
// user's selection size.
func (s *Selector) Quota() int {
	total := 0
	for _, sec := range s.sections {
		total += sec.Quota
	}
	return total
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		return candidateLess(cs[i], cs[j])
	})
}

func candidateLess(a, b Candidate) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	ab, bb := a.Job.ID, b.Job.ID
	return bytes.Compare(ab[:], bb[:]) < 0
}
