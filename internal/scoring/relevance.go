package scoring

import (
	"sort"
	"strings"

	"job-digest/internal/domain/job"
	"job-digest/internal/domain/keyword"
)

// Field weights trust high-signal text over boilerplate: a keyword in the
// title says more about the posting than one buried in the perks blurb.
const (
	titleFieldWeight       = 1.0
	descriptionFieldWeight = 0.6
	perksFieldWeight       = 0.3
)

type RelevanceScorer struct {
	entries []corpusEntry
	topN    int
}

type corpusEntry struct {
	term       string
	band       float64
	multiplier float64
}

// NewRelevanceScorer pre-normalizes the demand-keyword corpus once so the
// per-job hot path is substring checks only.
func NewRelevanceScorer(corpus []keyword.Keyword, topN int) *RelevanceScorer {
	if topN <= 0 {
		topN = 7
	}
	entries := make([]corpusEntry, 0, len(corpus))
	for _, k := range corpus {
		term := Normalize(k.Term)
		if term == "" {
			continue
		}
		entries = append(entries, corpusEntry{
			term:       term,
			band:       volumeBand(k.SearchVolume),
			multiplier: k.Intent.Multiplier(),
		})
	}
	return &RelevanceScorer{entries: entries, topN: topN}
}

// Score matches the corpus against the job's text fields. Each matched
// keyword contributes band × intent × weight of the strongest field it
// appears in; only the top-N contributions count, so keyword stuffing in a
// long description cannot outrank a genuinely relevant title. No match
// yields zero, not a penalty.
func (s *RelevanceScorer) Score(j job.Job) float64 {
	if s == nil || len(s.entries) == 0 {
		return 0
	}

	title := Normalize(j.Title)
	desc := Normalize(j.Description)
	perks := Normalize(j.Perks)

	contributions := make([]float64, 0, 8)
	for _, e := range s.entries {
		fw := 0.0
		switch {
		case strings.Contains(title, e.term):
			fw = titleFieldWeight
		case strings.Contains(desc, e.term):
			fw = descriptionFieldWeight
		case strings.Contains(perks, e.term):
			fw = perksFieldWeight
		default:
			continue
		}
		contributions = append(contributions, e.band*e.multiplier*fw)
	}
	if len(contributions) == 0 {
		return 0
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(contributions)))
	if len(contributions) > s.topN {
		contributions = contributions[:s.topN]
	}

	total := 0.0
	for _, c := range contributions {
		total += c
	}
	return clamp(total)
}

// volumeBand buckets raw monthly search volume into a short score ladder.
// The buckets give diminishing returns: a 100k-search term is not 100x more
// evidence of demand than a 1k one.
func volumeBand(volume int) float64 {
	switch {
	case volume >= 10000:
		return 10
	case volume >= 5000:
		return 8
	case volume >= 1000:
		return 6
	case volume >= 100:
		return 4
	case volume > 0:
		return 2
	default:
		return 0
	}
}
