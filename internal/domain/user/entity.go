package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Region         string
	Locality       string
	IsActive       bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Profile is the nightly-recomputed summary of a user's interaction history.
// It is derived, never edited directly; the batch that recomputes it is the
// single writer per user.
type Profile struct {
	UserID            uuid.UUID
	CategoryWeights   map[string]float64
	RegionWeights     map[string]float64
	PreferredWageMin  float64
	PreferredWageMax  float64
	ViewCount         int
	ApplicationCount  int
	LastInteractionAt time.Time
	ComputedAt        time.Time
}

// TopCategories returns the n highest-weighted categories, heaviest first.
// Ties break on category name so the result is stable across runs.
func (p Profile) TopCategories(n int) []string {
	type cw struct {
		cat string
		w   float64
	}
	all := make([]cw, 0, len(p.CategoryWeights))
	for c, w := range p.CategoryWeights {
		all = append(all, cw{cat: c, w: w})
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0; j-- {
			a, b := all[j-1], all[j]
			if b.w > a.w || (b.w == a.w && b.cat < a.cat) {
				all[j-1], all[j] = b, a
			} else {
				break
			}
		}
	}
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, 0, n)
	for _, e := range all[:n] {
		out = append(out, e.cat)
	}
	return out
}
