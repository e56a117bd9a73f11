package score

import (
	"time"

	"github.com/google/uuid"
)

// Score holds the three independent signals and their weighted combination
// for one (user, job) pair. Each run conceptually overwrites the previous
// row for the same pair.
type Score struct {
	UserID          uuid.UUID
	JobID           uuid.UUID
	Basic           float64
	Relevance       float64
	Personalization float64
	Composite       float64
	FallbackUsed    bool
	ComputedAt      time.Time
}

// Selection is one placed job in a user's final list for a run date.
type Selection struct {
	UserID     uuid.UUID
	JobID      uuid.UUID
	RunDate    time.Time
	Section    string
	Rank       int
	Composite  float64
	IsSelected bool
}

// AreaStat is the cached wage distribution for one geographic area.
type AreaStat struct {
	Region      string
	Mean        float64
	StdDev      float64
	SampleCount int
	ComputedAt  time.Time
}

// EmployerPopularity is the cached engagement summary for one employer.
type EmployerPopularity struct {
	EmployerID uuid.UUID
	Views360   int
	Apps360    int
	Views30    int
	Apps30     int
	Views7     int
	Apps7      int
	Rate360    float64
	Rate30     float64
	Rate7      float64
	Score      float64
	Rank       int
	ComputedAt time.Time
}
