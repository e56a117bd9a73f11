package batch

import "time"

type State string

const (
	StateIdle               State = "IDLE"
	StateRunning            State = "RUNNING"
	StateCompleted          State = "COMPLETED"
	StatePartiallyCompleted State = "PARTIALLY_COMPLETED"
	StateFailed             State = "FAILED"
)

type Phase string

const (
	PhaseCacheRefresh Phase = "cache-refresh"
	PhaseScoring      Phase = "scoring"
	PhaseSelection    Phase = "selection"
)

// RunReport is what the orchestrator hands its caller: enough to decide
// whether the published selections are usable and where a resumed run would
// pick up.
type RunReport struct {
	RunDate         time.Time
	State           State
	PhasesCompleted []Phase
	StartedAt       time.Time
	FinishedAt      time.Time

	UsersTotal     int
	UsersProcessed int
	UsersFailed    int
	UsersRemaining int

	ScoresWritten     int
	SelectionsWritten int

	Resumed     bool
	FailureRate float64

	// Trustworthy is false when nothing published this run should be
	// consumed downstream.
	Trustworthy bool
}

func (r RunReport) phaseDone(p Phase) bool {
	for _, done := range r.PhasesCompleted {
		if done == p {
			return true
		}
	}
	return false
}
