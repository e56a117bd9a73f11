// Package personalize owns the collaborative-filtering signal: an implicit
// feedback latent-factor model trained on the user×job interaction matrix,
// with a profile-based fallback for users and jobs the model has not seen.
//
// Model lifecycle:
//
//	UNTRAINED ──► TRAINING ──► ACTIVE ──► STALE ──► RETRAINING ──► ACTIVE
//	                 │                                   │
//	                 └──► UNTRAINED (failure)            └──► ACTIVE (failure, prior model kept)
package personalize

import "fmt"

type State string

const (
	StateUntrained  State = "UNTRAINED"
	StateTraining   State = "TRAINING"
	StateActive     State = "ACTIVE"
	StateStale      State = "STALE"
	StateRetraining State = "RETRAINING"
)

// validTransitions lists every allowed (from → to) pair. A retraining
// failure transitions back to ACTIVE because the prior model stays in
// service; only an initial training failure returns to UNTRAINED.
var validTransitions = map[State][]State{
	StateUntrained:  {StateTraining},
	StateTraining:   {StateActive, StateUntrained},
	StateActive:     {StateStale},
	StateStale:      {StateRetraining},
	StateRetraining: {StateActive},
}

func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (e *Engine) transition(to State) error {
	from := e.state
	if !IsTransitionAllowed(from, to) {
		return fmt.Errorf("invalid model state transition %s -> %s", from, to)
	}
	e.state = to
	return nil
}
