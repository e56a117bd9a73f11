package keyword

import "github.com/google/uuid"

type Intent string

const (
	IntentCommercial    Intent = "commercial"
	IntentTransactional Intent = "transactional"
	IntentInformational Intent = "informational"
	IntentNavigational  Intent = "navigational"
)

// Keyword is one entry of the demand-keyword corpus: a search term users
// actually look for, with its observed monthly search volume and intent.
type Keyword struct {
	ID           uuid.UUID
	Term         string
	SearchVolume int
	Intent       Intent
}

// Multiplier weights keyword intent: terms that signal a user ready to apply
// count more than purely informational ones.
func (i Intent) Multiplier() float64 {
	switch i {
	case IntentTransactional:
		return 1.5
	case IntentCommercial:
		return 1.3
	case IntentNavigational:
		return 1.0
	case IntentInformational:
		return 0.8
	default:
		return 1.0
	}
}
