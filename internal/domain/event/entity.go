package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeView     Type = "view"
	TypeClick    Type = "click"
	TypeApply    Type = "apply"
	TypeFavorite Type = "favorite"
)

// Interaction is an append-only record of one user action on one job. It is
// the source of truth for both the popularity cache and the personalization
// model; rows older than the retention window are purged by the store.
type Interaction struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	JobID      uuid.UUID
	EmployerID uuid.UUID
	Type       Type
	OccurredAt time.Time
	SessionID  string
	Device     string
}

func ParseType(s string) (Type, bool) {
	t := Type(s)
	switch t {
	case TypeView, TypeClick, TypeApply, TypeFavorite:
		return t, true
	}
	return "", false
}
