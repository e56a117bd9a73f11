package job

import (
	"time"

	"github.com/google/uuid"
)

type CompensationType string

const (
	CompensationHourly  CompensationType = "hourly"
	CompensationDaily   CompensationType = "daily"
	CompensationMonthly CompensationType = "monthly"
)

type Job struct {
	ID               uuid.UUID
	EmployerID       uuid.UUID
	Region           string
	Locality         string
	WageMin          float64
	WageMax          float64
	CompensationType CompensationType
	Fee              float64
	Title            string
	Description      string
	Perks            string
	Categories       []string
	HighBenefit      bool
	PostedAt         time.Time
	IsActive         bool
}

// NormalizedWage converts the wage midpoint to an hourly-equivalent value so
// jobs with different compensation types are comparable within one area.
func (j Job) NormalizedWage() float64 {
	mid := j.WageMin
	if j.WageMax > j.WageMin {
		mid = (j.WageMin + j.WageMax) / 2
	}
	switch j.CompensationType {
	case CompensationDaily:
		return mid / 8
	case CompensationMonthly:
		return mid / 160
	default:
		return mid
	}
}

func (j Job) HasCategory(c string) bool {
	for _, jc := range j.Categories {
		if jc == c {
			return true
		}
	}
	return false
}
