package batch

import "errors"

// The error taxonomy separates failures by blast radius. Disqualification is
// not represented here at all: it is a business rule, handled inline by the
// basic scorer. Per-unit errors are contained and counted; only the
// systemic errors below abort a run.
var (
	// ErrDataQuality marks a user or job with missing or malformed fields.
	// The entity is skipped, the batch continues.
	ErrDataQuality = errors.New("data quality error")

	// ErrRunLocked means another scheduler already owns this run date.
	ErrRunLocked = errors.New("run already in progress for this date")

	// ErrFailureRate is the systemic abort: too many per-user failures to
	// trust the output.
	ErrFailureRate = errors.New("per-user failure rate exceeded threshold")

	// ErrBudgetExhausted means the wall-clock budget ran out before any
	// user was scored.
	ErrBudgetExhausted = errors.New("time budget exhausted with no users scored")
)
