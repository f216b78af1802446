package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer bounds the work one Settle may perform.
//
// Cycle detection catches a node that re-enters itself. The quota catches
// the other runaway shape: watch callbacks that keep mutating the graph and
// scheduling fresh work (A → B → C → ...).
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and fails once the limit is passed.
func (q *QuotaEnforcer) Check(batch string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Batch: batch,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Current returns the number of steps taken.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned by Settle when a batch exceeds the step
// quota. Remaining queued work is discarded.
type StepsExceededError struct {
	Batch string
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("batch %s exceeded max steps quota: %d steps > %d limit",
		e.Batch, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
