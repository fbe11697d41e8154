package core

import (
	"errors"
	"fmt"
)

// ErrStepLimit is wrapped by StepLimiter.Increment once the budget is spent.
var ErrStepLimit = errors.New("step limit exceeded")

// StepLimiter counts the model round trips of one generation run; every tool
// round costs a step. It belongs to a single run and is not synchronized.
type StepLimiter struct {
	max   int
	count int
}

// NewStepLimiter allows max steps. Zero means unlimited.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment takes a step and fails with ErrStepLimit beyond the budget.
func (l *StepLimiter) Increment() error {
	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: %d steps", ErrStepLimit, l.max)
	}
	return nil
}

// Count returns the steps taken, including a refused one.
func (l *StepLimiter) Count() int { return l.count }

// Remaining returns the steps left, or -1 when unlimited.
func (l *StepLimiter) Remaining() int {
	if l.max == 0 {
		return -1
	}
	return l.max - l.count
}
