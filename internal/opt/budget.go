package opt

import (
	"context"
	"time"
)

// Stop reasons reported in Metrics.StopReason.
const (
	StopConverged  = "converged"
	StopIterations = "iterations"
	StopTime       = "time"
	StopCanceled   = "canceled"
)

// Budget limits a search by iteration count and wall-clock time. Zero values
// mean unlimited. It is polled between iterations only.
type Budget struct {
	MaxIterations int
	TimeLimit     time.Duration

	start  time.Time
	used   int
	reason string
}

// NewBudget starts the wall clock immediately.
func NewBudget(maxIterations int, timeLimit time.Duration) *Budget {
	return &Budget{MaxIterations: maxIterations, TimeLimit: timeLimit, start: time.Now()}
}

// Next reports whether another iteration may run and, if so, counts it.
// Once exhausted it keeps returning false.
func (b *Budget) Next(ctx context.Context) bool {
	if b.reason != "" {
		return false
	}
	switch {
	case ctx.Err() != nil:
		b.reason = StopCanceled
	case b.MaxIterations > 0 && b.used >= b.MaxIterations:
		b.reason = StopIterations
	case b.TimeLimit > 0 && time.Since(b.start) >= b.TimeLimit:
		b.reason = StopTime
	default:
		b.used++
		return true
	}
	return false
}

// Used returns the number of iterations granted so far.
func (b *Budget) Used() int { return b.used }

// Elapsed returns the time since the budget started.
func (b *Budget) Elapsed() time.Duration { return time.Since(b.start) }

// ExhaustedBy names the limit that ended the search, or "" if none has.
func (b *Budget) ExhaustedBy() string { return b.reason }
