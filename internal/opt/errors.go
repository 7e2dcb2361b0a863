package opt

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsolvable is returned before any search when some task cannot be
	// carried by the vehicle it must be placed on.
	ErrUnsolvable = errors.New("unsolvable input")
	// ErrStructural marks an operator whose preconditions do not hold on the
	// solution it was applied to.
	ErrStructural = errors.New("structural inconsistency")
	// ErrInvalidProblem wraps problem validation failures.
	ErrInvalidProblem = errors.New("invalid problem")
	// ErrUnknownStrategy is returned for an unrecognised strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// UnsolvableError names the task that no eligible vehicle can carry.
type UnsolvableError struct {
	TaskID      string
	Weight      int
	MaxCapacity int
}

func (e *UnsolvableError) Error() string {
	return fmt.Sprintf("unsolvable input: task %s weighs %d, largest eligible capacity is %d", e.TaskID, e.Weight, e.MaxCapacity)
}

func (e *UnsolvableError) Unwrap() error { return ErrUnsolvable }

// StructuralError describes a failed operator precondition.
type StructuralError struct {
	Op     string
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural inconsistency in %s: %s", e.Op, e.Detail)
}

func (e *StructuralError) Unwrap() error { return ErrStructural }

func structural(op, format string, args ...any) error {
	return &StructuralError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
