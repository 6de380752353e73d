package rotation

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible is matched by every InfeasibleModelError
	ErrInfeasible = errors.New("no rotation satisfies the constraints")
	// ErrInvalidArgument wraps every rejected request or pool
	ErrInvalidArgument = errors.New("invalid argument")
)

// InfeasibleModelError means no subset of the requested size avoids every
// teammate pair. Callers can retry with a smaller rotation.
type InfeasibleModelError struct {
	Size     int
	PoolSize int
	Encoding Encoding
	Reason   string
}

func (e *InfeasibleModelError) Error() string {
	msg := fmt.Sprintf("no rotation of %d from %d candidates avoids every teammate pair", e.Size, e.PoolSize)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InfeasibleModelError) Is(target error) bool {
	return target == ErrInfeasible
}

// NumericToleranceWarning records a decision value that was not cleanly
// 0 or 1 and had to be rounded
type NumericToleranceWarning struct {
	CandidateID string
	Value       float64
	Selected    bool
}

func (w NumericToleranceWarning) String() string {
	return fmt.Sprintf("candidate %s solved to %.6g, rounded to %t", w.CandidateID, w.Value, w.Selected)
}
