package distribution

import "fmt"

// ArithmeticError reports a degenerate or ill-typed distribution operation.
// Feature is the zero-based feature index the failure was detected at, or -1
// when the failure is not feature-local (for example a length mismatch).
type ArithmeticError struct {
	Op      string
	Feature int
	Reason  string
}

func (e *ArithmeticError) Error() string {
	if e.Feature < 0 {
		return fmt.Sprintf("distribution %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("distribution %s: feature %d: %s", e.Op, e.Feature, e.Reason)
}
