// Package inference defines the boundary to the compiled message-passing
// program the training engine drives, plus reference conjugate programs used
// by the engine's own tests and tooling.
package inference

import (
	"context"
	"errors"

	"hyperprior/internal/distribution"
)

// ErrNonFinite marks a run whose inputs or outputs contain non-finite
// values. The engine treats it as divergence and commits nothing.
var ErrNonFinite = errors.New("non-finite value in inference run")

// Program runs iterative message passing for a fixed compiled model. Run is
// a pure function of its inputs: given data rows and a constraint over the
// model's parameters, it returns the marginal belief divided by the analytic
// prior, together with the local log evidence of the run. RunEmpty isolates
// the standalone evidence contribution of the constrained parameters alone,
// with zero data rows.
//
// Run checks ctx only at iteration boundaries; a cancelled run is reported
// as an error and is indistinguishable from a failure to the caller.
type Program interface {
	Run(ctx context.Context, data [][]float64, constraint distribution.Sequence, iterations int) (marginal distribution.Sequence, logEvidence float64, err error)
	RunEmpty(constraint distribution.Sequence) (logEvidence float64, err error)
}
