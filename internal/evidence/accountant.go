// Package evidence computes the corrected total model evidence of a batched
// session. Splitting data into B batches that share one hyperparameter
// makes the naive sum of per-batch evidence count the shared factor B times
// instead of once; the accountant removes the excess.
package evidence

import (
	"context"
	"fmt"
	"math"

	"hyperprior/internal/distribution"
	"hyperprior/internal/inference"
)

// Accountant derives the total corrected log evidence from the per-batch
// ledger, the current output messages and the shared state. Nothing is
// cached: every query recomputes the correction from the current messages.
type Accountant struct {
	Program inference.Program
}

// ReplicateContribution is the closed-form evidence contribution missing
// from the naive per-batch sum when one shared variable is replicated once
// per batch. For log-partition A over natural parameters it equals
//
//	sum_b A(prod_{c!=b} msg_c) - (B-1) * A(prod_c msg_c)
//
// which follows from the exponential-family identity for products of
// replicated factors.
func ReplicateContribution(messages []distribution.Sequence) (float64, error) {
	if len(messages) < 2 {
		return 0, fmt.Errorf("replicate contribution needs at least 2 batches, got %d", len(messages))
	}

	joint := distribution.Clone(messages[0])
	var err error
	for _, msg := range messages[1:] {
		joint, err = distribution.Product(joint, msg)
		if err != nil {
			return 0, err
		}
	}

	contribution := -float64(len(messages)-1) * distribution.LogNormalizer(joint)
	for _, msg := range messages {
		leaveOneOut, err := distribution.Ratio(joint, msg)
		if err != nil {
			return 0, err
		}
		contribution += distribution.LogNormalizer(leaveOneOut)
	}
	if math.IsNaN(contribution) || math.IsInf(contribution, 0) {
		return 0, fmt.Errorf("%w: replicate contribution", inference.ErrNonFinite)
	}
	return contribution, nil
}

// EmptyBatchEvidence isolates the standalone evidence contribution of the
// shared factor alone: one run with zero data rows and the current shared
// belief as the constraint.
func (a *Accountant) EmptyBatchEvidence(shared distribution.Sequence) (float64, error) {
	return a.Program.RunEmpty(shared)
}

// TotalCorrectedEvidence returns the corrected total log evidence. With a
// single batch the ledger value is the total and no correction applies.
func (a *Accountant) TotalCorrectedEvidence(ctx context.Context, shared distribution.Sequence, messages []distribution.Sequence, ledger []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(messages) != len(ledger) {
		return 0, fmt.Errorf("got %d output messages for %d ledger entries", len(messages), len(ledger))
	}
	if len(ledger) == 0 {
		return 0, fmt.Errorf("no trained batches")
	}

	var total float64
	for _, e := range ledger {
		total += e
	}
	if len(ledger) == 1 {
		return total, nil
	}

	replicate, err := ReplicateContribution(messages)
	if err != nil {
		return 0, err
	}
	empty, err := a.EmptyBatchEvidence(shared)
	if err != nil {
		return 0, err
	}
	return total + replicate - float64(len(ledger)-1)*empty, nil
}
