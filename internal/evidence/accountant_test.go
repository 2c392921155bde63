package evidence

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"hyperprior/internal/distribution"
	"hyperprior/internal/inference"
)

func gammaMsg(shape, rate float64) distribution.Sequence {
	return distribution.Sequence{distribution.Gamma{Shape: shape, Rate: rate}}
}

func logNormalizer(shape, rate float64) float64 {
	lg, _ := math.Lgamma(shape)
	return lg - shape*math.Log(rate)
}

func TestReplicateContributionTwoBatches(t *testing.T) {
	// For two messages the leave-one-out products are the messages
	// themselves, so the contribution is A(m0) + A(m1) - A(m0*m1).
	m0 := gammaMsg(3, 2)
	m1 := gammaMsg(2.5, 1.5)

	got, err := ReplicateContribution([]distribution.Sequence{m0, m1})
	require.NoError(t, err)

	want := logNormalizer(3, 2) + logNormalizer(2.5, 1.5) - logNormalizer(4.5, 3.5)
	require.InDelta(t, want, got, 1e-12)
}

func TestReplicateContributionNeedsTwoBatches(t *testing.T) {
	_, err := ReplicateContribution([]distribution.Sequence{gammaMsg(2, 1)})
	require.Error(t, err)
}

func TestReplicateContributionImproperLeaveOneOut(t *testing.T) {
	// Dividing the joint by the dominant message leaves an improper
	// leave-one-out product, whose log-partition is not finite.
	m0 := gammaMsg(5, 4)
	m1 := gammaMsg(1, -1)

	_, err := ReplicateContribution([]distribution.Sequence{m0, m1})
	require.ErrorIs(t, err, inference.ErrNonFinite)
}

func TestTotalCorrectedEvidenceSingleBatch(t *testing.T) {
	prog, err := inference.NewScalePrior(1, 1, 1)
	require.NoError(t, err)
	a := &Accountant{Program: prog}

	total, err := a.TotalCorrectedEvidence(context.Background(), gammaMsg(2, 1), []distribution.Sequence{gammaMsg(2, 1)}, []float64{-3.5})
	require.NoError(t, err)
	require.Equal(t, -3.5, total)
}

func TestTotalCorrectedEvidenceValidation(t *testing.T) {
	prog, err := inference.NewScalePrior(1, 1, 1)
	require.NoError(t, err)
	a := &Accountant{Program: prog}
	ctx := context.Background()

	_, err = a.TotalCorrectedEvidence(ctx, gammaMsg(2, 1), nil, nil)
	require.Error(t, err, "no trained batches")

	_, err = a.TotalCorrectedEvidence(ctx, gammaMsg(2, 1), []distribution.Sequence{gammaMsg(2, 1)}, []float64{-1, -2})
	require.Error(t, err, "ledger and message count mismatch")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.TotalCorrectedEvidence(cancelled, gammaMsg(2, 1), []distribution.Sequence{gammaMsg(2, 1)}, []float64{-1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTotalCorrectedEvidenceUsesEmptyBatchRun(t *testing.T) {
	// With all messages uniform the replicate contribution vanishes and
	// the empty-batch run against a uniform shared state is zero, so the
	// total reduces to the ledger sum.
	prog, err := inference.NewScalePrior(1, 1.5, 0.5)
	require.NoError(t, err)
	a := &Accountant{Program: prog}

	uniform, err := distribution.UniformSequence(distribution.FamilyGamma, 1)
	require.NoError(t, err)

	total, err := a.TotalCorrectedEvidence(context.Background(), uniform, []distribution.Sequence{uniform, uniform}, []float64{-1.25, -2.5})
	require.NoError(t, err)
	require.InDelta(t, -3.75, total, 1e-12)
}
