package inference

import (
	"context"
	"fmt"
	"math"

	"hyperprior/internal/distribution"
)

// ScalePrior is the compound-prior precision model: per feature j, rows hold
// observations x ~ N(0, 1/tau_j) with a Gamma belief over tau_j. The model
// is conjugate, so a single sweep is exact; iterations only bound the sweep
// loop so schedules behave the same as with a compiled program.
type ScalePrior struct {
	prior distribution.Sequence
}

// NewScalePrior builds a ScalePrior with an identical Gamma(shape, rate)
// analytic prior for each of n features.
func NewScalePrior(n int, shape, rate float64) (*ScalePrior, error) {
	if n <= 0 {
		return nil, fmt.Errorf("feature count must be > 0, got %d", n)
	}
	prior := make(distribution.Sequence, n)
	for i := range prior {
		prior[i] = distribution.Gamma{Shape: shape, Rate: rate}
	}
	if idx := distribution.Degenerate(prior); idx >= 0 {
		return nil, fmt.Errorf("degenerate prior at feature %d", idx)
	}
	return &ScalePrior{prior: prior}, nil
}

// Prior returns a copy of the analytic prior sequence.
func (p *ScalePrior) Prior() distribution.Sequence {
	return distribution.Clone(p.prior)
}

func (p *ScalePrior) Run(ctx context.Context, data [][]float64, constraint distribution.Sequence, iterations int) (distribution.Sequence, float64, error) {
	if err := validateRun(data, constraint, len(p.prior), iterations); err != nil {
		return nil, 0, err
	}

	var marginal distribution.Sequence
	var logEvidence float64
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		var err error
		marginal, logEvidence, err = p.sweep(data, constraint)
		if err != nil {
			return nil, 0, err
		}
	}
	return marginal, logEvidence, nil
}

func (p *ScalePrior) sweep(data [][]float64, constraint distribution.Sequence) (distribution.Sequence, float64, error) {
	n := float64(len(data))
	marginal := make(distribution.Sequence, len(p.prior))
	var logEvidence float64
	for j := range p.prior {
		var sumSq float64
		for _, row := range data {
			sumSq += row[j] * row[j]
		}
		like := distribution.Gamma{Shape: 1 + n/2, Rate: sumSq / 2}

		m, err := constraint[j].Product(like)
		if err != nil {
			return nil, 0, err
		}
		marginal[j] = m

		total, err := p.prior[j].Product(m)
		if err != nil {
			return nil, 0, err
		}
		logEvidence += total.LogNormalizer() - p.prior[j].LogNormalizer() - constraint[j].LogNormalizer()
	}
	logEvidence -= n * float64(len(p.prior)) / 2 * math.Log(2*math.Pi)

	if err := checkResult(marginal, logEvidence); err != nil {
		return nil, 0, err
	}
	return marginal, logEvidence, nil
}

func (p *ScalePrior) RunEmpty(constraint distribution.Sequence) (float64, error) {
	if len(constraint) != len(p.prior) {
		return 0, fmt.Errorf("constraint length %d, model has %d features", len(constraint), len(p.prior))
	}
	var logEvidence float64
	for j := range p.prior {
		total, err := p.prior[j].Product(constraint[j])
		if err != nil {
			return 0, err
		}
		logEvidence += total.LogNormalizer() - p.prior[j].LogNormalizer() - constraint[j].LogNormalizer()
	}
	if !isFinite(logEvidence) {
		return 0, fmt.Errorf("%w: empty-batch evidence", ErrNonFinite)
	}
	return logEvidence, nil
}

// LocationPrior is the conjugate location model: per feature j, rows hold
// observations x ~ N(mu_j, noise) with known noise variance and a Gaussian
// belief over mu_j.
type LocationPrior struct {
	prior distribution.Sequence
	noise float64
}

// NewLocationPrior builds a LocationPrior with an identical Gaussian prior
// of the given mean and variance for each of n features.
func NewLocationPrior(n int, mean, variance, noiseVariance float64) (*LocationPrior, error) {
	if n <= 0 {
		return nil, fmt.Errorf("feature count must be > 0, got %d", n)
	}
	if variance <= 0 || noiseVariance <= 0 {
		return nil, fmt.Errorf("variances must be > 0")
	}
	prior := make(distribution.Sequence, n)
	for i := range prior {
		prior[i] = distribution.Gaussian{MeanPrecision: mean / variance, Precision: 1 / variance}
	}
	return &LocationPrior{prior: prior, noise: noiseVariance}, nil
}

// Prior returns a copy of the analytic prior sequence.
func (p *LocationPrior) Prior() distribution.Sequence {
	return distribution.Clone(p.prior)
}

func (p *LocationPrior) Run(ctx context.Context, data [][]float64, constraint distribution.Sequence, iterations int) (distribution.Sequence, float64, error) {
	if err := validateRun(data, constraint, len(p.prior), iterations); err != nil {
		return nil, 0, err
	}

	var marginal distribution.Sequence
	var logEvidence float64
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		var err error
		marginal, logEvidence, err = p.sweep(data, constraint)
		if err != nil {
			return nil, 0, err
		}
	}
	return marginal, logEvidence, nil
}

func (p *LocationPrior) sweep(data [][]float64, constraint distribution.Sequence) (distribution.Sequence, float64, error) {
	n := float64(len(data))
	marginal := make(distribution.Sequence, len(p.prior))
	var logEvidence float64
	for j := range p.prior {
		var sum, sumSq float64
		for _, row := range data {
			sum += row[j]
			sumSq += row[j] * row[j]
		}
		like := distribution.Gaussian{MeanPrecision: sum / p.noise, Precision: n / p.noise}

		m, err := constraint[j].Product(like)
		if err != nil {
			return nil, 0, err
		}
		marginal[j] = m

		total, err := p.prior[j].Product(m)
		if err != nil {
			return nil, 0, err
		}
		logEvidence += total.LogNormalizer() - p.prior[j].LogNormalizer() - constraint[j].LogNormalizer()
		logEvidence += -n/2*math.Log(2*math.Pi*p.noise) - sumSq/(2*p.noise)
	}

	if err := checkResult(marginal, logEvidence); err != nil {
		return nil, 0, err
	}
	return marginal, logEvidence, nil
}

func (p *LocationPrior) RunEmpty(constraint distribution.Sequence) (float64, error) {
	if len(constraint) != len(p.prior) {
		return 0, fmt.Errorf("constraint length %d, model has %d features", len(constraint), len(p.prior))
	}
	var logEvidence float64
	for j := range p.prior {
		total, err := p.prior[j].Product(constraint[j])
		if err != nil {
			return 0, err
		}
		logEvidence += total.LogNormalizer() - p.prior[j].LogNormalizer() - constraint[j].LogNormalizer()
	}
	if !isFinite(logEvidence) {
		return 0, fmt.Errorf("%w: empty-batch evidence", ErrNonFinite)
	}
	return logEvidence, nil
}

func validateRun(data [][]float64, constraint distribution.Sequence, features, iterations int) error {
	if iterations <= 0 {
		return fmt.Errorf("iterations must be > 0, got %d", iterations)
	}
	if len(constraint) != features {
		return fmt.Errorf("constraint length %d, model has %d features", len(constraint), features)
	}
	for i, row := range data {
		if len(row) != features {
			return fmt.Errorf("row %d has %d values, model has %d features", i, len(row), features)
		}
		for j, v := range row {
			if !isFinite(v) {
				return fmt.Errorf("%w: row %d feature %d", ErrNonFinite, i, j)
			}
		}
	}
	return nil
}

func checkResult(marginal distribution.Sequence, logEvidence float64) error {
	if idx := distribution.Degenerate(marginal); idx >= 0 {
		return fmt.Errorf("%w: degenerate marginal at feature %d", ErrNonFinite, idx)
	}
	if !isFinite(logEvidence) {
		return fmt.Errorf("%w: log evidence", ErrNonFinite)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
