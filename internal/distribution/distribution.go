// Package distribution provides elementwise exponential-family belief
// arithmetic over ordered per-feature sequences. Products and ratios act on
// natural parameters only; ratios may transiently produce improper results,
// which downstream code is expected to tolerate until a final belief is
// formed.
package distribution

// Family identifies an exponential family supported by the algebra.
type Family string

const (
	FamilyGamma    Family = "gamma"
	FamilyGaussian Family = "gaussian"
)

// Distribution is a belief over one scalar parameter. Implementations are
// immutable values; every operation returns a fresh distribution.
type Distribution interface {
	Family() Family

	// Product joins two independent pieces of evidence. Uniform is the
	// identity. Fails on family mismatch.
	Product(other Distribution) (Distribution, error)

	// Ratio removes previously incorporated evidence, the inverse of
	// Product. The result may be improper; see IsProper.
	Ratio(other Distribution) (Distribution, error)

	// Uniform returns the no-information identity of the same family.
	Uniform() Distribution

	// IsUniform reports whether this is exactly the no-information
	// identity.
	IsUniform() bool

	// IsProper reports whether the distribution is normalizable.
	IsProper() bool

	// IsDegenerate reports whether the parameters would propagate
	// non-finite values through further arithmetic, for example a
	// non-positive scale paired with a nonzero location.
	IsDegenerate() bool

	// LogNormalizer is the log-partition function in natural parameters.
	// It is zero for the uniform identity and NaN for improper
	// non-uniform parameters.
	LogNormalizer() float64

	// Moments returns the mean and variance of a proper distribution.
	Moments() (mean, variance float64)

	// Params returns the two stored parameters in family order, for
	// serialization: (shape, rate) for Gamma, (mean-times-precision,
	// precision) for Gaussian.
	Params() [2]float64
}

// FromParams reconstructs a distribution from its serialized parameter
// tuple. It is the inverse of Params.
func FromParams(family Family, params [2]float64) (Distribution, error) {
	switch family {
	case FamilyGamma:
		return Gamma{Shape: params[0], Rate: params[1]}, nil
	case FamilyGaussian:
		return Gaussian{MeanPrecision: params[0], Precision: params[1]}, nil
	default:
		return nil, &ArithmeticError{Op: "from-params", Feature: -1, Reason: "unknown family " + string(family)}
	}
}
