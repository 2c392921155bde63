package distribution

import "math"

// Gaussian is a Gaussian belief stored in natural parameters
// (mean-times-precision, precision). Products and ratios add and subtract
// them directly. The uniform identity is (0, 0).
type Gaussian struct {
	MeanPrecision float64
	Precision     float64
}

// UniformGaussian is the no-information Gaussian identity.
func UniformGaussian() Gaussian {
	return Gaussian{}
}

func (g Gaussian) Family() Family {
	return FamilyGaussian
}

func (g Gaussian) Product(other Distribution) (Distribution, error) {
	o, ok := other.(Gaussian)
	if !ok {
		return nil, &ArithmeticError{Op: "product", Feature: -1, Reason: "family mismatch: gaussian vs " + string(other.Family())}
	}
	return Gaussian{MeanPrecision: g.MeanPrecision + o.MeanPrecision, Precision: g.Precision + o.Precision}, nil
}

func (g Gaussian) Ratio(other Distribution) (Distribution, error) {
	o, ok := other.(Gaussian)
	if !ok {
		return nil, &ArithmeticError{Op: "ratio", Feature: -1, Reason: "family mismatch: gaussian vs " + string(other.Family())}
	}
	return Gaussian{MeanPrecision: g.MeanPrecision - o.MeanPrecision, Precision: g.Precision - o.Precision}, nil
}

func (g Gaussian) Uniform() Distribution {
	return UniformGaussian()
}

func (g Gaussian) IsUniform() bool {
	return g.MeanPrecision == 0 && g.Precision == 0
}

func (g Gaussian) IsProper() bool {
	return g.Precision > 0 && finite(g.MeanPrecision) && finite(g.Precision)
}

func (g Gaussian) IsDegenerate() bool {
	if !finite(g.MeanPrecision) || !finite(g.Precision) {
		return true
	}
	// Zero precision with a nonzero location has no finite mean.
	return g.Precision == 0 && g.MeanPrecision != 0
}

func (g Gaussian) LogNormalizer() float64 {
	if g.IsUniform() {
		return 0
	}
	if !g.IsProper() {
		return math.NaN()
	}
	return 0.5*math.Log(2*math.Pi) - 0.5*math.Log(g.Precision) + g.MeanPrecision*g.MeanPrecision/(2*g.Precision)
}

func (g Gaussian) Moments() (mean, variance float64) {
	if !g.IsProper() {
		return math.NaN(), math.NaN()
	}
	return g.MeanPrecision / g.Precision, 1 / g.Precision
}

func (g Gaussian) Params() [2]float64 {
	return [2]float64{g.MeanPrecision, g.Precision}
}
