package distribution

import "math"

// Gamma is a Gamma belief in shape/rate parameterization. The natural
// parameters are (Shape-1, Rate), so products add shape-1 and rate while
// ratios subtract them. The uniform identity is Shape=1, Rate=0.
type Gamma struct {
	Shape float64
	Rate  float64
}

// UniformGamma is the no-information Gamma identity.
func UniformGamma() Gamma {
	return Gamma{Shape: 1, Rate: 0}
}

func (g Gamma) Family() Family {
	return FamilyGamma
}

func (g Gamma) Product(other Distribution) (Distribution, error) {
	o, ok := other.(Gamma)
	if !ok {
		return nil, &ArithmeticError{Op: "product", Feature: -1, Reason: "family mismatch: gamma vs " + string(other.Family())}
	}
	return Gamma{Shape: g.Shape + o.Shape - 1, Rate: g.Rate + o.Rate}, nil
}

func (g Gamma) Ratio(other Distribution) (Distribution, error) {
	o, ok := other.(Gamma)
	if !ok {
		return nil, &ArithmeticError{Op: "ratio", Feature: -1, Reason: "family mismatch: gamma vs " + string(other.Family())}
	}
	return Gamma{Shape: g.Shape - o.Shape + 1, Rate: g.Rate - o.Rate}, nil
}

func (g Gamma) Uniform() Distribution {
	return UniformGamma()
}

func (g Gamma) IsUniform() bool {
	return g.Shape == 1 && g.Rate == 0
}

func (g Gamma) IsProper() bool {
	return g.Shape > 0 && g.Rate > 0 && finite(g.Shape) && finite(g.Rate)
}

func (g Gamma) IsDegenerate() bool {
	if !finite(g.Shape) || !finite(g.Rate) {
		return true
	}
	// Zero rate with a non-identity shape has infinite moments.
	return g.Rate == 0 && g.Shape != 1
}

func (g Gamma) LogNormalizer() float64 {
	if g.IsUniform() {
		return 0
	}
	if !g.IsProper() {
		return math.NaN()
	}
	lg, _ := math.Lgamma(g.Shape)
	return lg - g.Shape*math.Log(g.Rate)
}

func (g Gamma) Moments() (mean, variance float64) {
	if !g.IsProper() {
		return math.NaN(), math.NaN()
	}
	return g.Shape / g.Rate, g.Shape / (g.Rate * g.Rate)
}

func (g Gamma) Params() [2]float64 {
	return [2]float64{g.Shape, g.Rate}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
