package distribution

// Sequence is a fixed-length ordered list of per-feature beliefs. All
// operations apply independently feature by feature; there is no
// cross-feature coupling at this layer.
type Sequence []Distribution

// UniformSequence returns n uniform identities of the given family.
func UniformSequence(family Family, n int) (Sequence, error) {
	var identity Distribution
	switch family {
	case FamilyGamma:
		identity = UniformGamma()
	case FamilyGaussian:
		identity = UniformGaussian()
	default:
		return nil, &ArithmeticError{Op: "uniform", Feature: -1, Reason: "unknown family " + string(family)}
	}
	out := make(Sequence, n)
	for i := range out {
		out[i] = identity
	}
	return out, nil
}

// UniformLike returns a uniform sequence matching s in length and family.
func UniformLike(s Sequence) Sequence {
	out := make(Sequence, len(s))
	for i, d := range s {
		out[i] = d.Uniform()
	}
	return out
}

// Clone returns an independent copy of s. Element distributions are
// immutable values, so a shallow slice copy suffices.
func Clone(s Sequence) Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Product joins two sequences elementwise.
func Product(a, b Sequence) (Sequence, error) {
	if len(a) != len(b) {
		return nil, &ArithmeticError{Op: "product", Feature: -1, Reason: "length mismatch"}
	}
	out := make(Sequence, len(a))
	for i := range a {
		d, err := a[i].Product(b[i])
		if err != nil {
			return nil, &ArithmeticError{Op: "product", Feature: i, Reason: err.Error()}
		}
		out[i] = d
	}
	return out, nil
}

// Ratio divides two sequences elementwise. Improper results are allowed.
func Ratio(a, b Sequence) (Sequence, error) {
	if len(a) != len(b) {
		return nil, &ArithmeticError{Op: "ratio", Feature: -1, Reason: "length mismatch"}
	}
	out := make(Sequence, len(a))
	for i := range a {
		d, err := a[i].Ratio(b[i])
		if err != nil {
			return nil, &ArithmeticError{Op: "ratio", Feature: i, Reason: err.Error()}
		}
		out[i] = d
	}
	return out, nil
}

// Degenerate returns the first feature index holding a degenerate
// distribution, or -1 when the sequence is arithmetically safe.
func Degenerate(s Sequence) int {
	for i, d := range s {
		if d.IsDegenerate() {
			return i
		}
	}
	return -1
}

// LogNormalizer sums the per-feature log-partition values of s.
func LogNormalizer(s Sequence) float64 {
	var sum float64
	for _, d := range s {
		sum += d.LogNormalizer()
	}
	return sum
}

// ParamsOf serializes a sequence to ordered parameter tuples.
func ParamsOf(s Sequence) [][2]float64 {
	out := make([][2]float64, len(s))
	for i, d := range s {
		out[i] = d.Params()
	}
	return out
}

// SequenceFromParams reconstructs a sequence serialized by ParamsOf.
func SequenceFromParams(family Family, params [][2]float64) (Sequence, error) {
	out := make(Sequence, len(params))
	for i, p := range params {
		d, err := FromParams(family, p)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// MaxParamDelta returns the largest absolute elementwise parameter
// difference between two sequences of equal length.
func MaxParamDelta(a, b Sequence) float64 {
	var max float64
	for i := range a {
		if i >= len(b) {
			break
		}
		pa, pb := a[i].Params(), b[i].Params()
		for j := range pa {
			if d := abs(pa[j] - pb[j]); d > max {
				max = d
			}
		}
	}
	return max
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
