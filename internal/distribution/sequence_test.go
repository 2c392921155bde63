package distribution

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestProductUniformIsIdentity(t *testing.T) {
	cases := []Distribution{
		Gamma{Shape: 2.5, Rate: 1.25},
		Gaussian{MeanPrecision: -0.75, Precision: 3},
	}
	for _, d := range cases {
		out, err := d.Product(d.Uniform())
		require.NoError(t, err)
		require.Equal(t, d, out)

		out, err = d.Ratio(d.Uniform())
		require.NoError(t, err)
		require.Equal(t, d, out)
	}
}

func TestRatioProductInverseLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		a := Gamma{Shape: 0.5 + 4*rng.Float64(), Rate: 0.1 + 3*rng.Float64()}
		b := Gamma{Shape: 0.5 + 4*rng.Float64(), Rate: 0.1 + 3*rng.Float64()}

		ab, err := a.Product(b)
		require.NoError(t, err)
		back, err := ab.Ratio(b)
		require.NoError(t, err)
		require.InDelta(t, a.Shape, back.Params()[0], tolerance)
		require.InDelta(t, a.Rate, back.Params()[1], tolerance)

		ga := Gaussian{MeanPrecision: rng.NormFloat64(), Precision: 0.1 + 2*rng.Float64()}
		gb := Gaussian{MeanPrecision: rng.NormFloat64(), Precision: 0.1 + 2*rng.Float64()}

		gab, err := ga.Product(gb)
		require.NoError(t, err)
		gBack, err := gab.Ratio(gb)
		require.NoError(t, err)
		require.InDelta(t, ga.MeanPrecision, gBack.Params()[0], tolerance)
		require.InDelta(t, ga.Precision, gBack.Params()[1], tolerance)
	}
}

func TestRatioMayBeImproper(t *testing.T) {
	a := Gamma{Shape: 1.5, Rate: 0.5}
	b := Gamma{Shape: 3, Rate: 2}

	out, err := a.Ratio(b)
	require.NoError(t, err)
	g := out.(Gamma)
	require.False(t, g.IsProper())
	require.Less(t, g.Rate, 0.0)
	require.False(t, g.IsDegenerate(), "finite improper intermediates are tolerated")
}

func TestProductFamilyMismatch(t *testing.T) {
	_, err := Gamma{Shape: 2, Rate: 1}.Product(Gaussian{Precision: 1})
	require.Error(t, err)

	_, err = Product(
		Sequence{Gamma{Shape: 2, Rate: 1}},
		Sequence{Gaussian{Precision: 1}},
	)
	var arithErr *ArithmeticError
	require.ErrorAs(t, err, &arithErr)
	require.Equal(t, 0, arithErr.Feature)
}

func TestSequenceLengthMismatch(t *testing.T) {
	a, err := UniformSequence(FamilyGamma, 3)
	require.NoError(t, err)
	b, err := UniformSequence(FamilyGamma, 2)
	require.NoError(t, err)

	_, err = Product(a, b)
	var arithErr *ArithmeticError
	require.ErrorAs(t, err, &arithErr)
	require.Equal(t, -1, arithErr.Feature)
}

func TestDegenerateDetection(t *testing.T) {
	cases := []struct {
		name string
		d    Distribution
		want bool
	}{
		{"uniform gamma", UniformGamma(), false},
		{"proper gamma", Gamma{Shape: 2, Rate: 1}, false},
		{"nan shape", Gamma{Shape: math.NaN(), Rate: 1}, true},
		{"inf rate", Gamma{Shape: 2, Rate: math.Inf(1)}, true},
		{"zero rate nonidentity shape", Gamma{Shape: 2, Rate: 0}, true},
		{"uniform gaussian", UniformGaussian(), false},
		{"zero precision nonzero location", Gaussian{MeanPrecision: 1, Precision: 0}, true},
		{"negative precision", Gaussian{MeanPrecision: 1, Precision: -2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.d.IsDegenerate())
		})
	}

	seq := Sequence{Gamma{Shape: 2, Rate: 1}, Gamma{Shape: 2, Rate: 0}}
	require.Equal(t, 1, Degenerate(seq))
	require.Equal(t, -1, Degenerate(seq[:1]))
}

func TestLogNormalizer(t *testing.T) {
	// Gamma(3, 2): lgamma(3) - 3*log(2).
	g := Gamma{Shape: 3, Rate: 2}
	require.InDelta(t, math.Log(2)-3*math.Log(2), g.LogNormalizer(), tolerance)

	require.Zero(t, UniformGamma().LogNormalizer())
	require.Zero(t, UniformGaussian().LogNormalizer())
	require.True(t, math.IsNaN(Gamma{Shape: -1, Rate: 2}.LogNormalizer()))

	n := Gaussian{MeanPrecision: 1.5, Precision: 3}
	want := 0.5*math.Log(2*math.Pi) - 0.5*math.Log(3) + 1.5*1.5/6
	require.InDelta(t, want, n.LogNormalizer(), tolerance)
}

func TestMoments(t *testing.T) {
	g := Gamma{Shape: 4, Rate: 2}
	mean, variance := g.Moments()
	require.InDelta(t, 2.0, mean, tolerance)
	require.InDelta(t, 1.0, variance, tolerance)

	n := Gaussian{MeanPrecision: 6, Precision: 3}
	mean, variance = n.Moments()
	require.InDelta(t, 2.0, mean, tolerance)
	require.InDelta(t, 1.0/3.0, variance, tolerance)
}

func TestParamsRoundTrip(t *testing.T) {
	seq := Sequence{
		Gamma{Shape: 1.5, Rate: 0.25},
		Gamma{Shape: 3, Rate: 2},
	}
	back, err := SequenceFromParams(FamilyGamma, ParamsOf(seq))
	require.NoError(t, err)
	require.Equal(t, seq, back)

	_, err = FromParams(Family("dirichlet"), [2]float64{1, 1})
	require.Error(t, err)
}

func TestMaxParamDelta(t *testing.T) {
	a := Sequence{Gamma{Shape: 1, Rate: 1}, Gamma{Shape: 2, Rate: 2}}
	b := Sequence{Gamma{Shape: 1, Rate: 1.5}, Gamma{Shape: 4, Rate: 2}}
	require.InDelta(t, 2.0, MaxParamDelta(a, b), tolerance)
	require.Zero(t, MaxParamDelta(a, a))
}
