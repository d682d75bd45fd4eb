// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randDense(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = scale * rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestRandBirkhoff(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{1, 2, 4, 10, 25} {
		for trial := 0; trial < 5; trial++ {
			x := RandBirkhoff(rng, n)
			require.True(t, IsDoublyStochastic(x, DefaultTolerance), "n=%d trial=%d", n, trial)
			require.True(t, IsDoublyStochastic(x, 1e-9), "n=%d trial=%d", n, trial)
			assert.GreaterOrEqual(t, mat.Min(x), 0.0)
		}
	}
}

func TestBirkhoffRetractZeroStep(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	b, err := NewBirkhoff(6)
	require.NoError(t, err)

	x := b.Random(rng)
	y, err := b.Retract(x, make([]float64, b.AmbientDimension()))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(x, y, 1e-12))

	// the result is an independent value
	y.Set(0, 0, 42)
	assert.NotEqual(t, 42.0, x.At(0, 0))
}

func TestBirkhoffRetractFeasible(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	b, err := NewBirkhoff(5)
	require.NoError(t, err)

	// steps bounded by half the smallest entry keep the full support, on which
	// Sinkhorn always converges
	for trial := 0; trial < 20; trial++ {
		x := b.Random(rng)
		bound := mat.Min(x)
		delta := make([]float64, b.AmbientDimension())
		for i := range delta {
			delta[i] = bound * (rng.Float64() - 0.5)
		}
		y, err := b.Retract(x, delta)
		require.NoError(t, err)
		assert.True(t, b.Contains(y, DefaultTolerance))
		assert.True(t, IsDoublyStochastic(y, 1e-9))
	}

	// large steps clamp entries and may leave a zero pattern without a
	// doubly-stochastic scaling
	for trial := 0; trial < 50; trial++ {
		x := b.Random(rng)
		y, err := b.Retract(x, Flatten(randDense(rng, 5, 5, 0.3)))
		if err != nil {
			require.ErrorIs(t, err, ErrRetractionDivergence)
			continue
		}
		assert.True(t, IsDoublyStochastic(y, 1e-9))
		assert.GreaterOrEqual(t, mat.Min(y), 0.0)
	}
}

func TestBirkhoffRetractFirstOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	b, err := NewBirkhoff(4)
	require.NoError(t, err)

	x := b.Random(rng)
	v, err := b.ProjectGradient(x, randDense(rng, 4, 4, 1))
	require.NoError(t, err)

	const step = 1e-6
	delta := Flatten(v)
	for i := range delta {
		delta[i] *= step
	}
	y, err := b.Retract(x, delta)
	require.NoError(t, err)

	var diff mat.Dense
	diff.Sub(y, x)
	diff.Scale(1/step, &diff)
	diff.Sub(&diff, v)
	assert.Less(t, mat.Norm(&diff, 2), 1e-4)
}

func TestBirkhoffProjectGradient(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	b, err := NewBirkhoff(7)
	require.NoError(t, err)

	x := b.Random(rng)
	g := randDense(rng, 7, 7, 3)
	v, err := b.ProjectGradient(x, g)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		assert.InDelta(t, 0, mat.Sum(v.RowView(i)), 1e-12)
		assert.InDelta(t, 0, mat.Sum(v.ColView(i)), 1e-12)
	}

	// projection is idempotent and leaves its argument untouched
	w, err := b.ProjectGradient(x, v)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(v, w, 1e-12))
	assert.False(t, mat.EqualApprox(g, v, 1e-3))

	// the removed part is orthogonal to the tangent space
	var normal mat.Dense
	normal.Sub(g, v)
	assert.InDelta(t, 0, mat.Sum(mulElem(&normal, v)), 1e-10)
}

func TestBirkhoffProjectGradientFace(t *testing.T) {
	b, err := NewBirkhoff(3)
	require.NoError(t, err)
	id := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})

	// 𝐈 is the projection of 2𝐈, so 𝐆 = 𝐈 - 2𝐈 leaves no feasible descent
	var g mat.Dense
	g.Scale(-1, id)
	v, err := b.ProjectGradient(id, &g)
	require.NoError(t, err)
	assert.Less(t, mat.Norm(v, 2), 1e-12)

	// towards 𝟏𝟏ᵀ/3 every zero entry is released and the projection is the
	// plain centering of 𝐆 = 𝐈 - 𝟏𝟏ᵀ/3, which already has zero sums
	g.Apply(func(i, j int, _ float64) float64 { return id.At(i, j) - 1.0/3 }, &g)
	v, err = b.ProjectGradient(id, &g)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(v, &g, 1e-12), "V = %v", mat.Formatted(v))
}

func TestBirkhoffProjectGradientBoundary(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	const n = 6
	b, err := NewBirkhoff(n)
	require.NoError(t, err)

	// a convex combination of two permutations has many zeros
	x := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		x.Set(i, i, 0.6)
		x.Set(i, (i+1)%n, 0.4)
	}
	require.True(t, b.Contains(x, 1e-12))

	for trial := 0; trial < 10; trial++ {
		g := randDense(rng, n, n, 1)
		v, err := b.ProjectGradient(x, g)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			assert.InDelta(t, 0, mat.Sum(v.RowView(i)), 1e-10)
			assert.InDelta(t, 0, mat.Sum(v.ColView(i)), 1e-10)
		}
		// 𝐕 is an orthogonal projection of 𝐆, so -𝐕 is a descent direction
		assert.InDelta(t, mat.Sum(mulElem(v, v)), mat.Sum(mulElem(g, v)), 1e-10)
		assert.Greater(t, mat.Norm(v, 2), 0.0)
	}
}

func TestFitFaceFullSupport(t *testing.T) {
	rng := rand.New(rand.NewPCG(15, 16))
	const n = 5
	g := randDense(rng, n, n, 2)
	free := make([]bool, n*n)
	for i := range free {
		free[i] = true
	}

	got := mat.NewDense(n, n, nil)
	require.NoError(t, fitFace(got, g, free))
	want := mat.DenseCopyOf(g)
	centerRowsCols(want)
	assert.True(t, mat.EqualApprox(got, want, 1e-10))
}

func TestBirkhoffRetractDivergence(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	b, err := NewBirkhoff(5)
	require.NoError(t, err)
	x := b.Random(rng)

	// every entry is clamped to zero
	delta := Flatten(x)
	for i := range delta {
		delta[i] *= -2
	}
	_, err = b.Retract(x, delta)
	assert.ErrorIs(t, err, ErrRetractionDivergence)

	capped, err := NewBirkhoff(5, WithSinkhornIterations(1))
	require.NoError(t, err)
	_, err = capped.Retract(x, Flatten(randDense(rng, 5, 5, 0.5)))
	assert.ErrorIs(t, err, ErrRetractionDivergence)
}

func TestBirkhoffDimensionMismatch(t *testing.T) {
	b, err := NewBirkhoff(3)
	require.NoError(t, err)

	_, err = b.Retract(mat.NewDense(2, 2, nil), make([]float64, 4))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = b.Retract(mat.NewDense(3, 3, nil), make([]float64, 8))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = b.ProjectGradient(mat.NewDense(3, 3, nil), mat.NewDense(3, 2, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	assert.False(t, b.Contains(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), DefaultTolerance))

	_, err = New(KindBirkhoff, 3, 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewBirkhoffOptions(t *testing.T) {
	_, err := NewBirkhoff(0)
	assert.Error(t, err)
	_, err = NewBirkhoff(3, WithSinkhornTolerance(0))
	assert.Error(t, err)
	_, err = NewBirkhoff(3, WithSinkhornIterations(-1))
	assert.Error(t, err)
	_, err = NewBirkhoff(3, WithZeroThreshold(-1))
	assert.Error(t, err)

	b, err := NewBirkhoff(3, WithSinkhornTolerance(1e-6), WithZeroThreshold(0))
	require.NoError(t, err)
	assert.Equal(t, KindBirkhoff, b.Kind())
	r, c := b.Dims()
	assert.Equal(t, [2]int{3, 3}, [2]int{r, c})
	assert.Equal(t, 9, b.AmbientDimension())
}

func TestSinkhornKeepsFeasiblePoint(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		0.2, 0.3, 0.5,
		0.5, 0.2, 0.3,
		0.3, 0.5, 0.2,
	})
	want := mat.DenseCopyOf(m)
	sweeps, err := sinkhorn(m, 1e-12, 10)
	require.NoError(t, err)
	assert.Zero(t, sweeps)
	assert.True(t, mat.Equal(want, m))

	d := mat.NewDense(2, 2, []float64{2, 0, 0, 5})
	_, err = sinkhorn(d, 1e-12, 10)
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), d))

	nan := mat.NewDense(2, 2, []float64{math.NaN(), 1, 1, 1})
	_, err = sinkhorn(nan, 1e-12, 10)
	assert.ErrorIs(t, err, ErrRetractionDivergence)
}

func mulElem(a, b mat.Matrix) *mat.Dense {
	var m mat.Dense
	m.MulElem(a, b)
	return &m
}
