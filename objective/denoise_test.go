// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
	"github.com/curioloop/manifold/numdiff"
)

func randVec(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}

func TestDenoiseCost(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	d := NewDenoise(a)
	require.Equal(t, 6, d.NumParameters())

	x := manifold.Flatten(a)
	g := make([]float64, 6)
	assert.Zero(t, d.Evaluate(x, g))
	assert.Equal(t, make([]float64, 6), g)

	x[0] += 2
	x[5] -= 1
	assert.InDelta(t, 2.5, d.Evaluate(x, nil), 1e-15)
	assert.InDelta(t, 2.5, d.Evaluate(x, g), 1e-15)
	assert.Equal(t, []float64{2, 0, 0, 0, 0, -1}, g)

	xm := manifold.View(2, 3, x)
	assert.InDelta(t, math.Sqrt(5), d.Distance(xm), 1e-15)
	assert.InDelta(t, 2.5, d.Cost(xm), 1e-14)
}

func TestDenoiseOwnsTarget(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	d := NewDenoise(a)
	a.Set(0, 0, 100)
	assert.Equal(t, 1.0, d.Target().At(0, 0))

	target := d.Target()
	target.Set(1, 1, -5)
	assert.Equal(t, 1.0, d.Target().At(1, 1))

	r, c := d.Dims()
	assert.Equal(t, [2]int{2, 2}, [2]int{r, c})
}

// The cost is ½‖X−A‖² so that X−A is its exact gradient.
func TestDenoiseGradientMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewPCG(41, 42))
	for _, dims := range [][2]int{{3, 3}, {5, 2}, {10, 10}} {
		n := dims[0] * dims[1]
		d := NewDenoise(mat.NewDense(dims[0], dims[1], randVec(rng, n)))
		e, err := numdiff.GradientError(d.Evaluate, randVec(rng, n))
		require.NoError(t, err)
		assert.Less(t, e, 1e-7, "dims=%v", dims)
	}
}

func TestNumeric(t *testing.T) {
	rng := rand.New(rand.NewPCG(43, 44))
	d := NewDenoise(mat.NewDense(3, 2, randVec(rng, 6)))
	num := Numeric{
		N:      d.NumParameters(),
		Cost:   func(x []float64) float64 { return d.Evaluate(x, nil) },
		Method: numdiff.Central,
	}
	require.Equal(t, 6, num.NumParameters())

	x := randVec(rng, 6)
	saved := append([]float64(nil), x...)
	want := make([]float64, 6)
	got := make([]float64, 6)
	fw := d.Evaluate(x, want)
	fg := num.Evaluate(x, got)

	assert.InDelta(t, fw, fg, 1e-15)
	assert.InDeltaSlice(t, want, got, 1e-7)
	assert.Equal(t, saved, x)
	assert.InDelta(t, fw, num.Evaluate(x, nil), 1e-15)
}

func TestFunc(t *testing.T) {
	f := Func{
		N: 2,
		Eval: func(x, g []float64) float64 {
			if g != nil {
				g[0], g[1] = 2*x[0], 2*x[1]
			}
			return x[0]*x[0] + x[1]*x[1]
		},
	}
	var fn Function = f
	g := make([]float64, 2)
	assert.Equal(t, 2, fn.NumParameters())
	assert.Equal(t, 5.0, fn.Evaluate([]float64{1, 2}, g))
	assert.Equal(t, []float64{2, 4}, g)
}
