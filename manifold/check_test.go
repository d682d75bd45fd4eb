// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestIsDoublyStochastic(t *testing.T) {
	cases := []struct {
		name string
		m    *mat.Dense
		eps  float64
		want bool
	}{
		{"identity", identity(3), 0, true},
		{"uniform", mat.NewDense(2, 2, []float64{0.5, 0.5, 0.5, 0.5}), 1e-15, true},
		{"within tolerance", mat.NewDense(2, 2, []float64{0.50004, 0.5, 0.5, 0.5}), 1e-4, true},
		{"row sum off", mat.NewDense(2, 2, []float64{0.6, 0.5, 0.4, 0.5}), 1e-4, false},
		{"negative entry", mat.NewDense(2, 2, []float64{1.5, -0.5, -0.5, 1.5}), 1e-4, false},
		{"not square", mat.NewDense(2, 3, []float64{0.5, 0.5, 0, 0.5, 0.5, 0}), 1e-4, false},
		{"nan", mat.NewDense(1, 1, []float64{math.NaN()}), 1e-4, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDoublyStochastic(tc.m, tc.eps))
		})
	}
}

func TestIsStiefel(t *testing.T) {
	s := 1 / math.Sqrt2
	rot := mat.NewDense(3, 2, []float64{
		s, s,
		s, -s,
		0, 0,
	})
	assert.True(t, IsStiefel(rot, 1e-12))
	assert.True(t, IsStiefel(identity(4), 0))
	assert.False(t, IsStiefel(mat.NewDense(2, 2, []float64{1, 1, 0, 1}), 1e-4))
	assert.False(t, IsStiefel(mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}), 1e-4))
	assert.True(t, math.IsInf(StiefelResidual(mat.NewDense(1, 1, []float64{math.NaN()})), 1))
}
