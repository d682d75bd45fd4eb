// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objective defines smooth cost functions over an ambient point and
// the matrix denoising objective.
package objective

import (
	"github.com/curioloop/manifold/numdiff"
)

// Function is a smooth scalar cost over the ambient space ℝⁿ.
type Function interface {
	// NumParameters returns the ambient dimension n.
	NumParameters() int
	// Evaluate returns the cost at x and, when g is non-nil, stores the ambient
	// gradient in g. Implementations must not retain x or g.
	Evaluate(x []float64, g []float64) (f float64)
}

// Func adapts a plain evaluation function to Function.
type Func struct {
	N    int
	Eval func(x []float64, g []float64) (f float64)
}

func (f Func) NumParameters() int { return f.N }

func (f Func) Evaluate(x []float64, g []float64) float64 { return f.Eval(x, g) }

// Numeric supplies the gradient of a cost-only function by finite differences.
type Numeric struct {
	N      int
	Cost   func(x []float64) float64
	Method numdiff.Method
}

func (n Numeric) NumParameters() int { return n.N }

func (n Numeric) Evaluate(x []float64, g []float64) float64 {
	if g == nil {
		return n.Cost(x)
	}
	// numdiff perturbs its argument in place
	x0 := make([]float64, len(x))
	copy(x0, x)
	if err := numdiff.Gradient(n.Cost, x0, g, n.Method); err != nil {
		panic(err)
	}
	return n.Cost(x)
}
