// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"gonum.org/v1/gonum/mat"
)

// Denoise is the matrix denoising cost
//
//	𝒇(𝐗) = ½‖ 𝐗 - 𝐀 ‖²,  𝜵𝒇(𝐗) = 𝐗 - 𝐀
//
// over the row-major storage of an r × c matrix 𝐗.
// Its minimizer over a manifold is the manifold point nearest to 𝐀 in Frobenius norm.
type Denoise struct {
	a *mat.Dense
}

// NewDenoise creates the denoising cost for the target a.
// The target is copied, later changes to a are not observed.
func NewDenoise(a mat.Matrix) *Denoise {
	return &Denoise{a: mat.DenseCopyOf(a)}
}

// Dims returns the shape of the target.
func (d *Denoise) Dims() (r, c int) { return d.a.Dims() }

// Target returns a copy of the target matrix.
func (d *Denoise) Target() *mat.Dense { return mat.DenseCopyOf(d.a) }

func (d *Denoise) NumParameters() int {
	r, c := d.a.Dims()
	return r * c
}

func (d *Denoise) Evaluate(x []float64, g []float64) float64 {
	r, c := d.a.Dims()
	a := d.a.RawMatrix()
	if len(x) != r*c || (g != nil && len(g) != r*c) {
		panic("denoise dimension mismatch")
	}

	sum := 0.0
	for i := 0; i < r; i++ {
		row := a.Data[i*a.Stride : i*a.Stride+c]
		for j, aij := range row {
			k := i*c + j
			diff := x[k] - aij
			sum += diff * diff
			if g != nil {
				g[k] = diff
			}
		}
	}
	return 0.5 * sum
}

// Cost evaluates the cost at the matrix x.
func (d *Denoise) Cost(x mat.Matrix) float64 {
	dist := d.Distance(x)
	return 0.5 * dist * dist
}

// Distance returns ‖ 𝐗 - 𝐀 ‖.
func (d *Denoise) Distance(x mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(x, d.a)
	return mat.Norm(&diff, 2)
}
