// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ProjectStiefel returns the nearest point to a on the Stiefel manifold in
// Frobenius norm. Given the thin singular value decomposition 𝐀 = 𝐔𝚺𝐕ᵀ the
// projection is 𝐔𝐕ᵀ (the orthogonal polar factor of 𝐀).
func ProjectStiefel(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	if r < c {
		return nil, fmt.Errorf("%w: stiefel projection needs rows ≥ columns, got %d×%d", ErrDimensionMismatch, r, c)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("singular value decomposition failed")
	}

	var u, v, p mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	p.Mul(&u, v.T())
	return &p, nil
}

// ProjectBirkhoff returns the nearest doubly-stochastic matrix to the square
// matrix a in Frobenius norm.
//
// The polytope is the intersection of the affine set 𝔸 = { 𝐗 : 𝐗𝟏 = 𝟏, 𝐗ᵀ𝟏 = 𝟏 }
// and the orthant 𝕆 = { 𝐗 : 𝐗 ≥ 0 }. Dykstra's algorithm alternates the two
// closed-form projections while carrying correction terms 𝐏 and 𝐐:
//
//	𝐘ₖ   = Π𝔸(𝐗ₖ + 𝐏ₖ),  𝐏ₖ₊₁ = 𝐗ₖ + 𝐏ₖ - 𝐘ₖ
//	𝐗ₖ₊₁ = Π𝕆(𝐘ₖ + 𝐐ₖ),  𝐐ₖ₊₁ = 𝐘ₖ + 𝐐ₖ - 𝐗ₖ₊₁
//
// The iteration stops once the iterate moves less than tol and its row and
// column sums are within tol of one. The returned matrix is always
// nonnegative; when maxIter sweeps are not enough the last iterate is returned
// together with an error.
func ProjectBirkhoff(a mat.Matrix, tol float64, maxIter int) (*mat.Dense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, fmt.Errorf("%w: birkhoff projection needs a square matrix, got %d×%d", ErrDimensionMismatch, n, c)
	}
	if tol <= 0 || maxIter <= 0 {
		return nil, errors.New("dykstra tolerance and iterations must greater than 0")
	}

	x := mat.DenseCopyOf(a)
	p := mat.NewDense(n, n, nil)
	q := mat.NewDense(n, n, nil)
	var y, prev mat.Dense
	cols := make([]float64, n)
	inv := 1 / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		prev.CloneFrom(x)

		// 𝐘 = Π𝔸(𝐗 + 𝐏) = 𝟏𝟏ᵀ/n + centered(𝐗 + 𝐏 - 𝟏𝟏ᵀ/n)
		y.Add(x, p)
		centerRowsCols(&y)
		y.Apply(func(_, _ int, v float64) float64 { return v + inv }, &y)
		p.Add(x, p)
		p.Sub(p, &y)

		// 𝐗 = Π𝕆(𝐘 + 𝐐)
		x.Add(&y, q)
		q.Add(&y, q)
		x.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, x)
		q.Sub(q, x)

		prev.Sub(&prev, x)
		raw := x.RawMatrix()
		if mat.Norm(&prev, 2) <= tol && sumDeviation(raw.Data, raw.Stride, n, cols) <= tol {
			return x, nil
		}
	}
	return x, fmt.Errorf("dykstra projection did not converge in %d iterations", maxIter)
}
