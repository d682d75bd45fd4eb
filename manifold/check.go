// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// IsDoublyStochastic reports whether x is square, nonnegative and every row
// and column sum deviates from one by at most eps.
func IsDoublyStochastic(x mat.Matrix, eps float64) bool {
	r, c := x.Dims()
	if r != c {
		return false
	}
	cols := make([]float64, c)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			v := x.At(i, j)
			if v < 0 || math.IsNaN(v) {
				return false
			}
			sum += v
			cols[j] += v
		}
		if math.Abs(sum-1) > eps {
			return false
		}
	}
	for _, sum := range cols {
		if math.Abs(sum-1) > eps {
			return false
		}
	}
	return true
}

// IsStiefel reports whether x has orthonormal columns, i.e. ‖ 𝐗ᵀ𝐗 - 𝐈 ‖ ≤ eps
// in Frobenius norm.
func IsStiefel(x mat.Matrix, eps float64) bool {
	r, c := x.Dims()
	if r < c {
		return false
	}
	return StiefelResidual(x) <= eps
}

// StiefelResidual returns ‖ 𝐗ᵀ𝐗 - 𝐈 ‖ in Frobenius norm.
func StiefelResidual(x mat.Matrix) float64 {
	_, c := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 0; i < c; i++ {
		xtx.Set(i, i, xtx.At(i, i)-1)
	}
	res := mat.Norm(&xtx, 2)
	if math.IsNaN(res) {
		return math.Inf(1)
	}
	return res
}
