// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sinkhorn scales the nonnegative square matrix m in place until every row
// and column sum is within tol of one (Sinkhorn–Knopp).
//
// Each sweep normalises the rows and then the columns:
//
//	mᵢⱼ ← mᵢⱼ / ∑ₖ mᵢₖ
//	mᵢⱼ ← mᵢⱼ / ∑ₖ mₖⱼ
//
// The stopping test runs before any scaling, so a matrix that is already
// doubly-stochastic is returned untouched. It returns the number of sweeps.
func sinkhorn(m *mat.Dense, tol float64, maxIter int) (int, error) {
	n, _ := m.Dims()
	raw := m.RawMatrix()
	cols := make([]float64, n)

	for iter := 0; ; iter++ {
		if dev := sumDeviation(raw.Data, raw.Stride, n, cols); dev <= tol {
			return iter, nil
		} else if iter >= maxIter || math.IsNaN(dev) {
			return iter, fmt.Errorf("%w: sinkhorn stopped after %d sweeps with sum deviation %.3e",
				ErrRetractionDivergence, iter, dev)
		}

		for i := 0; i < n; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+n]
			s := floats.Sum(row)
			if s <= 0 {
				return iter, fmt.Errorf("%w: row %d vanished", ErrRetractionDivergence, i)
			}
			floats.Scale(1/s, row)
		}

		for j := range cols {
			cols[j] = 0
		}
		for i := 0; i < n; i++ {
			floats.Add(cols, raw.Data[i*raw.Stride:i*raw.Stride+n])
		}
		for j, s := range cols {
			if s <= 0 {
				return iter, fmt.Errorf("%w: column %d vanished", ErrRetractionDivergence, j)
			}
			cols[j] = 1 / s
		}
		for i := 0; i < n; i++ {
			floats.Mul(raw.Data[i*raw.Stride:i*raw.Stride+n], cols)
		}
	}
}

// sumDeviation returns 𝚖𝚊𝚡 |∑ - 1| over all row and column sums of the n × n
// row-major data. cols is scratch space of length n.
func sumDeviation(data []float64, stride, n int, cols []float64) float64 {
	for j := range cols {
		cols[j] = 0
	}
	dev := 0.0
	for i := 0; i < n; i++ {
		row := data[i*stride : i*stride+n]
		dev = math.Max(dev, math.Abs(floats.Sum(row)-1))
		floats.Add(cols, row)
	}
	for _, s := range cols {
		dev = math.Max(dev, math.Abs(s-1))
	}
	return dev
}
