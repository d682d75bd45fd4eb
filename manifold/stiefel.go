// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"errors"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Stiefel parameterizes the Stiefel manifold of n × k matrices with orthonormal columns:
//
//	𝕍ₖ(ℝⁿ) = { 𝐗 ∈ ℝⁿˣᵏ : 𝐗ᵀ𝐗 = 𝐈ₖ }, n ≥ k
//
// Points are retracted with the Q factor of a thin QR decomposition.
type Stiefel struct {
	n, k int
}

// NewStiefel creates the parameterization of n × k matrices with orthonormal columns.
func NewStiefel(n, k int) (*Stiefel, error) {
	switch {
	case n <= 0 || k <= 0:
		return nil, errors.New("stiefel dimensions must greater than 0")
	case n < k:
		return nil, errors.New("stiefel rows must not less than columns")
	}
	return &Stiefel{n: n, k: k}, nil
}

func (s *Stiefel) sealed() {}

// Kind returns KindStiefel.
func (s *Stiefel) Kind() Kind { return KindStiefel }

// Dims returns (n, k).
func (s *Stiefel) Dims() (r, c int) { return s.n, s.k }

// AmbientDimension returns nk.
func (s *Stiefel) AmbientDimension() int { return s.n * s.k }

// Retract computes 𝐘 = 𝐗 + Δ and returns the orthonormal factor 𝐐 of 𝐘 = 𝐐𝐑
// with 𝚍𝚒𝚊𝚐(𝐑) ≥ 0. The retraction is exact and needs no iteration.
func (s *Stiefel) Retract(x mat.Matrix, delta []float64) (*mat.Dense, error) {
	if err := checkDims("point", x, s.n, s.k); err != nil {
		return nil, err
	}
	if err := checkLen("step", delta, s.n*s.k); err != nil {
		return nil, err
	}
	return orthonormalize(ambientSum(x, delta)), nil
}

// ProjectGradient returns 𝐆 - 𝐗 𝚜𝚢𝚖(𝐗ᵀ𝐆) with 𝚜𝚢𝚖(𝐌) = ½(𝐌 + 𝐌ᵀ),
// which satisfies the tangent condition 𝐗ᵀ𝐕 + 𝐕ᵀ𝐗 = 0.
func (s *Stiefel) ProjectGradient(x mat.Matrix, grad mat.Matrix) (*mat.Dense, error) {
	if err := checkDims("point", x, s.n, s.k); err != nil {
		return nil, err
	}
	if err := checkDims("gradient", grad, s.n, s.k); err != nil {
		return nil, err
	}

	var xtg, sym, v mat.Dense
	xtg.Mul(x.T(), grad)
	sym.Add(&xtg, xtg.T())
	sym.Scale(0.5, &sym)
	v.Mul(x, &sym)
	v.Sub(grad, &v)
	return &v, nil
}

// Contains reports whether ‖ 𝐗ᵀ𝐗 - 𝐈 ‖ ≤ eps.
func (s *Stiefel) Contains(x mat.Matrix, eps float64) bool {
	if r, c := x.Dims(); r != s.n || c != s.k {
		return false
	}
	return IsStiefel(x, eps)
}

// Random draws a point from standard-normal entries orthonormalized by QR.
func (s *Stiefel) Random(rng *rand.Rand) *mat.Dense {
	return RandStiefel(rng, s.n, s.k)
}

// orthonormalize returns the thin 𝐐 factor of the n × k matrix y (n ≥ k)
// with the signs of its columns chosen so that 𝚍𝚒𝚊𝚐(𝐑) ≥ 0.
func orthonormalize(y *mat.Dense) *mat.Dense {
	n, k := y.Dims()

	var qr mat.QR
	qr.Factorize(y)

	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	thin := mat.DenseCopyOf(q.Slice(0, n, 0, k))
	for j := 0; j < k; j++ {
		if r.At(j, j) < 0 {
			for i := 0; i < n; i++ {
				thin.Set(i, j, -thin.At(i, j))
			}
		}
	}
	return thin
}
