// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultSinkhornTol  = 1e-10
	defaultSinkhornIter = 1000
	defaultZeroEps      = 1e-12

	// faceRcond separates the null space of the face normal equations.
	faceRcond = 1e-10
)

// BirkhoffOption configures a Birkhoff parameterization.
type BirkhoffOption func(*Birkhoff)

// WithSinkhornTolerance sets the largest accepted deviation of a row or column sum from one.
func WithSinkhornTolerance(tol float64) BirkhoffOption {
	return func(b *Birkhoff) { b.tol = tol }
}

// WithSinkhornIterations caps the number of Sinkhorn sweeps per retraction.
func WithSinkhornIterations(n int) BirkhoffOption {
	return func(b *Birkhoff) { b.maxIter = n }
}

// WithZeroThreshold sets the magnitude below which entries are treated as exactly zero.
func WithZeroThreshold(eps float64) BirkhoffOption {
	return func(b *Birkhoff) { b.zeroEps = eps }
}

// Birkhoff parameterizes the Birkhoff polytope of n × n doubly-stochastic matrices:
//
//	𝔻ₙ = { 𝐗 ∈ ℝⁿˣⁿ : 𝐗 ≥ 0, 𝐗𝟏 = 𝟏, 𝐗ᵀ𝟏 = 𝟏 }
//
// Points are retracted by clamping to the nonnegative orthant followed by
// Sinkhorn–Knopp scaling.
type Birkhoff struct {
	n       int
	tol     float64
	maxIter int
	zeroEps float64
}

// NewBirkhoff creates the parameterization of n × n doubly-stochastic matrices.
func NewBirkhoff(n int, opts ...BirkhoffOption) (*Birkhoff, error) {
	b := &Birkhoff{
		n:       n,
		tol:     defaultSinkhornTol,
		maxIter: defaultSinkhornIter,
		zeroEps: defaultZeroEps,
	}
	for _, opt := range opts {
		opt(b)
	}
	switch {
	case n <= 0:
		return nil, errors.New("birkhoff dimension must greater than 0")
	case b.tol <= 0 || math.IsNaN(b.tol):
		return nil, errors.New("sinkhorn tolerance must greater than 0")
	case b.maxIter <= 0:
		return nil, errors.New("sinkhorn iterations must greater than 0")
	case b.zeroEps < 0:
		return nil, errors.New("zero threshold must not less than 0")
	}
	return b, nil
}

func (b *Birkhoff) sealed() {}

// Kind returns KindBirkhoff.
func (b *Birkhoff) Kind() Kind { return KindBirkhoff }

// Dims returns (n, n).
func (b *Birkhoff) Dims() (r, c int) { return b.n, b.n }

// AmbientDimension returns n².
func (b *Birkhoff) AmbientDimension() int { return b.n * b.n }

// Retract computes 𝐘 = 𝐗 + Δ, clamps 𝐘 to the nonnegative orthant and rescales it
// with Sinkhorn–Knopp until it is doubly-stochastic.
// It fails with ErrRetractionDivergence when the scaling does not converge.
func (b *Birkhoff) Retract(x mat.Matrix, delta []float64) (*mat.Dense, error) {
	if err := checkDims("point", x, b.n, b.n); err != nil {
		return nil, err
	}
	if err := checkLen("step", delta, b.n*b.n); err != nil {
		return nil, err
	}
	y := ambientSum(x, delta)
	b.clamp(y)
	if _, err := sinkhorn(y, b.tol, b.maxIter); err != nil {
		return nil, err
	}
	return y, nil
}

// clamp zeroes every entry that is negative or below the zero threshold.
func (b *Birkhoff) clamp(y *mat.Dense) {
	raw := y.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j, v := range row {
			if v < b.zeroEps {
				row[j] = 0
			}
		}
	}
}

// ProjectGradient removes the components of 𝐆 spanned by the row and column
// generators 𝐮𝟏ᵀ and 𝟏𝐯ᵀ. For a strictly positive 𝐗 this is
//
//	𝐕 = 𝐆 - 𝐫𝟏ᵀ - 𝟏𝐜ᵀ + μ𝟏𝟏ᵀ
//
// where 𝐫 and 𝐜 are the row and column means of 𝐆 and μ is its grand mean.
//
// When 𝐗 has zero entries the projection is taken on the face of the polytope
// through 𝐗: zero entries stay fixed and 𝐮, 𝐯 are fitted on the support only.
// A zero entry whose multiplier 𝐆ᵢⱼ - 𝐮ᵢ - 𝐯ⱼ is negative is released, since
// -𝐕 would move it into the interior, and the fit is repeated until every
// fixed entry has a nonnegative multiplier. 𝐕 then vanishes exactly at the
// KKT points of min f over 𝔻ₙ.
//
// The result has zero row and column sums.
func (b *Birkhoff) ProjectGradient(x mat.Matrix, grad mat.Matrix) (*mat.Dense, error) {
	n := b.n
	if err := checkDims("point", x, n, n); err != nil {
		return nil, err
	}
	if err := checkDims("gradient", grad, n, n); err != nil {
		return nil, err
	}

	v := mat.DenseCopyOf(grad)
	free := b.support(x)
	if free == nil {
		centerRowsCols(v)
		return v, nil
	}

	g := mat.DenseCopyOf(grad)
	for {
		if err := fitFace(v, g, free); err != nil {
			return nil, err
		}
		released := false
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if k := i*n + j; !free[k] && v.At(i, j) < 0 {
					free[k], released = true, true
				}
			}
		}
		if !released {
			break
		}
	}

	v.Apply(func(i, j int, e float64) float64 {
		if free[i*n+j] {
			return e
		}
		return 0
	}, v)
	return v, nil
}

// support marks the entries of x above the zero threshold in row-major order.
// It returns nil when every entry is.
func (b *Birkhoff) support(x mat.Matrix) []bool {
	n := b.n
	var free []bool
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if x.At(i, j) > b.zeroEps {
				continue
			}
			if free == nil {
				free = make([]bool, n*n)
				for k := range free {
					free[k] = true
				}
			}
			free[i*n+j] = false
		}
	}
	return free
}

// fitFace stores 𝐆 - 𝐮𝟏ᵀ - 𝟏𝐯ᵀ in dst, where (𝐮, 𝐯) is the minimum norm
// solution of the normal equations that zero the row and column sums over
// the free entries:
//
//	rᵢ𝐮ᵢ + ∑ⱼ 𝐯ⱼ = ∑ⱼ 𝐆ᵢⱼ   (j free in row i)
//	∑ᵢ 𝐮ᵢ + cⱼ𝐯ⱼ = ∑ᵢ 𝐆ᵢⱼ   (i free in column j)
//
// The system is singular along 𝐮 + t𝟏, 𝐯 - t𝟏 on every connected block of
// the support, which leaves dst unchanged.
func fitFace(dst, g *mat.Dense, free []bool) error {
	n, _ := g.Dims()
	sys := mat.NewSymDense(2*n, nil)
	rhs := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !free[i*n+j] {
				continue
			}
			e := g.At(i, j)
			sys.SetSym(i, i, sys.At(i, i)+1)
			sys.SetSym(n+j, n+j, sys.At(n+j, n+j)+1)
			sys.SetSym(i, n+j, 1)
			rhs.SetVec(i, rhs.AtVec(i)+e)
			rhs.SetVec(n+j, rhs.AtVec(n+j)+e)
		}
	}

	z := mat.NewVecDense(2*n, nil)
	var svd mat.SVD
	if !svd.Factorize(sys, mat.SVDThin) {
		return errors.New("face projection: svd factorization failed")
	}
	if rank := svd.Rank(faceRcond); rank > 0 {
		svd.SolveVecTo(z, rhs, rank)
	}

	dst.Apply(func(i, j int, _ float64) float64 {
		return g.At(i, j) - z.AtVec(i) - z.AtVec(n+j)
	}, dst)
	return nil
}

// Contains reports whether x is doubly-stochastic within eps.
func (b *Birkhoff) Contains(x mat.Matrix, eps float64) bool {
	if r, c := x.Dims(); r != b.n || c != b.n {
		return false
	}
	return IsDoublyStochastic(x, eps)
}

// Random draws a doubly-stochastic matrix from uniform entries.
func (b *Birkhoff) Random(rng *rand.Rand) *mat.Dense {
	return RandBirkhoff(rng, b.n)
}

// centerRowsCols subtracts the row and column means of the square matrix v in
// place, leaving zero row and column sums.
func centerRowsCols(v *mat.Dense) {
	n, _ := v.Dims()
	rowMean := make([]float64, n)
	colMean := make([]float64, n)
	mean := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g := v.At(i, j)
			rowMean[i] += g
			colMean[j] += g
			mean += g
		}
	}
	inv := 1 / float64(n)
	for i := range rowMean {
		rowMean[i] *= inv
		colMean[i] *= inv
	}
	mean *= inv * inv

	v.Apply(func(i, j int, g float64) float64 {
		return g - rowMean[i] - colMean[j] + mean
	}, v)
}
