// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the membership tolerance ε of a manifold point.
const DefaultTolerance = 1e-4

var (
	// ErrDimensionMismatch reports a matrix or vector whose shape disagrees with the manifold dimensions.
	ErrDimensionMismatch = errors.New("manifold dimension mismatch")
	// ErrRetractionDivergence reports an iterative retraction that did not converge within its iteration cap.
	ErrRetractionDivergence = errors.New("retraction divergence")
)

// Kind identifies one of the supported manifolds.
type Kind int

const (
	// KindBirkhoff is the polytope of doubly-stochastic matrices.
	KindBirkhoff Kind = iota
	// KindStiefel is the set of matrices with orthonormal columns.
	KindStiefel
)

func (k Kind) String() string {
	switch k {
	case KindBirkhoff:
		return "birkhoff"
	case KindStiefel:
		return "stiefel"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a manifold name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "birkhoff", "ds", "doubly-stochastic":
		return KindBirkhoff, nil
	case "stiefel", "orthonormal":
		return KindStiefel, nil
	}
	return 0, fmt.Errorf("unknown manifold %q", name)
}

// Parameterization maps ambient space updates and gradients onto a matrix manifold.
//
// The ambient space of an r × c manifold is ℝʳᶜ, a point being addressed by the
// row-major storage of the matrix. A solver that only moves through Retract and
// ProjectGradient never leaves the manifold.
//
// The set of implementations is closed: Birkhoff and Stiefel.
type Parameterization interface {
	// Kind returns the manifold variant.
	Kind() Kind
	// Dims returns the shape of a manifold point.
	Dims() (r, c int)
	// AmbientDimension returns the length of the flattened ambient vector.
	AmbientDimension() int
	// Retract moves the feasible point x by the ambient step delta and returns
	// a new point that satisfies the membership predicate.
	//
	// The map is a first-order retraction:
	//   - R(x, 0) = x
	//   - 𝐃R(x, ·)(0) is the identity on the tangent space at x
	Retract(x mat.Matrix, delta []float64) (*mat.Dense, error)
	// ProjectGradient projects the ambient gradient onto the tangent space at x.
	// On the boundary of a polytope the result is the Riemannian gradient of the
	// face at x, so its norm vanishes exactly at a constrained stationary point
	// and its negation is a feasible descent direction.
	ProjectGradient(x mat.Matrix, grad mat.Matrix) (*mat.Dense, error)
	// Contains reports whether x is on the manifold within eps.
	Contains(x mat.Matrix, eps float64) bool
	// Random draws a point on the manifold.
	Random(rng *rand.Rand) *mat.Dense

	sealed()
}

// New creates the parameterization of the given kind for r × c points.
// Birkhoff requires r == c.
func New(kind Kind, r, c int) (Parameterization, error) {
	switch kind {
	case KindBirkhoff:
		if r != c {
			return nil, fmt.Errorf("%w: doubly-stochastic matrices are square, got %d×%d", ErrDimensionMismatch, r, c)
		}
		return NewBirkhoff(r)
	case KindStiefel:
		return NewStiefel(r, c)
	}
	return nil, fmt.Errorf("unknown manifold kind %v", kind)
}

// checkDims validates the shape of a matrix against r × c.
func checkDims(name string, m mat.Matrix, r, c int) error {
	if mr, mc := m.Dims(); mr != r || mc != c {
		return fmt.Errorf("%w: %s is %d×%d, want %d×%d", ErrDimensionMismatch, name, mr, mc, r, c)
	}
	return nil
}

// checkLen validates the length of an ambient vector.
func checkLen(name string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrDimensionMismatch, name, len(v), n)
	}
	return nil
}

// ambientSum returns a new r × c matrix x + delta.
func ambientSum(x mat.Matrix, delta []float64) *mat.Dense {
	r, c := x.Dims()
	y := mat.DenseCopyOf(x)
	raw := y.RawMatrix()
	for i := 0; i < r; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+c]
		step := delta[i*c : (i+1)*c]
		for j := range row {
			row[j] += step[j]
		}
	}
	return y
}

// Flatten copies the row-major storage of m into a new ambient vector.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	v := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v = append(v, m.At(i, j))
		}
	}
	return v
}

// View returns an r × c matrix backed by the ambient vector v.
// Writes through the matrix are visible in v.
func View(r, c int, v []float64) *mat.Dense {
	return mat.NewDense(r, c, v)
}
