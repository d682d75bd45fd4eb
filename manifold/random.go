// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// RandBirkhoff returns a random n × n doubly-stochastic matrix obtained by
// Sinkhorn scaling of uniform entries drawn from (0, 1].
// The result satisfies IsDoublyStochastic with the default Sinkhorn tolerance.
func RandBirkhoff(rng *rand.Rand, n int) *mat.Dense {
	if n <= 0 {
		panic("birkhoff dimension must greater than 0")
	}
	data := make([]float64, n*n)
	for i := range data {
		data[i] = 1 - rng.Float64() // (0, 1]
	}
	m := mat.NewDense(n, n, data)
	if _, err := sinkhorn(m, defaultSinkhornTol, defaultSinkhornIter); err != nil {
		panic(err)
	}
	return m
}

// RandStiefel returns a random n × k matrix with orthonormal columns: the
// orthonormal factor of a matrix of standard-normal entries.
func RandStiefel(rng *rand.Rand, n, k int) *mat.Dense {
	if n <= 0 || k <= 0 || n < k {
		panic("stiefel dimensions must satisfy n ≥ k > 0")
	}
	data := make([]float64, n*k)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return orthonormalize(mat.NewDense(n, k, data))
}
