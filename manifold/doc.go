// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifold implements local parameterizations of two matrix manifolds
// for first-order optimization:
//
//   - Birkhoff: the polytope of doubly-stochastic matrices, retracted by
//     clamping and Sinkhorn–Knopp scaling.
//   - Stiefel: matrices with orthonormal columns, retracted by thin QR.
//
// A Parameterization turns an ambient step into a feasible point (Retract) and an
// ambient gradient into a feasible direction (ProjectGradient), so a solver can
// stay on the manifold without knowing its geometry.
//
// The package also provides membership checks (IsDoublyStochastic, IsStiefel),
// random points (RandBirkhoff, RandStiefel) and nearest-point projections
// (ProjectStiefel by SVD, ProjectBirkhoff by Dykstra's algorithm) that serve as
// correctness oracles for iterative solves.
package manifold
