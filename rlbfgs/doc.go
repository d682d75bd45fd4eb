// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rlbfgs minimizes a smooth cost over a matrix manifold with a
// Riemannian limited memory BFGS method.
//
// Every iterate is a manifold point. The ambient gradient returned by the cost
// function is projected onto the tangent space, the L-BFGS two-loop recursion
// builds a tangent direction dₖ from correction pairs transported by projection,
// and a Moré–Thuente line search looks for a step along the retraction curve
//
//	λ ↦ R(xₖ, λdₖ)
//
// satisfying the strong Wolfe conditions. A step is only accepted when the cost
// does not increase, so the sequence of accepted costs is non-increasing.
//
// The solve stops with
//   - Converged when ‖ 𝚐𝚛𝚊𝚍 f ‖ ≤ 𝚐𝚝𝚘𝚕 or |fₖ - fₖ₊₁| ≤ 𝚏𝚝𝚘𝚕 × |fₖ|, or when a limit
//     on iterations, evaluations or time is reached (reported as ErrNonConvergence)
//   - Diverged when the line search or the retraction cannot make progress
//   - Failed when the problem, the initial point or a cost evaluation is malformed
//
// An Optimizer is immutable and may be shared, while each goroutine owns its Workspace:
//
//	p := rlbfgs.Problem{Object: f, Manifold: m, M: 10, Stop: rlbfgs.Termination{MaxIterations: 200}}
//	o, err := p.New(nil)
//	res, err := o.Fit(x0, o.Init())
//
// Solve and SolveAll wrap the same steps behind Options.
package rlbfgs
