// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	searchNoBnd = 1.0e+10
	searchAlpha = 1.0e-4
	searchBeta  = 0.9
	searchEps   = 0.1
)

const (
	searchBackExit = 20
	searchBackSlow = 10
)

const (
	retractExit   = 3
	stallExit     = 2
	retractShrink = 0.1
)

// initLineSearch prepares a line search along the retraction curve
//
//	φ(λ) = f(R(xₖ, λdₖ))
//
// The λₖ starts with the unit steplength (1/‖d‖ on the first iteration) and
// the accepted step ensures fₖ₊₁ = φ(λₖ) satisfies:
//   - sufficient decrease condition: fₖ₊₁ ≤ fₖ + ɑλₖ⟨𝚐𝚛𝚊𝚍 fₖ, dₖ⟩ (ɑ = 10⁻⁴)
//   - curvature condition: |⟨𝚐𝚛𝚊𝚍 fₖ₊₁, dₖ⟩| ≤ β |⟨𝚐𝚛𝚊𝚍 fₖ, dₖ⟩| (β = 0.9)
func initLineSearch(loc *iterLoc, spec *iterSpec, ctx *iterCtx) {

	ctx.dNorm = floats.Norm(ctx.d, 2) // ‖ d ‖₂
	ctx.searchWork.tol = spec.search
	tol := &ctx.searchWork.tol

	if ctx.iter == 0 {
		ctx.stp = math.Min(one/ctx.dNorm, tol.Upper)
	} else {
		ctx.stp = one
	}
	ctx.stp = math.Min(math.Max(ctx.stp, tol.Lower), tol.Upper)

	ctx.numEval = 0
	ctx.task = SearchStart
	ctx.last.x = nil
	ctx.best.x, ctx.best.f = nil, loc.f
	ctx.bestStp = zero
}

// restartLineSearch restarts the search after a failed retraction with a
// smaller step that also bounds every later trial.
func restartLineSearch(loc *iterLoc, ctx *iterCtx) {
	tol, sc := &ctx.searchWork.tol, &ctx.searchWork.ctx
	stp := ctx.stp * retractShrink
	tol.Upper = stp
	tol.Lower = math.Min(tol.Lower, stp)
	ctx.stp, ctx.task = ScalarSearch(loc.f, ctx.gd, stp, SearchStart, tol, sc)
}

// retractStep returns the trial point R(xₖ, λdₖ).
func retractStep(loc *iterLoc, spec *iterSpec, ctx *iterCtx) (*mat.Dense, error) {
	step := ctx.y // free until the step is accepted
	copy(step, ctx.d)
	floats.Scale(ctx.stp, step)
	return spec.manifold.Retract(loc.x, step)
}
