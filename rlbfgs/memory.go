// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
)

// projectTangent replaces the ambient gradient v by its Riemannian gradient at x.
func projectTangent(spec *iterSpec, x *mat.Dense, v []float64) {
	p, err := spec.manifold.ProjectGradient(x, manifold.View(spec.r, spec.c, v))
	if err != nil {
		panic(err) // shapes are fixed by the optimizer
	}
	copy(v, rawData(p))
}

// projectDirection replaces the step v by a feasible direction at x.
// Gradients are projected so that their negation descends, so the step is
// projected through its negation.
func projectDirection(spec *iterSpec, x *mat.Dense, v []float64) {
	floats.Scale(-one, v)
	projectTangent(spec, x, v)
	floats.Scale(-one, v)
}

// twoLoop computes d = -Hg with the two-loop recursion over the stored pairs
//
//	sᵢ = xᵢ₊₁ - xᵢ,  yᵢ = 𝚐𝚛𝚊𝚍 fᵢ₊₁ - 𝚐𝚛𝚊𝚍 fᵢ,  ρᵢ = 1/(yᵢᵀsᵢ)
//
// where the initial matrix is H₀ = γI with γ = sᵀy/yᵀy of the newest pair.
// Without pairs the result is the steepest descent direction.
func twoLoop(g []float64, spec *iterSpec, ctx *iterCtx) {
	m, q := spec.m, ctx.d
	copy(q, g)

	for k := ctx.col - 1; k >= 0; k-- {
		i := (ctx.head + k) % m
		ctx.alpha[k] = ctx.rho[i] * floats.Dot(ctx.ws[i], q)
		floats.AddScaled(q, -ctx.alpha[k], ctx.wy[i])
	}

	if ctx.col > 0 {
		i := (ctx.head + ctx.col - 1) % m
		floats.Scale(one/(ctx.rho[i]*floats.Dot(ctx.wy[i], ctx.wy[i])), q)
	}

	for k := 0; k < ctx.col; k++ {
		i := (ctx.head + k) % m
		beta := ctx.rho[i] * floats.Dot(ctx.wy[i], q)
		floats.AddScaled(q, ctx.alpha[k]-beta, ctx.ws[i])
	}

	floats.Scale(-one, q)
}

// transportMemory moves the stored pairs into the tangent space at the current
// point by orthogonal projection and refreshes ρ.
// A pair losing positive curvature invalidates the whole memory.
func transportMemory(loc *iterLoc, spec *iterSpec, ctx *iterCtx) errInfo {
	for k := 0; k < ctx.col; k++ {
		i := (ctx.head + k) % spec.m
		s, y := ctx.ws[i], ctx.wy[i]
		projectDirection(spec, loc.x, s)
		projectTangent(spec, loc.x, y)
		sy := floats.Dot(s, y)
		if sy <= spec.epsilon*floats.Dot(y, y) {
			return warnRestartLoop
		}
		ctx.rho[i] = one / sy
	}
	return ok
}

// updateBFGS stores the newest correction pair. The step and the previous
// gradient are transported to the new point before forming
//
//	s = 𝒯(λd),  y = 𝚐𝚛𝚊𝚍 fₖ₊₁ - 𝒯(𝚐𝚛𝚊𝚍 fₖ)
//
// The pair is skipped when sᵀy ≤ ε yᵀy.
func (d *iterDriver) updateBFGS() {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	projectDirection(spec, loc.x, ctx.s)
	copy(ctx.y, ctx.gOld)
	projectTangent(spec, loc.x, ctx.y)
	floats.SubTo(ctx.y, loc.g, ctx.y)

	sy, yy := floats.Dot(ctx.s, ctx.y), floats.Dot(ctx.y, ctx.y)
	if sy <= spec.epsilon*yy {
		ctx.numSkip++
		if log := spec.logger; log.enable(LogTrace) {
			log.log("ys=%10.3e  yy=%10.3e  BFGS update SKIPPED\n", sy, yy)
		}
		return
	}

	var i int
	if ctx.col < spec.m {
		i = (ctx.head + ctx.col) % spec.m
		ctx.col++
	} else {
		i = ctx.head
		ctx.head = (ctx.head + 1) % spec.m
	}
	copy(ctx.ws[i], ctx.s)
	copy(ctx.wy[i], ctx.y)
	ctx.rho[i] = one / sy
}
