// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"math"
)

const (
	p5         = 0.5
	p66        = 0.66
	xTrapLower = 1.1
	xTrapUpper = 4.0
)

const (
	stageArmijo = 1
	stageWolfe  = 2
)

type SearchTask int

const (
	SearchStart SearchTask = 0
	SearchConv  SearchTask = 1 << (4 + iota)
	SearchFG
	SearchError
	SearchWarn
)

const (
	SearchErrOverLower = SearchError | (1 + iota)
	SearchErrOverUpper
	SearchErrNegInitG
	SearchErrNegAlpha
	SearchErrNegBeta
	SearchErrNegEps
	SearchErrLower
	SearchErrUpper
	SearchWarnRoundErr = SearchWarn | (1 + iota)
	SearchWarnReachEps
	SearchWarnReachMax
	SearchWarnReachMin
)

// SearchTol configures the Wolfe line search.
type SearchTol struct {
	// Alpha is a non-negative tolerance for the sufficient decrease condition.
	Alpha float64
	// Beta is a non-negative tolerance for the curvature condition.
	Beta float64
	// Eps is a non-negative relative tolerance for an acceptable step.
	// The search exits with a warning if the relative width of the bracketing interval is less than Eps.
	Eps float64
	// Lower is a non-negative lower bounds for the step.
	Lower float64
	// Upper is a non-negative upper bounds for the step.
	Upper float64
}

// SearchCtx keeps the state of ScalarSearch between calls.
type SearchCtx struct {
	bracket    bool
	stage      int
	g0, gx, gy float64
	f0, fx, fy float64
	stx, sty   float64
	width      [2]float64
	bound      [2]float64
}

// ScalarSearch finds a step λ of the univariate function φ(λ) satisfying the strong Wolfe conditions:
//   - sufficient decrease condition: φ(λ) ≤ φ(0) + ɑλφ′(0)
//   - curvature condition: |φ′(λ)| ≤ β|φ′(0)|
//
// It is a reverse communication routine (Moré–Thuente, MINPACK-2 dcsrch).
// Start with task = SearchStart and f, g = φ(0), φ′(0) and a positive trial step.
// While the returned task is SearchFG evaluate f, g = φ(stp), φ′(stp) at the returned
// step and call again. SearchConv means stp satisfies both conditions;
// a SearchWarn task means no better step can be found and stp only satisfies
// the sufficient decrease condition (if any).
//
// The search keeps an interval [stx, sty] that contains a minimizer of
//
//	ψ(λ) = φ(λ) - φ(0) - ɑλφ′(0)
//
// until ψ(λ) ≤ 0 and φ′(λ) ≥ 0 for some step, then of φ itself.
func ScalarSearch(f, g, stp float64, task SearchTask, tol *SearchTol, ctx *SearchCtx) (float64, SearchTask) {

	if task == SearchStart {
		switch {
		case stp < tol.Lower:
			task = SearchErrOverLower
		case stp > tol.Upper:
			task = SearchErrOverUpper
		case g >= 0:
			task = SearchErrNegInitG
		case tol.Alpha < 0:
			task = SearchErrNegAlpha
		case tol.Beta < 0:
			task = SearchErrNegBeta
		case tol.Eps < 0:
			task = SearchErrNegEps
		case tol.Lower < 0:
			task = SearchErrLower
		case tol.Upper < tol.Lower:
			task = SearchErrUpper
		}
		if task&SearchError > 0 {
			return stp, task
		}

		ctx.bracket = false
		ctx.stage = stageArmijo
		ctx.f0, ctx.g0 = f, g
		ctx.width[0] = tol.Upper - tol.Lower
		ctx.width[1] = ctx.width[0] / p5

		ctx.stx, ctx.fx, ctx.gx = 0, ctx.f0, ctx.g0
		ctx.sty, ctx.fy, ctx.gy = 0, ctx.f0, ctx.g0
		ctx.bound[0] = 0
		ctx.bound[1] = stp + xTrapUpper*stp
		return stp, SearchFG
	}

	gTest := tol.Alpha * ctx.g0
	fTest := ctx.f0 + stp*gTest

	stpMin, stpMax := ctx.bound[0], ctx.bound[1]
	switch {
	case ctx.bracket && (stp <= stpMin || stp >= stpMax):
		task = SearchWarnRoundErr
	case ctx.bracket && stpMax-stpMin <= tol.Eps*stpMax:
		task = SearchWarnReachEps
	case stp == tol.Upper && f <= fTest && g <= gTest:
		task = SearchWarnReachMax
	case stp == tol.Lower && (f > fTest || g >= gTest):
		task = SearchWarnReachMin
	case f <= fTest && math.Abs(g) <= tol.Beta*(-ctx.g0):
		task = SearchConv
	}
	if task&(SearchWarn|SearchConv) > 0 {
		return stp, task
	}

	// Switch to φ once ψ(λ) ≤ 0 and φ′(λ) ≥ 0.
	if ctx.stage == stageArmijo && f <= fTest && g >= 0 {
		ctx.stage = stageWolfe
	}

	if ctx.stage == stageArmijo && f <= ctx.fx && f > fTest {
		// Step on the modified function ψ.
		fm := f - stp*gTest
		fxm := ctx.fx - ctx.stx*gTest
		fym := ctx.fy - ctx.sty*gTest
		gm := g - gTest
		gxm := ctx.gx - gTest
		gym := ctx.gy - gTest
		scalarStep(&ctx.stx, &fxm, &gxm, &ctx.sty, &fym, &gym, &stp, fm, gm, &ctx.bracket, ctx.bound)
		ctx.fx = fxm + ctx.stx*gTest
		ctx.fy = fym + ctx.sty*gTest
		ctx.gx = gxm + gTest
		ctx.gy = gym + gTest
	} else {
		scalarStep(&ctx.stx, &ctx.fx, &ctx.gx, &ctx.sty, &ctx.fy, &ctx.gy, &stp, f, g, &ctx.bracket, ctx.bound)
	}

	// Bisect when the interval does not shrink fast enough.
	if ctx.bracket {
		if math.Abs(ctx.sty-ctx.stx) >= p66*ctx.width[1] {
			stp = ctx.stx + p5*(ctx.sty-ctx.stx)
		}
		ctx.width[1] = ctx.width[0]
		ctx.width[0] = math.Abs(ctx.sty - ctx.stx)
	}

	if ctx.bracket {
		stpMin = math.Min(ctx.stx, ctx.sty)
		stpMax = math.Max(ctx.stx, ctx.sty)
	} else {
		stpMin = stp + xTrapLower*(stp-ctx.stx)
		stpMax = stp + xTrapUpper*(stp-ctx.stx)
	}
	ctx.bound[0], ctx.bound[1] = stpMin, stpMax

	stp = math.Min(math.Max(stp, tol.Lower), tol.Upper)

	// Fall back to the best step when no progress is possible.
	if ctx.bracket && (stp <= stpMin || stp >= stpMax) || (ctx.bracket && stpMax-stpMin <= tol.Eps*stpMax) {
		stp = ctx.stx
	}

	return stp, SearchFG
}

// scalarStep (dcstep) computes a safeguarded step and updates the interval
// [stx, sty] that contains a step satisfying the sufficient decrease and
// curvature conditions.
//
// stx is the step with the least function value so far, fx and dx its function
// value and derivative; dx must be negative in the direction of stp - stx.
// sty, fy, dy describe the other endpoint. stp, fp, dp describe the current
// step. When bracket is set a minimizer lies strictly between stx and sty.
//
// On exit stp holds the new trial step, clamped into bound when no minimizer
// is bracketed yet.
func scalarStep(
	stx, fx, dx *float64,
	sty, fy, dy *float64,
	stp *float64, fp, dp float64,
	bracket *bool, bound [2]float64) {

	var gamma, p, q, r, s, stpc, stpf, stpq, theta float64

	stpmin, stpmax := bound[0], bound[1]
	sgnd := dp * (*dx / math.Abs(*dx))

	// cubic returns θ and γ of the cubic interpolating (u, fu, du) and (v, fv, dv)
	cubic := func(u, fu, du, v, fv, dv float64) (theta, gamma float64) {
		theta = 3*(fu-fv)/(v-u) + du + dv
		s = math.Max(math.Max(math.Abs(theta), math.Abs(du)), math.Abs(dv))
		gamma = s * math.Sqrt((theta/s)*(theta/s)-(du/s)*(dv/s))
		return
	}

	switch {
	case fp > *fx:
		// Higher function value: the minimum is bracketed. Take the cubic step
		// if it is closer to stx than the quadratic step, else their average.
		theta, gamma = cubic(*stx, *fx, *dx, *stp, fp, dp)
		if *stp < *stx {
			gamma = -gamma
		}
		p = (gamma - *dx) + theta
		q = ((gamma - *dx) + gamma) + dp
		r = p / q
		stpc = *stx + r*(*stp-*stx)
		stpq = *stx + ((*dx/((*fx-fp)/(*stp-*stx)+*dx))/2)*(*stp-*stx)
		if math.Abs(stpc-*stx) < math.Abs(stpq-*stx) {
			stpf = stpc
		} else {
			stpf = stpc + (stpq-stpc)/2
		}
		*bracket = true

	case sgnd < 0:
		// Lower function value and derivatives of opposite sign: the minimum
		// is bracketed. Take the cubic step if it is farther from stp than the
		// secant step, else the secant step.
		theta, gamma = cubic(*stx, *fx, *dx, *stp, fp, dp)
		if *stp > *stx {
			gamma = -gamma
		}
		p = (gamma - dp) + theta
		q = ((gamma - dp) + gamma) + *dx
		r = p / q
		stpc = *stp + r*(*stx-*stp)
		stpq = *stp + (dp/(dp-*dx))*(*stx-*stp)
		if math.Abs(stpc-*stp) > math.Abs(stpq-*stp) {
			stpf = stpc
		} else {
			stpf = stpq
		}
		*bracket = true

	case math.Abs(dp) < math.Abs(*dx):
		// Lower function value, derivatives of the same sign and decreasing in
		// magnitude. The cubic step is used only if the cubic tends to infinity
		// in the direction of the step or its minimum is beyond stp.
		theta, gamma = cubic(*stx, *fx, *dx, *stp, fp, dp)
		// γ = 0 only arises if the cubic does not tend to infinity in the direction of the step.
		gamma = math.Max(0, gamma)
		if *stp > *stx {
			gamma = -gamma
		}
		p = (gamma - dp) + theta
		q = (gamma + (*dx - dp)) + gamma
		r = p / q
		switch {
		case r < 0 && gamma != 0:
			stpc = *stp + r*(*stx-*stp)
		case *stp > *stx:
			stpc = stpmax
		default:
			stpc = stpmin
		}
		stpq = *stp + (dp/(dp-*dx))*(*stx-*stp)
		if *bracket {
			if math.Abs(stpc-*stp) < math.Abs(stpq-*stp) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			if *stp > *stx {
				stpf = math.Min(*stp+p66*(*sty-*stp), stpf)
			} else {
				stpf = math.Max(*stp+p66*(*sty-*stp), stpf)
			}
		} else {
			if math.Abs(stpc-*stp) > math.Abs(stpq-*stp) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			stpf = math.Min(stpmax, stpf)
			stpf = math.Max(stpmin, stpf)
		}

	default:
		// Lower function value, derivatives of the same sign and not decreasing
		// in magnitude. Without a bracket the step goes to stpmin or stpmax.
		if *bracket {
			theta, gamma = cubic(*stp, fp, dp, *sty, *fy, *dy)
			if *stp > *sty {
				gamma = -gamma
			}
			p = (gamma - dp) + theta
			q = ((gamma - dp) + gamma) + *dy
			r = p / q
			stpc = *stp + r*(*sty-*stp)
			stpf = stpc
		} else if *stp > *stx {
			stpf = stpmax
		} else {
			stpf = stpmin
		}
	}

	// Update the interval which contains a minimizer.
	if fp > *fx {
		*sty, *fy, *dy = *stp, fp, dp
	} else {
		if sgnd < 0 {
			*sty, *fy, *dy = *stx, *fx, *dx
		}
		*stx, *fx, *dx = *stp, fp, dp
	}

	*stp = stpf
}
