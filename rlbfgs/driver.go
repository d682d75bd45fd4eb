// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
)

// iterDriver is the main driver for iterations in an optimization process,
// responsible for managing the flow of the optimization.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *iterLoc
	err       error // cause of an abnormal termination
}

// start validates the initial point and copies it into the location.
func (d *iterDriver) start(x0 mat.Matrix) Reason {
	o, w, loc := d.optimizer, d.workspace, d.location
	w.clear()

	if x0 == nil {
		d.err = errors.New("initial point is required")
	} else if r, c := x0.Dims(); r != o.r || c != o.c {
		d.err = fmt.Errorf("%w: initial point is %d×%d, want %d×%d", manifold.ErrDimensionMismatch, r, c, o.r, o.c)
	} else {
		loc.x = mat.DenseCopyOf(x0)
		if !o.manifold.Contains(loc.x, o.feasTol) {
			d.err = fmt.Errorf("%w: %v membership test failed with tolerance %g", ErrInfeasibleStart, o.manifold.Kind(), o.feasTol)
		}
	}

	if d.err != nil {
		if log := o.logger; log.enable(LogLast) {
			log.log("%v\n", d.err)
			log.log("\n%s\n", HaltBadInput.Message())
		}
		return HaltBadInput
	}
	return iterLoop
}

// evaluate computes the cost at x and stores the Riemannian gradient in g.
// A panicking or non-finite evaluation halts the solve.
func (d *iterDriver) evaluate(x *mat.Dense, g []float64) (f float64, task Reason) {
	o, w := d.optimizer, d.workspace

	task = iterLoop
	copy(w.xs, rawData(x))
	func() {
		defer func() {
			if r := recover(); r != nil {
				task = HaltEvalError
				d.err = fmt.Errorf("%w: %v", ErrEvaluation, r)
			}
		}()
		f = o.object.Evaluate(w.xs, w.eg)
	}()
	w.totalEval++
	if task != iterLoop {
		return
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		d.err = fmt.Errorf("%w: cost is %v", ErrEvaluation, f)
		return f, HaltEvalError
	}
	if s := floats.Norm(w.eg, 1); math.IsNaN(s) || math.IsInf(s, 0) {
		d.err = fmt.Errorf("%w: gradient is not finite", ErrEvaluation)
		return f, HaltEvalError
	}

	v, err := o.manifold.ProjectGradient(x, manifold.View(o.r, o.c, w.eg))
	if err != nil {
		d.err = err
		return f, HaltBadInput
	}
	copy(g, rawData(v))
	return
}

// newIteration handles the transition to a new iteration, checking for stopping
// conditions like exceeding iteration, evaluation or time limits.
func (d *iterDriver) newIteration(task Reason) Reason {
	o, w := d.optimizer, d.workspace
	w.iter++
	if w.iter >= o.stop.MaxIterations {
		task = OverIterLimit
	} else if w.totalEval >= o.stop.MaxEvaluations {
		task = OverEvalLimit
	} else if w.elapsed() >= o.stop.MaxDuration {
		task = OverTimeLimit
	}
	return task
}

// checkConvergence checks if the convergence criteria have been met based on
// the Riemannian gradient norm and the progress in cost reduction.
// Only a small gradient ends the solve successfully. A relative cost reduction
// below tolerance counts as a stall; stallExit stalls in a row stop the solve.
// Convergence takes precedence over the limits.
func (d *iterDriver) checkConvergence(task Reason) Reason {
	o, w, loc := d.optimizer, d.workspace, d.location
	w.gNorm = floats.Norm(loc.g, 2)
	if w.gNorm <= o.stop.GradientTolerance {
		return ConvGradNorm
	}
	if w.iter > 0 && math.Abs(w.fOld-loc.f) <= o.stop.FunctionTolerance*math.Abs(w.fOld) {
		if w.numStall++; w.numStall >= stallExit && task == iterLoop {
			task = StopCostStall
		}
	} else {
		w.numStall = 0
	}
	return task
}

// mainLoop is the main execution loop of the iteration process, computing
// directions, performing line searches along the retraction and updating
// the L-BFGS memory. It controls the iteration flow.
func (d *iterDriver) mainLoop() (task Reason) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	d.printInit()

	// Calculate f₀ and grad f₀
	if loc.f, task = d.evaluate(loc.x, loc.g); task == iterLoop {
		ctx.f0 = loc.f
		ctx.history = append(ctx.history, loc.f)
		task = d.checkConvergence(task)
		if log.enable(LogEval) {
			log.log("At iterate %5d    f= %12.5e    |grad|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
			log.out("%4d %5d     -           -           - %10.3e %10.3e\n", ctx.iter, ctx.totalEval, ctx.gNorm, loc.f)
		}
	}

	info := ok
	for task == iterLoop {

		if info != ok {
			info = ok
			ctx.reset()
			ctx.numReset++
			if log.enable(LogLast) {
				log.log("Refreshing LBFGS memory and restarting iteration.\n")
			}
		}

		if log.enable(LogTrace) {
			log.log("\n\nITERATION %5d\n", ctx.iter+1)
		}

		if info = d.searchDirection(&task); info != ok {
			continue
		}
		if info = d.searchOptimalStep(&task); info != ok {
			continue
		}

		// calculate and print out the quantities related to the new X.
		task = d.newIteration(task)
		task = d.checkConvergence(task)

		d.printIter()

		switch {
		case task == iterLoop && ctx.numStall > 0 && ctx.col > 0:
			// retry the stalled step from steepest descent
			info = warnRestartLoop
		case task == iterLoop:
			d.updateBFGS()
		case task == StopCostStall && ctx.numBack >= searchBackSlow && log.enable(LogLast):
			log.log("Line search took %d trial steps before the cost stalled.\n", ctx.numBack)
		}
	}

	d.printExit(task)
	return
}

// searchDirection computes dₖ = -Hₖ 𝚐𝚛𝚊𝚍 fₖ in the tangent space at the current point.
func (d *iterDriver) searchDirection(task *Reason) (info errInfo) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	if ctx.col > 0 {
		if info = transportMemory(loc, spec, ctx); info != ok {
			if log.enable(LogLast) {
				log.log("Curvature lost in vector transport;\n")
			}
			return
		}
	}

	twoLoop(loc.g, spec, ctx)
	if ctx.col > 0 {
		projectDirection(spec, loc.x, ctx.d)
	}

	ctx.gd = floats.Dot(loc.g, ctx.d)
	if ctx.gd >= zero {
		// Line search is impossible when the directional derivative ≥ 0.
		if ctx.col == 0 {
			d.abnormalSearch(task, fmt.Errorf("%w: steepest descent is not a descent direction", ErrLineSearch))
		}
		if log.enable(LogLast) {
			log.log("Ascent direction in projection gd = %f\n", ctx.gd)
		}
		return errDerivative
	}
	return ok
}

// searchOptimalStep calculates the step size λₖ for the current iteration and
// moves to xₖ₊₁ = R(xₖ, λₖdₖ). The cost never increases on an accepted step.
func (d *iterDriver) searchOptimalStep(task *Reason) (info errInfo) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	initLineSearch(loc, spec, ctx)
	ctx.fOld = loc.f
	copy(ctx.gOld, loc.g)

	fails := 0
	tol, sc := &ctx.searchWork.tol, &ctx.searchWork.ctx
	ctx.stp, ctx.task = ScalarSearch(loc.f, ctx.gd, ctx.stp, SearchStart, tol, sc)
	for ctx.task == SearchFG && ctx.numEval < searchBackExit {

		y, err := retractStep(loc, spec, ctx)
		if err != nil {
			if !errors.Is(err, manifold.ErrRetractionDivergence) {
				*task = HaltBadInput
				d.err = err
				return errEvaluation
			}
			if fails++; fails >= retractExit {
				*task = StopRetraction
				d.err = err
				return errRetraction
			}
			if log.enable(LogTrace) {
				log.log("Retraction failed at step %12.5e; shrinking the step\n", ctx.stp)
			}
			restartLineSearch(loc, ctx)
			continue
		}
		fails = 0

		var fy float64
		if fy, *task = d.evaluate(y, ctx.last.g); *task != iterLoop {
			return errEvaluation
		}
		ctx.numEval++
		ctx.last.x, ctx.last.f = y, fy
		if fy < ctx.best.f {
			ctx.best.load(&ctx.last)
			ctx.bestStp = ctx.stp
		}

		// φ′(λ) ≈ ⟨𝚐𝚛𝚊𝚍 f(R(x, λd)), d⟩
		gy := floats.Dot(ctx.last.g, ctx.d)
		ctx.stp, ctx.task = ScalarSearch(fy, gy, ctx.stp, ctx.task, tol, sc)
	}
	ctx.numBack = ctx.numEval

	switch {
	case ctx.task == SearchConv:
		loc.load(&ctx.last)
	case ctx.best.x != nil:
		// no Wolfe point, fall back to the lowest cost seen
		loc.load(&ctx.best)
		ctx.stp = ctx.bestStp
	default:
		if ctx.col == 0 {
			d.abnormalSearch(task, fmt.Errorf("%w: no decrease along steepest descent after %d trial steps", ErrLineSearch, ctx.numEval))
			info = errLineSearchFailed
		} else {
			info = warnRestartLoop
		}
		if log.enable(LogLast) {
			log.log("Bad direction in the line search;\n")
		}
		return
	}

	copy(ctx.s, ctx.d)
	floats.Scale(ctx.stp, ctx.s)
	ctx.history = append(ctx.history, loc.f)
	return ok
}

// abnormalSearch ends a solve whose steepest descent step cannot decrease the
// cost. Right after a stalled iteration the decrease is below rounding, which
// is the same stall rather than a divergence.
func (d *iterDriver) abnormalSearch(task *Reason, err error) {
	if d.workspace.numStall > 0 {
		*task = StopCostStall
		return
	}
	*task = StopAbnormalSearch
	d.err = err
}
