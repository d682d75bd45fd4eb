// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
)

// Summary contains a summary of the optimization process.
type Summary struct {
	State  State  // Terminal state.
	Reason Reason // Final task status after optimization.
	Err    error  // Cause of the termination, nil when the tolerances were met.

	Manifold   manifold.Kind
	Rows, Cols int // Shape of a manifold point.
	M          int // Correction number.

	NumIter     int           // Number of iterations performed.
	NumEval     int           // Number of cost evaluations performed.
	NumReset    int           // Number of L-BFGS memory refreshes.
	NumSkip     int           // Number of skipped L-BFGS updates.
	NumBack     int           // Trial steps of the last line search.
	InitialCost float64       // Cost at x₀.
	FinalCost   float64       // Cost at the last accepted iterate.
	GradNorm    float64       // Norm of the final Riemannian gradient.
	History     []float64     // Cost of every accepted iterate, starting at x₀.
	Elapsed     time.Duration // Wall time of the solve.
}

// result assembles the outcome of a solve ended with task.
func (d *iterDriver) result(task Reason) *Result {
	o, w, loc := d.optimizer, d.workspace, d.location

	err := d.err
	switch task {
	case ConvGradNorm:
		err = nil
	case OverIterLimit, OverEvalLimit, OverTimeLimit, StopCostStall:
		err = fmt.Errorf("%w: %s", ErrNonConvergence, task.Message())
	case StopRetraction:
		if err == nil {
			err = manifold.ErrRetractionDivergence
		}
	case StopAbnormalSearch:
		if err == nil {
			err = ErrLineSearch
		}
	case HaltEvalError:
		if err == nil {
			err = ErrEvaluation
		}
	default:
		if err == nil {
			err = errors.New(task.Message())
		}
	}

	res := &Result{
		OK: task == ConvGradNorm,
		F:  math.NaN(),
		Summary: Summary{
			State:       task.State(),
			Reason:      task,
			Err:         err,
			Manifold:    o.manifold.Kind(),
			Rows:        o.r,
			Cols:        o.c,
			M:           o.m,
			NumIter:     w.iter,
			NumEval:     w.totalEval,
			NumReset:    w.numReset,
			NumSkip:     w.numSkip,
			NumBack:     w.numBack,
			InitialCost: w.f0,
			FinalCost:   math.NaN(),
			GradNorm:    w.gNorm,
			History:     append([]float64(nil), w.history...),
			Elapsed:     w.elapsed(),
		},
	}

	if loc.x != nil {
		res.X = mat.DenseCopyOf(loc.x)
	}
	if len(w.history) > 0 {
		// loc holds the last accepted iterate
		res.F = loc.f
		res.FinalCost = loc.f
		res.G = mat.NewDense(o.r, o.c, append([]float64(nil), loc.g...))
	}
	return res
}

// BriefReport returns a one-line description of the solve.
func (s *Summary) BriefReport() string {
	return fmt.Sprintf("Riemannian L-BFGS (%v %d×%d): %v, iterations: %d, evaluations: %d, initial cost: %.6e, final cost: %.6e, |grad|: %.3e, termination: %s",
		s.Manifold, s.Rows, s.Cols, s.State, s.NumIter, s.NumEval, s.InitialCost, s.FinalCost, s.GradNorm, s.Reason.Message())
}

// FullReport returns a multi-line description of the solve.
func (s *Summary) FullReport() string {
	var b strings.Builder
	line := func(name string, format string, a ...any) {
		fmt.Fprintf(&b, "%-26s"+format+"\n", append([]any{name}, a...)...)
	}

	b.WriteString("\nSolver Summary\n\n")
	line("Manifold", "%12v", s.Manifold)
	line("Point shape", "%12s", fmt.Sprintf("%d×%d", s.Rows, s.Cols))
	line("Parameters", "%12d", s.Rows*s.Cols)
	line("Line search", "%12s", "WOLFE")
	line("Direction", "%12s", "LBFGS")
	line("LBFGS memory", "%12d", s.M)

	b.WriteString("\nCost:\n")
	line("Initial", "%12.6e", s.InitialCost)
	line("Final", "%12.6e", s.FinalCost)
	line("Change", "%12.6e", s.InitialCost-s.FinalCost)

	b.WriteString("\n")
	line("Iterations", "%12d", s.NumIter)
	line("Cost evaluations", "%12d", s.NumEval)
	line("Memory refreshes", "%12d", s.NumReset)
	line("Skipped updates", "%12d", s.NumSkip)
	line("Final gradient norm", "%12.6e", s.GradNorm)
	line("Total time", "%12s", formatDuration(s.Elapsed))

	b.WriteString("\n")
	line("State", "%s", s.State)
	line("Termination", "%s", s.Reason.Message())
	if s.Err != nil {
		line("Error", "%v", s.Err)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}

// printInit logs the initialization details of the optimization process,
// including machine precision and problem dimensions.
func (d *iterDriver) printInit() {

	loc := d.location
	spec := &d.optimizer.iterSpec

	log := spec.logger

	if log.enable(LogLast) {
		log.log("RUNNING THE RIEMANNIAN L-BFGS CODE\n")
		log.log("           * * *\n")
		log.log("Machine precision = %10.3e\n", spec.epsilon)
		log.log("Manifold = %v    N = %d × %d    M = %d\n", spec.manifold.Kind(), spec.r, spec.c, spec.m)

		if log.enable(LogEval) {
			log.out("RUNNING THE RIEMANNIAN L-BFGS CODE\n\n")
			log.out("Manifold = %v    N = %d × %d    M = %d\n", spec.manifold.Kind(), spec.r, spec.c, spec.m)
			log.out("\n  it    nf  itls       stepl       tstep      |grad|          f\n")

			if log.enable(LogVerbose) {
				log.log("\nX0 = ")
				printMatrix(&log, loc.x)
			}
		}
	}
}

// printIter logs the current iteration details, including the cost,
// gradient norm, and other iteration statistics.
func (d *iterDriver) printIter() {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	stpNorm := ctx.stp * ctx.dNorm
	if log.enable(LogTrace) {
		log.log("LINE SEARCH %d times; norm of step = %12.5e\n", ctx.numBack, stpNorm)
		log.log("At iterate %5d    f= %12.5e    |grad|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		var warn string
		switch ctx.task {
		case SearchWarnRoundErr:
			warn = "ROUNDING ERRORS PREVENT PROGRESS"
		case SearchWarnReachEps:
			warn = "XTOL TEST SATISFIED"
		case SearchWarnReachMax:
			warn = "STP = STPMAX"
		case SearchWarnReachMin:
			warn = "STP = STPMIN"
		}
		if warn != "" {
			log.log("WARNING: %v\n", warn)
		}
		if log.enable(LogVerbose) {
			log.log("\n X = ")
			printMatrix(&log, loc.x)
			log.log("\n G = ")
			printMatrix(&log, mat.NewDense(spec.r, spec.c, loc.g))
		}
	} else if log.enable(LogEval) {
		if ctx.iter%int(log.Level) == 0 {
			log.log("At iterate %5d    f= %12.5e    |grad|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		}
	}

	if log.enable(LogEval) {
		log.out("%4d %5d %5d %11.3e %11.3e %11.3e %11.3e\n",
			ctx.iter, ctx.totalEval, ctx.numBack, ctx.stp, stpNorm, ctx.gNorm, loc.f)
	}
}

// printExit logs the final statistics and exit conditions of the optimization process.
func (d *iterDriver) printExit(task Reason) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("Tit   = total number of iterations\n")
	log.log("Tnf   = total number of function evaluations\n")
	log.log("Rst   = number of LBFGS memory refreshes\n")
	log.log("Skip  = number of LBFGS updates skipped\n")
	log.log("Grad  = norm of the final Riemannian gradient\n")
	log.log("F     = final function value\n")
	log.log("\n           * * *\n")
	log.log("\n   N      Tit      Tnf    Rst   Skip     Grad         F\n")
	log.log("%5d %6d %7d %6d %6d %6.2e %9.5e\n",
		spec.n, ctx.iter, ctx.totalEval, ctx.numReset, ctx.numSkip, ctx.gNorm, loc.f)

	if log.enable(LogChange) {
		log.log("\n X =")
		printMatrix(&log, loc.x)
		log.log("\n")
	}

	if log.enable(LogEval) {
		log.log(" F = %.9e\n", loc.f)
	}

	log.log("\n%s\n", task.Message())
	if d.err != nil && task.State() != Converged {
		log.log("%v\n", d.err)
	}
	log.log("\n Total time = %s\n", formatDuration(ctx.elapsed()))
}

func printMatrix(log *Logger, x mat.Matrix) {
	if x == nil {
		log.log("<nil>\n")
		return
	}
	log.log("%.2e\n", mat.Formatted(x, mat.Prefix("     "), mat.Squeeze()))
}
