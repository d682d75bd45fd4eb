// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
	"github.com/curioloop/manifold/objective"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the exit block of the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and ‖grad f‖ every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration except the matrices
	LogTrace LogLevel = 99
	// LogChange print also the final point
	LogChange LogLevel = 100
	// LogVerbose print details of every iteration including x and grad f (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe when one logger is shared by concurrent solves.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the number of iteration reaches limit.
	MaxIterations int
	// The iteration stop when the total number of cost evaluation reaches limit (0 means unlimited).
	MaxEvaluations int
	// The iteration stop when the elapsed time reaches limit (0 means unlimited).
	MaxDuration time.Duration
	// The iteration will stop when the cost satisfied:
	//   |fₖ - fₖ₊₁| ≤ 𝚏𝚝𝚘𝚕 × |fₖ|
	FunctionTolerance float64
	// The iteration will stop when the Riemannian gradient satisfied:
	//   ‖ 𝚐𝚛𝚊𝚍 fₖ ‖₂ ≤ 𝚐𝚝𝚘𝚕
	GradientTolerance float64
}

// Problem specifies a cost minimization over a matrix manifold.
type Problem struct {
	Object    objective.Function        // Cost function and ambient gradient
	Manifold  manifold.Parameterization // Feasible set
	M         int                       // The correction number of L-BFGS
	Stop      Termination               // Stop condition
	Search    *SearchTol                // Optional line-search config
	Tolerance float64                   // Optional membership tolerance of the initial point
}

// New creates a new Riemannian L-BFGS optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	log := *logger
	if log.Msg == nil {
		log.Msg = os.Stdout
	}
	if log.Out == nil {
		log.Out = os.Stderr
	}

	m, stop := p.M, p.Stop

	stop.MaxEvaluations = max(stop.MaxEvaluations, 0)
	if stop.MaxEvaluations == 0 {
		stop.MaxEvaluations = math.MaxInt
	}
	if stop.MaxDuration <= 0 {
		stop.MaxDuration = math.MaxInt64
	}

	feasTol := p.Tolerance
	if feasTol == 0 {
		feasTol = manifold.DefaultTolerance
	}

	switch {
	case p.Object == nil:
		err = errors.New("objective function is required")
	case p.Manifold == nil:
		err = errors.New("manifold is required")
	case m <= 0:
		err = errors.New("correction number must greater than 0")
	case stop.MaxIterations <= 0:
		err = errors.New("max iteration must greater than 0")
	case stop.FunctionTolerance < 0 || math.IsNaN(stop.FunctionTolerance):
		err = errors.New("function tolerance must not less than 0")
	case stop.GradientTolerance < 0 || math.IsNaN(stop.GradientTolerance):
		err = errors.New("gradient tolerance must not less than 0")
	case feasTol < 0 || math.IsNaN(feasTol):
		err = errors.New("membership tolerance must not less than 0")
	case p.Object.NumParameters() != p.Manifold.AmbientDimension():
		err = fmt.Errorf("%w: objective has %d parameters, %v manifold has %d",
			manifold.ErrDimensionMismatch, p.Object.NumParameters(), p.Manifold.Kind(), p.Manifold.AmbientDimension())
	}

	search := SearchTol{searchAlpha, searchBeta, searchEps, zero, searchNoBnd}
	if p.Search != nil {
		search = *p.Search
	}
	if err == nil {
		if search.Alpha < 0 || search.Beta <= search.Alpha || search.Eps < 0 || search.Lower < 0 || search.Upper <= search.Lower {
			err = errors.New("line search tolerance must satisfy 0 ≤ alpha < beta and 0 ≤ lower < upper")
		}
	}

	if err != nil {
		return
	}

	r, c := p.Manifold.Dims()
	optimizer = &Optimizer{
		iterSpec{
			r: r, c: c, n: r * c, m: m,
			epsilon:  math.Nextafter(1, 2) - 1,
			stop:     stop,
			search:   search,
			feasTol:  feasTol,
			object:   p.Object,
			manifold: p.Manifold,
			logger:   log,
		},
	}
	return
}

// Optimizer implemented using a Riemannian L-BFGS algorithm.
// It is read-only after creation and could be shared by many workspaces.
type Optimizer struct {
	iterSpec
}

// Workspace contains the state and context of the optimization process.
// Given ambient dimension n and corrections number m,
// total work space is approximately float64[2×mn + 8×n + 2×m].
type Workspace struct {
	n, m int
	iterCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool       // Whether the tolerances were met.
	F       float64    // Final cost.
	X       *mat.Dense // Final manifold point.
	G       *mat.Dense // Riemannian gradient at X.
	Summary            // Optimization summary.
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n, w.m = o.n, o.m
	w.init(w.n, w.m)
	return w
}

// Fit runs the optimization process from the manifold point x0 using workspace w.
//
// The returned result is never nil. The error is non-nil when the solve ends
// in the Failed or Diverged state; a solve stopped by a limit is Converged and
// carries ErrNonConvergence in Summary.Err only.
func (o *Optimizer) Fit(x0 mat.Matrix, w *Workspace) (*Result, error) {

	if w.n != o.n || w.m != o.m {
		panic("workspace dimension not match problem")
	}

	loc := iterLoc{g: make([]float64, o.n)}
	driver := iterDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	task := driver.start(x0)
	if task == iterLoop {
		task = driver.mainLoop()
	}

	res := driver.result(task)
	if res.State != Converged {
		return res, res.Err
	}
	return res, nil
}
