// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
	"github.com/curioloop/manifold/objective"
)

// LineSearchType selects the line search of Solve.
type LineSearchType int

const (
	// Wolfe searches for a step satisfying the strong Wolfe conditions.
	Wolfe LineSearchType = iota
)

// DirectionType selects how Solve builds the search direction.
type DirectionType int

const (
	// LBFGS uses the limited memory BFGS two-loop recursion.
	LBFGS DirectionType = iota
)

// Options configures Solve.
type Options struct {
	MaxIterations     int
	MaxEvaluations    int           // 0 means unlimited
	MaxDuration       time.Duration // 0 means unlimited
	FunctionTolerance float64
	GradientTolerance float64
	LineSearch        LineSearchType
	Direction         DirectionType
	Memory            int     // The correction number of L-BFGS
	Tolerance         float64 // Membership tolerance of the initial point
	Parallelism       int     // Concurrent solves of SolveAll (≤ 0 means unlimited)
	Logger            *Logger
}

// DefaultOptions returns 200 iterations with function and gradient tolerances
// of 1e-8, a Wolfe line search and L-BFGS directions with 10 corrections.
func DefaultOptions() Options {
	return Options{
		MaxIterations:     200,
		FunctionTolerance: 1e-8,
		GradientTolerance: 1e-8,
		LineSearch:        Wolfe,
		Direction:         LBFGS,
		Memory:            10,
		Tolerance:         manifold.DefaultTolerance,
	}
}

// Solve minimizes object over the manifold starting from x0.
//
// The result is never nil: a malformed problem or initial point yields a
// Failed result whose error is also returned.
func Solve(opt Options, object objective.Function, m manifold.Parameterization, x0 mat.Matrix) (*Result, error) {
	var err error
	switch {
	case opt.LineSearch != Wolfe:
		err = fmt.Errorf("unsupported line search type %d", opt.LineSearch)
	case opt.Direction != LBFGS:
		err = fmt.Errorf("unsupported direction type %d", opt.Direction)
	}

	var o *Optimizer
	if err == nil {
		p := Problem{
			Object:   object,
			Manifold: m,
			M:        opt.Memory,
			Stop: Termination{
				MaxIterations:     opt.MaxIterations,
				MaxEvaluations:    opt.MaxEvaluations,
				MaxDuration:       opt.MaxDuration,
				FunctionTolerance: opt.FunctionTolerance,
				GradientTolerance: opt.GradientTolerance,
			},
			Tolerance: opt.Tolerance,
		}
		o, err = p.New(opt.Logger)
	}
	if err != nil {
		return failed(err, m), err
	}
	return o.Fit(x0, o.Init())
}

func failed(err error, m manifold.Parameterization) *Result {
	res := &Result{F: math.NaN()}
	res.State, res.Reason, res.Err = Failed, HaltBadInput, err
	res.InitialCost, res.FinalCost, res.GradNorm = math.NaN(), math.NaN(), math.NaN()
	if m != nil {
		res.Manifold = m.Kind()
		res.Rows, res.Cols = m.Dims()
	}
	return res
}

// Job is one independent solve of SolveAll.
type Job struct {
	Object   objective.Function
	Manifold manifold.Parameterization
	X0       mat.Matrix
}

// SolveAll runs the jobs concurrently, at most opt.Parallelism at a time.
// Results are in job order and each carries its own outcome; the returned
// error is only set when ctx is done before every job started.
func SolveAll(ctx context.Context, opt Options, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if opt.Parallelism > 0 {
		g.SetLimit(opt.Parallelism)
	}

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failed(err, job.Manifold)
				return err
			}
			results[i], _ = Solve(opt, job.Object, job.Manifold, job.X0)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, errors.Join(errors.New("batch solve interrupted"), err)
	}
	return results, nil
}
