// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/manifold"
	"github.com/curioloop/manifold/objective"
)

const (
	zero = 0.0
	one  = 1.0
)

// iterSpec is the immutable part of an optimizer.
type iterSpec struct {
	r, c     int // shape of a manifold point
	n, m     int // ambient dimension and correction number
	epsilon  float64
	stop     Termination
	search   SearchTol
	feasTol  float64
	object   objective.Function
	manifold manifold.Parameterization
	logger   Logger
}

// iterLoc is a point on the manifold with its cost and Riemannian gradient.
type iterLoc struct {
	x *mat.Dense
	f float64
	g []float64
}

func (l *iterLoc) load(src *iterLoc) {
	l.x, l.f = src.x, src.f
	copy(l.g, src.g)
}

// iterCtx is the mutable state of one solve.
type iterCtx struct {
	iter      int // completed iterations
	totalEval int // cost evaluations
	numEval   int // trial steps of the current line search
	numBack   int // trial steps of the last line search
	numReset  int // L-BFGS memory refreshes
	numSkip   int // skipped L-BFGS updates
	numStall  int // consecutive iterations with a stalled cost

	f0, fOld float64
	gNorm    float64
	history  []float64

	// L-BFGS memory as a ring of m correction pairs; the oldest is at head.
	ws, wy     [][]float64
	rho, alpha []float64
	head, col  int

	d, s, y   []float64 // direction, last step and gradient change
	gOld      []float64 // gradient at the previous point
	xs, eg    []float64 // ambient point and gradient passed to the objective
	gd, dNorm float64
	stp       float64

	task       SearchTask
	searchWork struct {
		tol SearchTol
		ctx SearchCtx
	}

	last, best iterLoc // trial points of the line search
	bestStp    float64

	start time.Time
}

func (c *iterCtx) init(n, m int) {
	c.ws = make([][]float64, m)
	c.wy = make([][]float64, m)
	for i := 0; i < m; i++ {
		c.ws[i] = make([]float64, n)
		c.wy[i] = make([]float64, n)
	}
	c.rho = make([]float64, m)
	c.alpha = make([]float64, m)
	c.d = make([]float64, n)
	c.s = make([]float64, n)
	c.y = make([]float64, n)
	c.gOld = make([]float64, n)
	c.xs = make([]float64, n)
	c.eg = make([]float64, n)
	c.last.g = make([]float64, n)
	c.best.g = make([]float64, n)
}

// clear prepares the context for a new solve.
func (c *iterCtx) clear() {
	c.iter, c.totalEval = 0, 0
	c.numEval, c.numBack = 0, 0
	c.numReset, c.numSkip = 0, 0
	c.numStall = 0
	c.f0, c.fOld = math.NaN(), math.NaN()
	c.gNorm = math.NaN()
	c.history = nil
	c.gd, c.dNorm, c.stp = 0, 0, 0
	c.task = SearchStart
	c.last.x, c.best.x = nil, nil
	c.start = time.Now()
	c.reset()
}

// reset drops the L-BFGS memory.
func (c *iterCtx) reset() {
	c.head, c.col = 0, 0
}

func (c *iterCtx) elapsed() time.Duration {
	return time.Since(c.start)
}

// rawData returns the row-major storage of x, copying when x is not contiguous.
func rawData(x *mat.Dense) []float64 {
	raw := x.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	return manifold.Flatten(x)
}
