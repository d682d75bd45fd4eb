// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates derivatives by finite differences.
//
// It is used to supply gradients for cost functions that only evaluate values,
// and to verify analytic gradients against a numerical estimate.
package numdiff

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	default:
		return "unknown"
	}
}

// ApproxSpec estimates the gradient of a scalar function 𝒇 : ℝⁿ → ℝ.
//
// The step for coordinate i is
//
//	hᵢ = 𝚜𝚒𝚐𝚗(xᵢ) × 𝚎𝚙𝚜 × 𝚖𝚊𝚡(1, |xᵢ|)
//
// with 𝚎𝚙𝚜 = √ε for Forward and ∛ε for Central.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type ApproxSpec struct {
	N int
	// Function of which to estimate the gradient.
	// The argument x passed to this function is an n-vector that is perturbed
	// in place between calls, so it must not be retained.
	Object func(x []float64) float64
	// Finite difference method to use.
	Method Method

	absStep []float64
}

// Check the parameters and allocate the step buffer.
func (as *ApproxSpec) Check(x0, grad []float64) (err error) {
	switch {
	case as.N <= 0:
		err = errors.New("negative dimensions")
	case as.Method != Forward && as.Method != Central:
		err = errors.New("unknown method")
	case as.Object == nil:
		err = errors.New("object function is required")
	case as.N != len(x0):
		err = errors.New("invalid x0 dimensions")
	case as.N != len(grad):
		err = errors.New("invalid gradient dimensions")
	}
	if err != nil {
		return
	}

	if len(as.absStep) != as.N {
		as.absStep = make([]float64, as.N)
	}
	return
}

// Diff approximates the gradient at x0 by finite differences.
// x0 is restored before return.
func (as *ApproxSpec) Diff(x0, grad []float64) error {
	if err := as.Check(x0, grad); err != nil {
		return err
	}

	as.absoluteStep(x0)
	if as.Method == Central {
		as.approxCentral(x0, grad)
	} else {
		as.approxForward(x0, grad)
	}
	return nil
}

func (as *ApproxSpec) absoluteStep(x0 []float64) {
	h := as.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	eps := sqrtEps
	if as.Method == Central {
		eps = cubeEps
	}
	for i, v := range x0 {
		s := math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		if as.Method == Central {
			s = math.Abs(s)
		}
		h[i] = s
	}
}

func (as *ApproxSpec) approxForward(x0, grad []float64) {
	fun := as.Object
	f0 := fun(x0)
	for i, s := range as.absStep {
		t := x0[i]
		x0[i] = t + s
		f1 := fun(x0)
		x0[i] = t
		grad[i] = (f1 - f0) / ((t + s) - t)
	}
}

func (as *ApproxSpec) approxCentral(x0, grad []float64) {
	fun := as.Object
	for i, s := range as.absStep {
		t := x0[i]
		x0[i] = t - s
		f1 := fun(x0)
		x0[i] = t + s
		f2 := fun(x0)
		x0[i] = t
		grad[i] = (f2 - f1) / (2 * s)
	}
}

// Gradient estimates the gradient of the scalar function f at x0 into grad.
func Gradient(f func(x []float64) float64, x0, grad []float64, method Method) error {
	as := ApproxSpec{N: len(x0), Object: f, Method: method}
	return as.Diff(x0, grad)
}

// GradientError compares the analytic gradient returned by eval against a
// central difference estimate at x0 and returns
//
//	‖ g - ĝ ‖∞ / 𝚖𝚊𝚡(1, ‖ ĝ ‖∞)
//
// eval must fill g when it is non-nil and return the function value.
func GradientError(eval func(x, g []float64) float64, x0 []float64) (float64, error) {
	n := len(x0)
	x := make([]float64, n)
	copy(x, x0)

	analytic := make([]float64, n)
	eval(x, analytic)

	numeric := make([]float64, n)
	f := func(x []float64) float64 { return eval(x, nil) }
	if err := Gradient(f, x, numeric, Central); err != nil {
		return math.NaN(), err
	}

	scale := math.Max(1, floats.Norm(numeric, math.Inf(1)))
	return floats.Distance(analytic, numeric, math.Inf(1)) / scale, nil
}
