// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package numdiff

import (
	"math"
	"testing"
)

// objV2 sums the outputs of the vector case of scipy's test__numdiff.py.
func objV2(x []float64) float64 {
	return x[0]*math.Sin(x[1]) + x[1]*math.Cos(x[0]) + math.Pow(x[0], 3)*math.Pow(x[1], -0.5)
}

func gradV2(x []float64) []float64 {
	return []float64{
		math.Sin(x[1]) - x[1]*math.Sin(x[0]) + 3*math.Pow(x[0], 2)*math.Pow(x[1], -0.5),
		x[0]*math.Cos(x[1]) + math.Cos(x[0]) - 0.5*math.Pow(x[0], 3)*math.Pow(x[1], -1.5),
	}
}

func objZero(x []float64) float64 {
	return x[0]*x[1] + math.Cos(x[0]*x[1])
}

func gradZero(x []float64) []float64 {
	return []float64{
		x[1] - x[1]*math.Sin(x[0]*x[1]),
		x[0] - x[0]*math.Sin(x[0]*x[1]),
	}
}

func TestCheck(t *testing.T) {
	obj := func(x []float64) float64 { return x[0] }
	cases := []ApproxSpec{
		{N: 0, Object: obj},
		{N: 1, Object: obj, Method: Method(7)},
		{N: 1},
		{N: 2, Object: obj},
	}
	for i, as := range cases {
		if err := as.Check([]float64{1}, []float64{0}); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	as := ApproxSpec{N: 1, Object: obj}
	if err := as.Check([]float64{1}, []float64{0, 0}); err == nil {
		t.Fatal("gradient dimension not checked")
	}
}

func TestScalar(t *testing.T) {

	x0 := []float64{1.0}
	obj := func(x []float64) float64 {
		return math.Sinh(x[0])
	}

	grad1 := []float64{math.Cosh(x0[0])}
	grad2 := []float64{0}
	grad3 := []float64{0}

	as := ApproxSpec{N: 1, Method: Forward, Object: obj}
	if err := as.Diff(x0, grad2); err != nil {
		t.Fatal("approx scalar failed", err)
	}
	as = ApproxSpec{N: 1, Method: Central, Object: obj}
	if err := as.Diff(x0, grad3); err != nil {
		t.Fatal("approx scalar failed", err)
	}
	if !relativeEqual(grad2, grad1, 1e-6) {
		t.Fatal("unexpected approx scalar result")
	}
	if !relativeEqual(grad3, grad1, 1e-9) {
		t.Fatal("unexpected approx scalar result")
	}
	if x0[0] != 1.0 {
		t.Fatal("x0 not restored")
	}

	// the step buffer is reused across calls
	if err := as.Diff([]float64{-1.0}, grad3); err != nil {
		t.Fatal("approx scalar failed", err)
	}
	if !relativeEqual(grad3[0], math.Cosh(-1.0), 1e-9) {
		t.Fatal("unexpected approx scalar result at negative x")
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_vector_vector, outputs summed)
func TestVector(t *testing.T) {

	x0 := []float64{-100.0, 0.2}
	grad1 := gradV2(x0)
	grad2 := make([]float64, 2)
	grad3 := make([]float64, 2)

	as := ApproxSpec{N: 2, Method: Forward, Object: objV2}
	if err := as.Diff(x0, grad2); err != nil {
		t.Fatal("approx vector failed", err)
	}
	as = ApproxSpec{N: 2, Method: Central, Object: objV2}
	if err := as.Diff(x0, grad3); err != nil {
		t.Fatal("approx vector failed", err)
	}
	if !relativeEqual(grad1, grad2, 1e-5) {
		t.Fatal("unexpected approx vector result")
	}
	if !relativeEqual(grad1, grad3, 1e-6) {
		t.Fatal("unexpected approx vector result")
	}
}

func TestAccuracy(t *testing.T) {

	checkDerivative := func(
		x0 []float64,
		fun func(x []float64) float64,
		grad func(x []float64) []float64) float64 {

		gradTest := grad(x0)
		gradDiff := make([]float64, len(x0))

		approx := ApproxSpec{N: len(x0), Method: Central, Object: fun}
		if err := approx.Diff(x0, gradDiff); err != nil {
			panic(err)
		}

		maxErr := 0.0
		for i := range gradDiff {
			absErr := math.Abs(gradTest[i] - gradDiff[i])
			absErr /= math.Max(1, math.Abs(gradDiff[i]))
			maxErr = math.Max(maxErr, absErr)
		}
		return maxErr
	}

	if acc := checkDerivative([]float64{-10.0, 10}, objV2, gradV2); acc > 1e-9 {
		t.Fatal("approx accuracy not enough")
	}
	if acc := checkDerivative([]float64{0, 0}, objZero, gradZero); acc > 0 {
		t.Fatal("approx accuracy not enough")
	}
}

func TestGradient(t *testing.T) {
	f := func(x []float64) float64 {
		return 0.5*x[0]*x[0] + 3*x[0]*x[1] + math.Exp(x[1])
	}
	x0 := []float64{1.5, 0.5}
	want := []float64{x0[0] + 3*x0[1], 3*x0[0] + math.Exp(x0[1])}

	for _, method := range []Method{Forward, Central} {
		g := make([]float64, 2)
		if err := Gradient(f, x0, g, method); err != nil {
			t.Fatal(method, err)
		}
		if !relativeEqual(g, want, 1e-6) {
			t.Fatalf("%v gradient %v, want %v", method, g, want)
		}
	}

	if err := Gradient(f, x0, make([]float64, 3), Central); err == nil {
		t.Fatal("gradient dimension not checked")
	}
}

func TestGradientError(t *testing.T) {
	exact := func(x, g []float64) float64 {
		if g != nil {
			g[0] = 2 * x[0]
			g[1] = math.Cos(x[1])
		}
		return x[0]*x[0] + math.Sin(x[1])
	}
	wrong := func(x, g []float64) float64 {
		f := exact(x, g)
		if g != nil {
			g[0] *= 0.5
		}
		return f
	}
	x0 := []float64{0.7, 0.3}

	e, err := GradientError(exact, x0)
	if err != nil || e > 1e-8 {
		t.Fatalf("exact gradient reported error %v (%v)", e, err)
	}
	e, err = GradientError(wrong, x0)
	if err != nil || e < 0.1 {
		t.Fatalf("wrong gradient reported error %v (%v)", e, err)
	}
	if x0[0] != 0.7 || x0[1] != 0.3 {
		t.Fatal("x0 modified")
	}
}

func relativeEqual[T float64 | []float64](a, b T, tol float64) bool {
	equalWithinRel := func(a, b float64) bool {
		if a == b {
			return true
		}
		delta := math.Abs(a - b)
		return delta/math.Max(math.Abs(a), math.Abs(b)) <= tol
	}
	switch v := any(a).(type) {
	case float64:
		return equalWithinRel(v, any(b).(float64))
	case []float64:
		w := any(b).([]float64)
		if len(v) != len(w) {
			return false
		}
		for i := range v {
			if !equalWithinRel(v[i], w[i]) {
				return false
			}
		}
		return true
	}
	panic("unknown type")
}
