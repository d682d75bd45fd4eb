// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rlbfgs

import (
	"errors"
	"fmt"
)

var (
	// ErrNonConvergence reports a solve stopped by a limit or a stalled cost before
	// the gradient met its tolerance. The last iterate is still a manifold point.
	ErrNonConvergence = errors.New("solver did not converge")
	// ErrInfeasibleStart reports an initial point that is off the manifold.
	ErrInfeasibleStart = errors.New("initial point is not on the manifold")
	// ErrLineSearch reports a line search that could not decrease the cost.
	ErrLineSearch = errors.New("line search failed")
	// ErrEvaluation reports a cost evaluation that panicked or returned a non-finite value.
	ErrEvaluation = errors.New("cost evaluation failed")
)

// State is the state of a solve.
type State int

const (
	Initialized State = iota
	Iterating
	Converged
	Diverged
	Failed
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case Iterating:
		return "ITERATING"
	case Converged:
		return "CONVERGED"
	case Diverged:
		return "DIVERGED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reason tells why a solve stopped.
type Reason int

const (
	iterLoop Reason = iota
	// ConvGradNorm the norm of the Riemannian gradient dropped below tolerance.
	ConvGradNorm
	// OverIterLimit the number of iterations reached the limit.
	OverIterLimit
	// OverEvalLimit the number of cost evaluations reached the limit.
	OverEvalLimit
	// OverTimeLimit the elapsed time reached the limit.
	OverTimeLimit
	// StopCostStall the relative reduction of the cost stayed below tolerance
	// while the Riemannian gradient did not.
	StopCostStall
	// StopAbnormalSearch the line search could not decrease the cost along steepest descent.
	StopAbnormalSearch
	// StopRetraction the retraction repeatedly failed to converge.
	StopRetraction
	// HaltEvalError the cost function panicked or returned a non-finite value.
	HaltEvalError
	// HaltBadInput the problem or the initial point is malformed.
	HaltBadInput
)

// State maps the reason to the terminal state of the solve.
func (r Reason) State() State {
	switch r {
	case iterLoop:
		return Iterating
	case ConvGradNorm, OverIterLimit, OverEvalLimit, OverTimeLimit, StopCostStall:
		return Converged
	case StopAbnormalSearch, StopRetraction:
		return Diverged
	default:
		return Failed
	}
}

// Message returns the termination message printed in reports.
func (r Reason) Message() string {
	switch r {
	case ConvGradNorm:
		return "CONVERGENCE: NORM_OF_RIEMANNIAN_GRADIENT_<=_GTOL"
	case OverIterLimit:
		return "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case OverEvalLimit:
		return "STOP: TOTAL NO. of f AND g EVALUATIONS EXCEEDS LIMIT"
	case OverTimeLimit:
		return "STOP: TIME EXCEEDING THE LIMIT"
	case StopCostStall:
		return "STOP: REL_REDUCTION_OF_F_<=_FTOL WITH NORM_OF_RIEMANNIAN_GRADIENT_>_GTOL"
	case StopAbnormalSearch:
		return "ABNORMAL_TERMINATION_IN_LNSRCH"
	case StopRetraction:
		return "ABNORMAL_TERMINATION_IN_RETRACTION"
	case HaltEvalError:
		return "STOP: COST EVALUATION FAILED"
	case HaltBadInput:
		return "STOP: INVALID INPUT"
	default:
		return "UNKNOWN TASK"
	}
}

func (r Reason) String() string { return r.Message() }

// errInfo is the outcome of one step of the driver.
type errInfo int

const (
	ok errInfo = iota
	errDerivative
	errLineSearchFailed
	errRetraction
	errEvaluation
	warnRestartLoop
)
