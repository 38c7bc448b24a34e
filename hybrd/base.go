// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hybrd solves systems of n nonlinear equations in n unknowns,
// F(x) = 0, using a modification of Powell's hybrid method: a
// trust-region iteration that blends the Gauss-Newton step computed
// from a QR-factored Jacobian with the steepest-descent step, and
// keeps the Jacobian current between full re-evaluations with a
// Broyden rank-one update carried through the packed QR factors.
package hybrd

import "math"

const (
	zero  = 0.0
	one   = 1.0
	two   = 2.0
	p1    = 0.1
	p5    = 0.5
	p25   = 0.25
	p001  = 0.001
	p0001 = 0.0001
)

// epsmch is the machine epsilon used throughout the driver for
// singularity fallbacks and the default tolerance.
var epsmch = math.Nextafter(1, 2) - 1

// Diag scaling modes for Termination.Mode.
const (
	// ModeAuto lets the driver grow diag from the column norms of the
	// Jacobian at the first iteration and re-grow it whenever a column
	// norm increases (mode = 1 in the original Fortran).
	ModeAuto = 1
	// ModeFixed uses the caller-supplied Problem.Diag unchanged for the
	// whole run (mode = 2 in the original Fortran).
	ModeFixed = 2
)

// Status reports why the driver stopped iterating.
type Status int

const (
	running                   Status = iota - 1 // -1: driver has not finished yet
	ImproperInputParameters                     // 0
	RelativeErrorTooSmall                       // 1: success, trust radius within xtol·‖diag·x‖, or F(x) = 0
	TooManyFunctionEvaluations                  // 2
	TolTooSmall                                 // 3: xtol too small to make further progress
	NotMakingProgressJacobian                   // 4: five successive Jacobian re-evaluations, no improvement
	NotMakingProgressIterations                 // 5: ten successive iterations, no improvement
	UserAsked                                   // 6: the evaluation callback asked to stop
)

func (s Status) String() string {
	switch s {
	case ImproperInputParameters:
		return "improper input parameters"
	case RelativeErrorTooSmall:
		return "relative error is at most the requested tolerance"
	case TooManyFunctionEvaluations:
		return "number of function evaluations exceeded the limit"
	case TolTooSmall:
		return "xtol is too small, no further improvement is possible"
	case NotMakingProgressJacobian:
		return "iteration is not making progress after re-evaluating the Jacobian"
	case NotMakingProgressIterations:
		return "iteration is not making progress on function reduction"
	case UserAsked:
		return "evaluation callback requested a stop"
	default:
		return "running"
	}
}

// packIdx returns the offset of R(row,col) (row<=col) in a packed
// n×n upper triangular matrix stored row by row: row 0 occupies the
// first n slots, row 1 the next n-1 slots, and so on.
func packIdx(n, row, col int) int {
	return row*n - row*(row-1)/2 + (col - row)
}
