// Package benchmarks collects the classic MINPACK test systems used
// to exercise hybrd: small nonlinear systems F(x) = 0 with a known
// root and a standard starting point, each shared between the
// hybrd test suite and the CLI.
package benchmarks

import "math"

// Problem names a benchmark system: its dimension, a starting point
// away from the root, the root itself (for test comparison), F, and
// the analytic Jacobian (row-major, n*n).
type Problem struct {
	Name  string
	N     int
	Start []float64
	Root  []float64
	F     func(x, fvec []float64) int
	DF    func(x, jac []float64) int
}

// All returns every benchmark problem.
func All() []Problem {
	return []Problem{Rosenbrock(), PowellSingular(), HelicalValley(), Chebyquad()}
}

// Rosenbrock poses the minimizer of the Rosenbrock banana function
// as a 2-equation root-finding problem: F(x) = 0 iff x is the unique
// stationary point (1,1).
func Rosenbrock() Problem {
	return Problem{
		Name:  "rosenbrock",
		N:     2,
		Start: []float64{-1.2, 1},
		Root:  []float64{1, 1},
		F: func(x, fvec []float64) int {
			fvec[0] = 10 * (x[1] - x[0]*x[0])
			fvec[1] = 1 - x[0]
			return 0
		},
		DF: func(x, jac []float64) int {
			jac[0*2+0] = -20 * x[0]
			jac[0*2+1] = 10
			jac[1*2+0] = -1
			jac[1*2+1] = 0
			return 0
		},
	}
}

// PowellSingular is Powell's singular function: its Jacobian is
// exactly singular at the root, making it a standard stress test
// for the Broyden update and the trust-region fallback.
func PowellSingular() Problem {
	sqrt5 := math.Sqrt(5)
	sqrt10 := math.Sqrt(10)
	return Problem{
		Name:  "powell-singular",
		N:     4,
		Start: []float64{3, -1, 0, 1},
		Root:  []float64{0, 0, 0, 0},
		F: func(x, fvec []float64) int {
			fvec[0] = x[0] + 10*x[1]
			fvec[1] = sqrt5 * (x[2] - x[3])
			fvec[2] = (x[1] - 2*x[2]) * (x[1] - 2*x[2])
			fvec[3] = sqrt10 * (x[0] - x[3]) * (x[0] - x[3])
			return 0
		},
		DF: func(x, jac []float64) int {
			n := 4
			for i := range jac {
				jac[i] = 0
			}
			jac[0*n+0], jac[0*n+1] = 1, 10
			jac[1*n+2], jac[1*n+3] = sqrt5, -sqrt5
			d23 := x[1] - 2*x[2]
			jac[2*n+1], jac[2*n+2] = 2*d23, -4*d23
			d03 := x[0] - x[3]
			jac[3*n+0], jac[3*n+3] = 2*sqrt10*d03, -2*sqrt10*d03
			return 0
		},
	}
}

// HelicalValley winds a valley floor around the x3 axis; the
// discontinuous theta() term makes it a classic check that the
// trust region can recover from a bad initial Jacobian.
func HelicalValley() Problem {
	theta := func(x1, x2 float64) float64 {
		const twoPi = 2 * math.Pi
		switch {
		case x1 > 0:
			return math.Atan(x2/x1) / twoPi
		case x1 < 0:
			return math.Atan(x2/x1)/twoPi + 0.5
		default:
			if x2 >= 0 {
				return 0.25
			}
			return -0.25
		}
	}
	return Problem{
		Name:  "helical-valley",
		N:     3,
		Start: []float64{-1, 0, 0},
		Root:  []float64{1, 0, 0},
		F: func(x, fvec []float64) int {
			fvec[0] = 10 * (x[2] - 10*theta(x[0], x[1]))
			fvec[1] = 10 * (math.Sqrt(x[0]*x[0]+x[1]*x[1]) - 1)
			fvec[2] = x[2]
			return 0
		},
		DF: func(x, jac []float64) int {
			n := 3
			r2 := x[0]*x[0] + x[1]*x[1]
			const twoPi = 2 * math.Pi
			dThetaDx1 := -x[1] / (twoPi * r2)
			dThetaDx2 := x[0] / (twoPi * r2)
			jac[0*n+0] = -100 * dThetaDx1
			jac[0*n+1] = -100 * dThetaDx2
			jac[0*n+2] = 10
			r := math.Sqrt(r2)
			jac[1*n+0] = 10 * x[0] / r
			jac[1*n+1] = 10 * x[1] / r
			jac[1*n+2] = 0
			jac[2*n+0] = 0
			jac[2*n+1] = 0
			jac[2*n+2] = 1
			return 0
		},
	}
}

// Chebyquad is the classic n=7 discrete Chebyshev-moment system: each
// equation matches the average of a shifted Chebyshev polynomial over
// the sample points x to that polynomial's integral over [0,1]. There
// is no unique closed-form root to compare against, only a residual
// that should vanish; F and DF follow MINPACK's vecfcn/errjac
// recurrences for the polynomials and their derivatives rather than
// evaluating T_k(x) directly at each point, to keep both in lockstep.
func Chebyquad() Problem {
	n := 7
	start := make([]float64, n)
	for j := range start {
		start[j] = float64(j+1) / float64(n+1)
	}
	return Problem{
		Name:  "chebyquad",
		N:     n,
		Start: start,
		F: func(x, fvec []float64) int {
			for i := range fvec {
				fvec[i] = 0
			}
			for j := 0; j < n; j++ {
				t1 := 1.0
				t2 := 2*x[j] - 1
				t := 2 * t2
				for i := 0; i < n; i++ {
					fvec[i] += t2
					t1, t2 = t2, t*t2-t1
				}
			}
			tk := 1.0 / float64(n)
			iev := -1
			for i := 0; i < n; i++ {
				fvec[i] *= tk
				if iev > 0 {
					fvec[i] += 1.0 / (float64(i+1)*float64(i+1) - 1)
				}
				iev = -iev
			}
			return 0
		},
		DF: func(x, jac []float64) int {
			tk := 1.0 / float64(n)
			for j := 0; j < n; j++ {
				t1 := 1.0
				t2 := 2*x[j] - 1
				t := 2 * t2
				s1 := 0.0
				s2 := 2.0
				for i := 0; i < n; i++ {
					jac[i*n+j] = tk * s2
					s1, s2 = s2, 4*t2+t*s2-s1
					t1, t2 = t2, t*t2-t1
				}
			}
			return 0
		},
	}
}
