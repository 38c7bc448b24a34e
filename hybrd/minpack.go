// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hybrd

import "math"

// enorm computes the Euclidean norm of x, scaling the accumulation
// into three separate sums (small, mid, large magnitude components)
// so that squaring never over/underflows.
func enorm(x []float64) float64 {
	return enormAt(len(x), func(i int) float64 { return x[i] })
}

// enormAt is enorm generalized over an indexed accessor, so that a
// strided view (a matrix column, say) does not need to be copied
// into a contiguous slice first.
func enormAt(n int, at func(int) float64) float64 {
	const (
		rdwarf = 3.834e-20
		rgiant = 1.304e19
	)
	if n == 0 {
		return 0
	}
	var s1, s2, s3, x1max, x3max float64
	agiant := rgiant / float64(n)
	for i := 0; i < n; i++ {
		xabs := math.Abs(at(i))
		switch {
		case xabs > rdwarf && xabs < agiant:
			s2 += xabs * xabs
		case xabs <= rdwarf:
			if xabs > x3max {
				s3 = one + s3*(x3max/xabs)*(x3max/xabs)
				x3max = xabs
			} else if xabs != 0 {
				s3 += (xabs / x3max) * (xabs / x3max)
			}
		default:
			if xabs > x1max {
				s1 = one + s1*(x1max/xabs)*(x1max/xabs)
				x1max = xabs
			} else {
				s1 += (xabs / x1max) * (xabs / x1max)
			}
		}
	}
	switch {
	case s1 != 0:
		return x1max * math.Sqrt(s1+(s2/x1max)/x1max)
	case s2 != 0:
		if s2 >= x3max {
			return math.Sqrt(s2 * (one + (x3max/s2)*(x3max*s3)))
		}
		return math.Sqrt(x3max * ((s2 / x3max) + (x3max * s3)))
	default:
		return x3max * math.Sqrt(s3)
	}
}

// colNorm returns the Euclidean norm of column col of the n×n
// row-major matrix a, taking only rows [from,n).
func colNorm(n int, a []float64, col, from int) float64 {
	return enormAt(n-from, func(k int) float64 { return a[(from+k)*n+col] })
}

// Subroutine qrfac
//
// This function computes a QR factorization of the n×n matrix a
// using Householder transformations without column pivoting. On
// return a's lower triangle, diagonal included, holds the
// Householder vectors, a's strict upper triangle holds the
// non-diagonal entries of R, rdiag holds the diagonal of R and
// acnorm holds the original column norms of a. wa is scratch of
// length n.
func qrfac(n int, a []float64, rdiag, acnorm, wa []float64) {
	for j := 0; j < n; j++ {
		acnorm[j] = colNorm(n, a, j, 0)
		rdiag[j] = acnorm[j]
		wa[j] = rdiag[j]
	}
	for j := 0; j < n; j++ {
		ajnorm := colNorm(n, a, j, j)
		if ajnorm != 0 {
			if a[j*n+j] < 0 {
				ajnorm = -ajnorm
			}
			for i := j; i < n; i++ {
				a[i*n+j] /= ajnorm
			}
			a[j*n+j] += one
			for k := j + 1; k < n; k++ {
				sum := zero
				for i := j; i < n; i++ {
					sum += a[i*n+j] * a[i*n+k]
				}
				temp := sum / a[j*n+j]
				for i := j; i < n; i++ {
					a[i*n+k] -= temp * a[i*n+j]
				}
				if rdiag[k] != 0 {
					temp = a[j*n+k] / rdiag[k]
					rdiag[k] *= math.Sqrt(math.Max(zero, one-temp*temp))
					if 0.05*(rdiag[k]/wa[k])*(rdiag[k]/wa[k]) <= epsmch {
						rdiag[k] = colNorm(n, a, k, j+1)
						wa[k] = rdiag[k]
					}
				}
			}
		}
		rdiag[j] = -ajnorm
	}
}

// Subroutine qform
//
// Expands the Householder vectors left by qrfac in the lower
// triangle of a (n×n, row-major) into the explicit orthogonal
// factor Q, overwriting a. wa is scratch of length n.
func qform(n int, a, wa []float64) {
	for j := 1; j < n; j++ {
		for i := 0; i < j; i++ {
			a[i*n+j] = 0
		}
	}
	for k := n - 1; k >= 0; k-- {
		for i := k; i < n; i++ {
			wa[i] = a[i*n+k]
			a[i*n+k] = 0
		}
		a[k*n+k] = one
		if wa[k] != 0 {
			for j := k; j < n; j++ {
				sum := zero
				for i := k; i < n; i++ {
					sum += a[i*n+j] * wa[i]
				}
				temp := sum / wa[k]
				for i := k; i < n; i++ {
					a[i*n+j] -= temp * wa[i]
				}
			}
		}
	}
}

// Subroutine r1updt
//
// Given the packed upper triangular R (length n(n+1)/2, see packIdx)
// and vectors u, v of length n, recomputes the QR factorization of
// R + v·uᵀ in place: R is overwritten with the new packed factor,
// and v, w are overwritten with the tau-encoded Givens rotations
// that r1mpyq later replays against Q and qtf. Reports whether the
// updated R has a zero diagonal entry.
func r1updt(n int, r []float64, u, v, w []float64) (sing bool) {
	const giant = math.MaxFloat64

	w[n-1] = r[packIdx(n, n-1, n-1)]
	for j := n - 2; j >= 0; j-- {
		w[j] = 0
		if v[j] == 0 {
			continue
		}
		var cosT, sinT, tau float64
		if math.Abs(v[n-1]) < math.Abs(v[j]) {
			cotan := v[n-1] / v[j]
			sinT = p5 / math.Sqrt(p25+p25*cotan*cotan)
			cosT = sinT * cotan
			tau = one
			if math.Abs(cosT)*giant > one {
				tau = one / cosT
			}
		} else {
			tanT := v[j] / v[n-1]
			cosT = p5 / math.Sqrt(p25+p25*tanT*tanT)
			sinT = cosT * tanT
			tau = sinT
		}
		v[n-1] = sinT*v[j] + cosT*v[n-1]
		v[j] = tau
		for i := j; i < n; i++ {
			idx := packIdx(n, j, i)
			temp := cosT*r[idx] - sinT*w[i]
			w[i] = sinT*r[idx] + cosT*w[i]
			r[idx] = temp
		}
	}

	for i := range w {
		w[i] += v[n-1] * u[i]
	}

	sing = false
	for j := 0; j < n-1; j++ {
		if w[j] != 0 {
			dj := r[packIdx(n, j, j)]
			var cosT, sinT, tau float64
			if math.Abs(dj) < math.Abs(w[j]) {
				cotan := dj / w[j]
				sinT = p5 / math.Sqrt(p25+p25*cotan*cotan)
				cosT = sinT * cotan
				tau = one
				if math.Abs(cosT)*giant > one {
					tau = one / cosT
				}
			} else {
				tanT := w[j] / dj
				cosT = p5 / math.Sqrt(p25+p25*tanT*tanT)
				sinT = cosT * tanT
				tau = sinT
			}
			for i := j; i < n; i++ {
				idx := packIdx(n, j, i)
				temp := cosT*r[idx] + sinT*w[i]
				w[i] = -sinT*r[idx] + cosT*w[i]
				r[idx] = temp
			}
			w[j] = tau
		}
		if r[packIdx(n, j, j)] == 0 {
			sing = true
		}
	}
	r[packIdx(n, n-1, n-1)] = w[n-1]
	if w[n-1] == 0 {
		sing = true
	}
	return sing
}

// Subroutine r1mpyq
//
// Applies to the m×n row-major matrix a (leading dimension lda) the
// 2(n-1) Givens rotations encoded in v and w by r1updt, computing
// a·Q in place.
func r1mpyq(m, n int, a []float64, lda int, v, w []float64) {
	for j := n - 2; j >= 0; j-- {
		vj := v[j]
		var cosT, sinT float64
		if math.Abs(vj) > one {
			cosT = one / vj
			sinT = math.Sqrt(one - cosT*cosT)
		} else {
			sinT = vj
			cosT = math.Sqrt(one - sinT*sinT)
		}
		for i := 0; i < m; i++ {
			aij, ain := a[i*lda+j], a[i*lda+n-1]
			a[i*lda+n-1] = sinT*aij + cosT*ain
			a[i*lda+j] = cosT*aij - sinT*ain
		}
	}
	for j := 0; j < n-1; j++ {
		wj := w[j]
		var cosT, sinT float64
		if math.Abs(wj) > one {
			cosT = one / wj
			sinT = math.Sqrt(one - cosT*cosT)
		} else {
			sinT = wj
			cosT = math.Sqrt(one - sinT*sinT)
		}
		for i := 0; i < m; i++ {
			aij, ain := a[i*lda+j], a[i*lda+n-1]
			a[i*lda+n-1] = -sinT*aij + cosT*ain
			a[i*lda+j] = cosT*aij + sinT*ain
		}
	}
}

// Subroutine dogleg
//
// Finds the point x minimizing the local quadratic model along the
// dogleg path between the Gauss-Newton step (solving Rx = qtb) and
// the scaled steepest-descent step, constrained to the trust region
// ‖diag·x‖ ≤ delta. wa1, wa2 are scratch of length n.
func dogleg(n int, r []float64, diag, qtb []float64, delta float64, x, wa1, wa2 []float64) {

	solveUpperPacked(n, r, qtb, x)

	for j := 0; j < n; j++ {
		wa1[j] = 0
		wa2[j] = diag[j] * x[j]
	}
	qnorm := enorm(wa2)
	if qnorm <= delta {
		return
	}

	// scaled gradient direction wa1 = Rᵀqtb / diag
	for j := 0; j < n; j++ {
		temp := qtb[j]
		for i := j; i < n; i++ {
			wa1[i] += r[packIdx(n, j, i)] * temp
		}
	}
	for j := 0; j < n; j++ {
		wa1[j] /= diag[j]
	}

	gnorm := enorm(wa1)
	sgnorm := zero
	alpha := delta / qnorm
	if gnorm != 0 {
		for j := 0; j < n; j++ {
			wa1[j] = (wa1[j] / gnorm) / diag[j]
		}
		for j := 0; j < n; j++ {
			sum := zero
			for i := j; i < n; i++ {
				sum += r[packIdx(n, j, i)] * wa1[i]
			}
			wa2[j] = sum
		}
		temp := enorm(wa2)
		sgnorm = (gnorm / temp) / temp

		alpha = zero
		if sgnorm < delta {
			bnorm := enorm(qtb)
			temp = (bnorm / gnorm) * (bnorm / qnorm) * (sgnorm / delta)
			disc := (temp-(delta/qnorm))*(temp-(delta/qnorm)) +
				(one-(delta/qnorm)*(delta/qnorm))*(one-(sgnorm/delta)*(sgnorm/delta))
			temp = temp - (delta/qnorm)*(sgnorm/delta)*(sgnorm/delta) + math.Sqrt(disc)
			alpha = ((delta / qnorm) * (one - (sgnorm/delta)*(sgnorm/delta))) / temp
		}
	}

	temp := (one - alpha) * math.Min(sgnorm, delta)
	for j := 0; j < n; j++ {
		x[j] = temp*wa1[j] + alpha*x[j]
	}
}

// solveUpperPacked solves R·x = b by back substitution, where R is
// the n×n packed upper triangular matrix produced by qrfac. A
// diagonal entry that underflowed to zero is replaced with the
// largest magnitude in its column scaled by epsmch, matching the
// singular-Jacobian fallback used by the original dogleg routine.
func solveUpperPacked(n int, r, b, x []float64) {
	for j := n - 1; j >= 0; j-- {
		sum := zero
		for i := j + 1; i < n; i++ {
			sum += r[packIdx(n, j, i)] * x[i]
		}
		diagEntry := r[packIdx(n, j, j)]
		if diagEntry == 0 {
			var maxCol float64
			for i := 0; i <= j; i++ {
				maxCol = math.Max(maxCol, math.Abs(r[packIdx(n, i, j)]))
			}
			diagEntry = epsmch * maxCol
			if diagEntry == 0 {
				diagEntry = epsmch
			}
		}
		x[j] = (b[j] - sum) / diagEntry
	}
}
