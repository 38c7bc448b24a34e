package numdiff

import "math"

// Banded approximates the Jacobian of a square system F(x) = 0 by
// forward differences, grouping the n columns into bands of width
// Sub+Super+1 so that each group can be evaluated with a single
// call to Object when the true Jacobian is known to be banded.
// Passing Sub = Super = N-1 falls back to one perturbation per
// column, i.e. a fully dense approximation.
//
// Jacobian fills jac row-major (jac[i*N+j] = ∂Fᵢ/∂xⱼ) to match the
// convention used by the analytic Jacobian callback of the driver it
// feeds.
//
// # Reference
//
//   - MINPACK-1, fdjac1.f, Argonne National Laboratory, 1980.
type Banded struct {
	N          int
	Sub, Super int
	// Epsfcn is the assumed relative noise in Object; a value no
	// larger than machine epsilon selects sqrt(epsmch).
	Epsfcn float64
	// Object evaluates F(x) into fvec. A negative return aborts the
	// approximation early.
	Object func(x, fvec []float64) int
}

// Jacobian fills jac (length N*N, row-major) with a forward-difference
// approximation of the Jacobian at x, given the already-evaluated
// residual fvec = F(x). wa1 and wa2 are scratch of length N. It
// returns the number of additional calls made to Object, and whether
// one of them asked to abort.
func (b *Banded) Jacobian(x, fvec, jac, wa1, wa2 []float64) (nfev int, aborted bool) {

	n := b.N
	eps := math.Sqrt(math.Max(b.Epsfcn, epsmch))
	msum := b.Sub + b.Super + 1

	if msum >= n {
		for j := 0; j < n; j++ {
			temp := x[j]
			h := eps * math.Abs(temp)
			if h == 0 {
				h = eps
			}
			x[j] = temp + h
			if flag := b.Object(x, wa1); flag < 0 {
				x[j] = temp
				return nfev, true
			}
			nfev++
			x[j] = temp
			for i := 0; i < n; i++ {
				jac[i*n+j] = (wa1[i] - fvec[i]) / h
			}
		}
		return nfev, false
	}

	for k := 0; k < msum; k++ {
		for j := k; j < n; j += msum {
			wa2[j] = x[j]
			h := eps * math.Abs(wa2[j])
			if h == 0 {
				h = eps
			}
			x[j] = wa2[j] + h
		}
		if flag := b.Object(x, wa1); flag < 0 {
			for j := k; j < n; j += msum {
				x[j] = wa2[j]
			}
			return nfev, true
		}
		nfev++
		for j := k; j < n; j += msum {
			x[j] = wa2[j]
			h := eps * math.Abs(wa2[j])
			if h == 0 {
				h = eps
			}
			for i := 0; i < n; i++ {
				jac[i*n+j] = 0
				if i >= j-b.Super && i <= j+b.Sub {
					jac[i*n+j] = (wa1[i] - fvec[i]) / h
				}
			}
		}
	}
	return nfev, false
}

var epsmch = math.Nextafter(1, 2) - 1
