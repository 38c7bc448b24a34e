// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hybrd

import (
	"math"

	"github.com/curioloop/hybrd/numdiff"
)

// iterDriver runs the outer/inner loop of the hybrid method for one
// call to Fit.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	x         []float64
}

// evaluate calls F(x) into fvec, bumping NFev and translating a
// negative callback return into UserAsked.
func (d *iterDriver) evaluate(x, fvec []float64) (status Status, stop bool) {
	w := d.workspace
	flag := d.optimizer.f(x, fvec)
	w.NFev++
	if flag < 0 {
		return UserAsked, true
	}
	return running, false
}

// jacobian refreshes Fjac at x, either by calling the analytic
// callback or by approximating it with a forward-difference sweep.
func (d *iterDriver) jacobian(x, fvec []float64) (status Status, stop bool) {
	o, w := d.optimizer, d.workspace
	if !o.numeric {
		if flag := o.df(x, w.Fjac); flag < 0 {
			return UserAsked, true
		}
		w.NJev++
		return running, false
	}
	b := numdiff.Banded{N: o.n, Sub: o.stop.BandSub, Super: o.stop.BandSuper, Epsfcn: o.stop.Epsfcn, Object: o.f}
	nfev, aborted := b.Jacobian(x, fvec, w.Fjac, w.wa1, w.wa2)
	w.NFev += nfev
	if aborted {
		return UserAsked, true
	}
	return running, false
}

// mainLoop runs the full outer/inner loop and returns the final Status.
func (d *iterDriver) mainLoop() Status {

	o, w, x := d.optimizer, d.workspace, d.x
	log := o.logger
	n := o.n
	xtol, maxfev, factor := o.stop.XTol, o.stop.MaxFunEvals, o.stop.Factor

	if log.enable(LogLast) {
		log.log("RUNNING THE HYBRID POWELL METHOD\n")
		log.log("N = %d\n", n)
	}

	w.NFev, w.NJev = 0, 0
	if status, stop := d.evaluate(x, w.Fvec); stop {
		return status
	}
	fnorm := enorm(w.Fvec)

	w.Iter = 1
	w.Ncsuc, w.Ncfail = 0, 0
	w.Nslow1, w.Nslow2 = 0, 0

	var xnorm, delta float64

	for {
		jeval := true

		if status, stop := d.jacobian(x, w.Fvec); stop {
			return status
		}

		qrfac(n, w.Fjac, w.wa1, w.wa2, w.wa3)
		w.Sing = false
		for j := 0; j < n; j++ {
			for i := 0; i < j; i++ {
				w.R[packIdx(n, i, j)] = w.Fjac[i*n+j]
			}
			w.R[packIdx(n, j, j)] = w.wa1[j]
			if w.wa1[j] == 0 {
				w.Sing = true
			}
		}

		if w.Iter == 1 {
			if o.stop.Mode == ModeAuto {
				for j := 0; j < n; j++ {
					w.Diag[j] = w.wa2[j]
					if w.Diag[j] == 0 {
						w.Diag[j] = 1
					}
				}
			}
			for j := 0; j < n; j++ {
				w.wa3[j] = w.Diag[j] * x[j]
			}
			xnorm = enorm(w.wa3)
			delta = factor * xnorm
			if delta == 0 {
				delta = factor
			}
		}

		qform(n, w.Fjac, w.wa1)

		for i := 0; i < n; i++ {
			w.Qtf[i] = 0
		}
		for k := 0; k < n; k++ {
			fk := w.Fvec[k]
			for i := 0; i < n; i++ {
				w.Qtf[i] += w.Fjac[k*n+i] * fk
			}
		}

		if o.stop.Mode == ModeAuto {
			for j := 0; j < n; j++ {
				w.Diag[j] = math.Max(w.Diag[j], w.wa2[j])
			}
		}

		for {
			if log.enable(LogEval) {
				log.log("ITERATION %5d    nfev= %5d    f= %12.5e    delta= %12.5e\n", w.Iter, w.NFev, fnorm, delta)
			}
			if log.enable(LogVerbose) {
				log.log("X = %v\nF = %v\n", x, w.Fvec)
			}

			dogleg(n, w.R, w.Diag, w.Qtf, delta, w.wa1, w.wa2, w.wa4)

			for j := 0; j < n; j++ {
				w.wa1[j] = -w.wa1[j]
				w.wa2[j] = x[j] + w.wa1[j]
				w.wa4[j] = w.Diag[j] * w.wa1[j]
			}
			pnorm := enorm(w.wa4)

			if w.Iter == 1 {
				delta = math.Min(delta, pnorm)
			}

			if status, stop := d.evaluate(w.wa2, w.wa3); stop {
				return status
			}
			fnorm1 := enorm(w.wa3)

			actred := -one
			if fnorm1 < fnorm {
				actred = one - (fnorm1/fnorm)*(fnorm1/fnorm)
			}

			for i := 0; i < n; i++ {
				sum := zero
				for j := i; j < n; j++ {
					sum += w.R[packIdx(n, i, j)] * w.wa1[j]
				}
				w.wa5[i] = w.Qtf[i] + sum
			}
			temp := enorm(w.wa5)
			prered := zero
			if temp < fnorm {
				prered = one - (temp/fnorm)*(temp/fnorm)
			}

			ratio := zero
			if prered > 0 {
				ratio = actred / prered
			}

			if ratio < p1 {
				w.Ncsuc = 0
				w.Ncfail++
				delta = p5 * delta
			} else {
				w.Ncfail = 0
				w.Ncsuc++
				if ratio >= p5 || w.Ncsuc > 1 {
					delta = math.Max(delta, pnorm/p5)
				}
				if math.Abs(ratio-one) <= p1 {
					delta = pnorm / p5
				}
			}

			if ratio >= p0001 {
				copy(x, w.wa2)
				for j := 0; j < n; j++ {
					w.wa2[j] = w.Diag[j] * x[j]
				}
				copy(w.Fvec, w.wa3)
				xnorm = enorm(w.wa2)
				fnorm = fnorm1
				w.Iter++
			}

			w.Nslow1++
			if actred >= p001 {
				w.Nslow1 = 0
			}
			if jeval {
				w.Nslow2++
			}
			if actred >= p1 {
				w.Nslow2 = 0
			}

			status := running
			switch {
			case delta <= xtol*xnorm || fnorm == zero:
				status = RelativeErrorTooSmall
			case w.NFev >= maxfev:
				status = TooManyFunctionEvaluations
			case p1*math.Max(p1*delta, pnorm) <= epsmch*xnorm:
				status = TolTooSmall
			case w.Nslow2 == 5:
				status = NotMakingProgressJacobian
			case w.Nslow1 == 10:
				status = NotMakingProgressIterations
			}
			if status != running {
				if log.enable(LogLast) {
					log.log("\nEXIT: %s\n", status)
				}
				return status
			}

			jeval = false
			if w.Ncfail == 2 {
				break // recompute the Jacobian from scratch
			}

			for j := 0; j < n; j++ {
				sum := zero
				for i := 0; i < n; i++ {
					sum += w.Fjac[i*n+j] * w.wa3[i]
				}
				w.wa2[j] = (sum - w.wa5[j]) / pnorm
				w.wa1[j] = w.Diag[j] * ((w.Diag[j] * w.wa1[j]) / pnorm)
				if ratio >= p0001 {
					w.Qtf[j] = sum
				}
			}

			w.Sing = r1updt(n, w.R, w.wa1, w.wa2, w.wa4)
			r1mpyq(n, n, w.Fjac, n, w.wa2, w.wa4)
			r1mpyq(1, n, w.Qtf, n, w.wa2, w.wa4)
		}
	}
}
