// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hybrd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackIdx(t *testing.T) {
	// n=4 packed row-major upper triangular: row 0 occupies slots
	// 0..3, row 1 occupies 4..6, row 2 occupies 7..8, row 3 occupies 9.
	n := 4
	require.Equal(t, 0, packIdx(n, 0, 0))
	require.Equal(t, 1, packIdx(n, 0, 1))
	require.Equal(t, 3, packIdx(n, 0, 3))
	require.Equal(t, 4, packIdx(n, 1, 1))
	require.Equal(t, 6, packIdx(n, 1, 3))
	require.Equal(t, 7, packIdx(n, 2, 2))
	require.Equal(t, 8, packIdx(n, 2, 3))
	require.Equal(t, 9, packIdx(n, 3, 3))
}

func TestEnorm(t *testing.T) {
	require.InDelta(t, 5.0, enorm([]float64{3, 4}), 1e-12)
	require.InDelta(t, 0.0, enorm([]float64{0, 0, 0}), 1e-12)
	require.InDelta(t, 1.0, enorm([]float64{1}), 1e-12)
}

// matMul multiplies row-major a (r×k) by row-major b (k×c).
func matMul(a []float64, r, k int, b []float64, c int) []float64 {
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			var sum float64
			for l := 0; l < k; l++ {
				sum += a[i*k+l] * b[l*c+j]
			}
			out[i*c+j] = sum
		}
	}
	return out
}

func requireMatClose(t *testing.T, want, got []float64, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], tol)
	}
}

func TestQrfacQformReconstructsA(t *testing.T) {
	n := 3
	a := []float64{
		4, 1, 2,
		1, 3, 0,
		2, 0, 5,
	}
	orig := append([]float64(nil), a...)

	rdiag := make([]float64, n)
	acnorm := make([]float64, n)
	wa := make([]float64, n)
	qrfac(n, a, rdiag, acnorm, wa)

	// Assemble R from the mutated a's strict upper triangle plus rdiag.
	r := make([]float64, n*n)
	for i := 0; i < n; i++ {
		r[i*n+i] = rdiag[i]
		for j := i + 1; j < n; j++ {
			r[i*n+j] = a[i*n+j]
		}
	}

	q := append([]float64(nil), a...)
	qform(n, q, wa)

	// Q should be orthogonal: QᵀQ = I.
	qt := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			qt[j*n+i] = q[i*n+j]
		}
	}
	ident := matMul(qt, n, n, q, n)
	want := make([]float64, n*n)
	for i := 0; i < n; i++ {
		want[i*n+i] = 1
	}
	requireMatClose(t, want, ident, 1e-9)

	// Q·R should reconstruct the original matrix.
	qr := matMul(q, n, n, r, n)
	requireMatClose(t, orig, qr, 1e-9)
}

func TestSolveUpperPacked(t *testing.T) {
	n := 3
	// R = [[2,1,1],[0,3,1],[0,0,4]], solve R x = b.
	r := []float64{2, 1, 1, 3, 1, 4}
	b := []float64{7, 10, 8}
	x := make([]float64, n)
	solveUpperPacked(n, r, b, x)

	// x3 = 8/4 = 2; x2 = (10 - 1*2)/3 = 8/3; x1 = (7 - 1*8/3 - 1*2)/2
	x3 := 2.0
	x2 := (10 - 1*x3) / 3
	x1 := (7 - 1*x2 - 1*x3) / 2
	require.InDelta(t, x1, x[0], 1e-9)
	require.InDelta(t, x2, x[1], 1e-9)
	require.InDelta(t, x3, x[2], 1e-9)
}

func TestDoglegWithinTrustRegion(t *testing.T) {
	n := 2
	r := []float64{2, 1, 3} // R = [[2,1],[0,3]]
	diag := []float64{1, 1}
	qtb := []float64{5, 6}
	delta := 0.5 // small enough that the Gauss-Newton step overshoots

	x := make([]float64, n)
	wa1 := make([]float64, n)
	wa2 := make([]float64, n)
	dogleg(n, r, diag, qtb, delta, x, wa1, wa2)

	scaled := make([]float64, n)
	for i := range scaled {
		scaled[i] = diag[i] * x[i]
	}
	require.LessOrEqual(t, enorm(scaled), delta+1e-9)
}

func TestDoglegReturnsGaussNewtonWhenInsideTrustRegion(t *testing.T) {
	n := 2
	r := []float64{2, 1, 3}
	diag := []float64{1, 1}
	qtb := []float64{5, 6}

	gn := make([]float64, n)
	solveUpperPacked(n, r, qtb, gn)
	scaled := make([]float64, n)
	for i := range scaled {
		scaled[i] = diag[i] * gn[i]
	}
	delta := enorm(scaled) * 10 // generous trust region

	x := make([]float64, n)
	wa1 := make([]float64, n)
	wa2 := make([]float64, n)
	dogleg(n, r, diag, qtb, delta, x, wa1, wa2)

	requireMatClose(t, gn, x, 1e-9)
}

// TestR1updtR1mpyqRankOneUpdate checks the joint QR rank-one update
// against the defining identity Q_new·R_new = Q_old·R_old + v_orig·uᵀ,
// with Q_old fixed to the identity so Q_old·R_old = R_old.
func TestR1updtR1mpyqRankOneUpdate(t *testing.T) {
	n := 3
	r := []float64{2, 1, 1, 3, 1, 4} // R_old = [[2,1,1],[0,3,1],[0,0,4]]
	rOldFull := []float64{
		2, 1, 1,
		0, 3, 1,
		0, 0, 4,
	}
	u := []float64{1, 0.5, -1}
	v := []float64{0.2, -0.3, 0.4}
	vOrig := append([]float64(nil), v...)

	want := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want[i*n+j] = rOldFull[i*n+j] + vOrig[i]*u[j]
		}
	}

	w := make([]float64, n)
	r1updt(n, r, u, v, w)

	rNewFull := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rNewFull[i*n+j] = r[packIdx(n, i, j)]
		}
	}

	q := make([]float64, n*n)
	for i := 0; i < n; i++ {
		q[i*n+i] = 1
	}
	r1mpyq(n, n, q, n, v, w)

	got := matMul(q, n, n, rNewFull, n)
	requireMatClose(t, want, got, 1e-9)
}
