// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hybrd_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curioloop/hybrd/hybrd"
	"github.com/curioloop/hybrd/benchmarks"
)

func TestBenchmarkProblemsAnalytic(t *testing.T) {
	for _, bench := range benchmarks.All() {
		bench := bench
		t.Run(bench.Name, func(t *testing.T) {
			p := &hybrd.Problem{N: bench.N, F: bench.F, DF: bench.DF}
			o, err := p.New(nil)
			require.NoError(t, err)

			x := append([]float64(nil), bench.Start...)
			res := o.Fit(x, o.Init())

			require.Equal(t, hybrd.RelativeErrorTooSmall, res.Status)
			require.True(t, res.OK)
			for i := range bench.Root {
				require.InDelta(t, bench.Root[i], res.X[i], 1e-4)
			}
			require.InDelta(t, 0, enormOf(res.Fvec), 1e-6)
		})
	}
}

func TestBenchmarkProblemsNumerical(t *testing.T) {
	for _, bench := range benchmarks.All() {
		bench := bench
		t.Run(bench.Name, func(t *testing.T) {
			p := &hybrd.Problem{N: bench.N, F: bench.F}
			o, err := p.NewNumerical(nil)
			require.NoError(t, err)

			x := append([]float64(nil), bench.Start...)
			res := o.Fit(x, o.Init())

			require.Equal(t, hybrd.RelativeErrorTooSmall, res.Status)
			for i := range bench.Root {
				require.InDelta(t, bench.Root[i], res.X[i], 1e-3)
			}
			require.InDelta(t, 0, enormOf(res.Fvec), 1e-5)
		})
	}
}

// Analytic and numeric-difference variants should end with residual
// norms that agree to within 1e-6 on Rosenbrock, even though the
// numeric Jacobian only approximates the true one.
func TestAnalyticMatchesNumerical(t *testing.T) {
	bench := benchmarks.Rosenbrock()

	pa := &hybrd.Problem{N: bench.N, F: bench.F, DF: bench.DF}
	oa, err := pa.New(nil)
	require.NoError(t, err)
	xa := append([]float64(nil), bench.Start...)
	ra := oa.Fit(xa, oa.Init())

	pn := &hybrd.Problem{N: bench.N, F: bench.F}
	on, err := pn.NewNumerical(nil)
	require.NoError(t, err)
	xn := append([]float64(nil), bench.Start...)
	rn := on.Fit(xn, on.Init())

	require.InDelta(t, enormOf(ra.Fvec), enormOf(rn.Fvec), 1e-6)
}

func TestUserAbort(t *testing.T) {
	bench := benchmarks.Rosenbrock()
	calls := 0
	f := func(x, fvec []float64) int {
		calls++
		if calls == 5 {
			return -1
		}
		return bench.F(x, fvec)
	}

	p := &hybrd.Problem{N: bench.N, F: f, DF: bench.DF}
	o, err := p.New(nil)
	require.NoError(t, err)

	x := append([]float64(nil), bench.Start...)
	res := o.Fit(x, o.Init())

	require.Equal(t, hybrd.UserAsked, res.Status)
	require.Equal(t, 5, res.NFev)
}

func TestBudgetExhausted(t *testing.T) {
	bench := benchmarks.Rosenbrock()
	p := &hybrd.Problem{
		N: bench.N, F: bench.F, DF: bench.DF,
		Stop: hybrd.Termination{MaxFunEvals: 3},
	}
	o, err := p.New(nil)
	require.NoError(t, err)

	x := append([]float64(nil), bench.Start...)
	orig := append([]float64(nil), x...)
	res := o.Fit(x, o.Init())

	require.Equal(t, hybrd.TooManyFunctionEvaluations, res.Status)
	require.LessOrEqual(t, 3, res.NFev)
	_ = orig
}

func TestImproperInput(t *testing.T) {
	bench := benchmarks.Rosenbrock()

	_, err := (&hybrd.Problem{N: 0, F: bench.F, DF: bench.DF}).New(nil)
	require.Error(t, err)

	_, err = (&hybrd.Problem{N: bench.N, F: bench.F}).New(nil)
	require.Error(t, err)

	_, err = (&hybrd.Problem{N: bench.N, F: bench.F, DF: bench.DF, Stop: hybrd.Termination{XTol: -1}}).New(nil)
	require.Error(t, err)
}

func TestConvenienceEntryPoints(t *testing.T) {
	bench := benchmarks.PowellSingular()

	x := append([]float64(nil), bench.Start...)
	status, err := (&hybrd.Problem{N: bench.N, F: bench.F, DF: bench.DF}).Solve(x, 1e-8)
	require.NoError(t, err)
	require.Equal(t, hybrd.RelativeErrorTooSmall, status)

	x2 := append([]float64(nil), bench.Start...)
	status, err = (&hybrd.Problem{N: bench.N, F: bench.F}).SolveNumerical(x2, 1e-6)
	require.NoError(t, err)
	require.Equal(t, hybrd.RelativeErrorTooSmall, status)
}

func enormOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}
