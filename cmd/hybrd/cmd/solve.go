// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/hybrd/hybrd"
	"github.com/curioloop/hybrd/benchmarks"
)

// solveFlags mirrors the fields a Termination needs, bound to both
// pflag (direct CLI use) and viper (so --config can supply the same
// values from a file instead of a long flag line).
type solveFlags struct {
	numeric    bool
	bandSub    int
	bandSuper  int
	epsfcn     float64
	xtol       float64
	maxfev     int
	factor     float64
	mode       int
	configFile string
}

func solveCmd() *cobra.Command {
	var f solveFlags

	cmd := &cobra.Command{
		Use:   "solve <problem>",
		Short: "Solve one of the built-in benchmark systems",
		Long: "Problem names: " + problemNames(),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.configFile != "" {
				viper.SetConfigFile(f.configFile)
				if err := viper.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
				if err := viper.BindPFlags(cmd.Flags()); err != nil {
					return fmt.Errorf("binding flags: %w", err)
				}
				f.numeric = viper.GetBool("numeric")
				f.bandSub = viper.GetInt("bandwidth-sub")
				f.bandSuper = viper.GetInt("bandwidth-super")
				f.epsfcn = viper.GetFloat64("epsfcn")
				f.xtol = viper.GetFloat64("xtol")
				f.maxfev = viper.GetInt("maxfev")
				f.factor = viper.GetFloat64("factor")
				f.mode = viper.GetInt("mode")
			}
			return runSolve(args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&f.numeric, "numeric", false, "approximate the Jacobian by forward differences instead of using the analytic one")
	flags.IntVar(&f.bandSub, "bandwidth-sub", -1, "subdiagonal bandwidth for the numeric Jacobian (-1 = dense)")
	flags.IntVar(&f.bandSuper, "bandwidth-super", -1, "superdiagonal bandwidth for the numeric Jacobian (-1 = dense)")
	flags.Float64Var(&f.epsfcn, "epsfcn", 0, "assumed relative noise in F, for the numeric Jacobian step size")
	flags.Float64Var(&f.xtol, "xtol", 0, "relative error tolerance (0 selects sqrt(machine epsilon))")
	flags.IntVar(&f.maxfev, "maxfev", 0, "maximum number of calls to F (0 selects a variant-specific default)")
	flags.Float64Var(&f.factor, "factor", 0, "initial trust-region radius factor (0 selects 100)")
	flags.IntVar(&f.mode, "mode", hybrd.ModeAuto, "diagonal scaling mode: 1 = auto, 2 = fixed at 1")
	flags.StringVar(&f.configFile, "config", "", "load these options from a YAML/JSON/TOML file instead")

	return cmd
}

func problemNames() string {
	names := ""
	for i, b := range benchmarks.All() {
		if i > 0 {
			names += ", "
		}
		names += b.Name
	}
	return names
}

func findProblem(name string) (benchmarks.Problem, bool) {
	for _, b := range benchmarks.All() {
		if b.Name == name {
			return b, true
		}
	}
	return benchmarks.Problem{}, false
}

func runSolve(name string, f solveFlags) error {
	bench, ok := findProblem(name)
	if !ok {
		return fmt.Errorf("unknown problem %q, choose one of: %s", name, problemNames())
	}

	stop := hybrd.Termination{
		XTol:        f.xtol,
		MaxFunEvals: f.maxfev,
		Factor:      f.factor,
		Mode:        f.mode,
		BandSub:     f.bandSub,
		BandSuper:   f.bandSuper,
		Epsfcn:      f.epsfcn,
	}

	p := &hybrd.Problem{N: bench.N, F: bench.F, DF: bench.DF, Stop: stop}
	if f.mode == hybrd.ModeFixed {
		p.Diag = make([]float64, bench.N)
		for i := range p.Diag {
			p.Diag[i] = 1
		}
	}

	log.Infof("solving %s (n=%d, numeric=%v)", bench.Name, bench.N, f.numeric)

	var o *hybrd.Optimizer
	var err error
	if f.numeric {
		o, err = p.NewNumerical(nil)
	} else {
		o, err = p.New(nil)
	}
	if err != nil {
		return fmt.Errorf("building solver: %w", err)
	}

	x := append([]float64(nil), bench.Start...)
	res := o.Fit(x, o.Init())

	abs := make([]float64, len(res.Fvec))
	for i, v := range res.Fvec {
		abs[i] = math.Abs(v)
	}
	maxIdx := floats.MaxIdx(abs)

	log.Infof("status: %s", res.Status)
	fmt.Printf("x*       = %v\n", res.X)
	fmt.Printf("||F(x*)||= %.3e\n", floats.Norm(res.Fvec, 2))
	fmt.Printf("max|F_i| = %.3e (component %d)\n", abs[maxIdx], maxIdx)
	fmt.Printf("nfev=%d njev=%d iter=%d\n", res.NFev, res.NJev, res.Iter)

	if !res.OK {
		return fmt.Errorf("did not converge: %s", res.Status)
	}
	return nil
}
