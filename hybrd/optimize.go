// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hybrd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// LogLevel controls the frequency and detail of logger output.
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogEval print also ‖F‖ and the trust radius on every iteration
	LogEval LogLevel = 1
	// LogTrace print the same per-iteration line as LogEval, without n-vectors
	LogTrace LogLevel = 99
	// LogVerbose print details of every iteration including x and F(x)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// Evaluation computes F(x) into fvec. Returning a negative value
// aborts the iteration in progress with Status UserAsked; any other
// return value is ignored.
type Evaluation func(x, fvec []float64) int

// Jacobian computes the analytic Jacobian of F at x into jac, stored
// row-major (jac[i*n+j] = ∂Fᵢ/∂xⱼ). Returning a negative value aborts
// the iteration with Status UserAsked.
type Jacobian func(x []float64, jac []float64) int

// Termination specifies the stopping criteria and tuning knobs of
// the trust-region driver.
type Termination struct {
	// The iteration stops once the trust region radius falls to
	// xtol·‖diag·x‖ or below. Zero selects sqrt(machine epsilon).
	XTol float64
	// The iteration stops once the number of calls to F reaches this
	// limit. Zero selects a variant-specific default.
	MaxFunEvals int
	// Sets the initial trust region radius to factor·‖diag·x‖ (or to
	// factor itself when x is the origin). Zero selects 100.
	Factor float64
	// ModeAuto (default) grows diag from the Jacobian's column norms;
	// ModeFixed uses Problem.Diag unchanged for the whole run.
	Mode int
	// Number of subdiagonals and superdiagonals of a banded Jacobian,
	// used only by the numeric-difference variant. Negative selects
	// n-1 (a full, dense Jacobian); leaving both at zero also selects
	// a dense Jacobian.
	BandSub, BandSuper int
	// Step size used by the forward-difference Jacobian approximation.
	// A value ≤ machine epsilon selects sqrt(epsmch).
	Epsfcn float64
}

// Problem specifies the nonlinear system F(x) = 0 to solve.
type Problem struct {
	N    int        // The number of equations and unknowns
	F    Evaluation // Evaluates F(x)
	DF   Jacobian   // Evaluates the analytic Jacobian; required by New
	Stop Termination
	// Diag holds the fixed scaling factors used when Stop.Mode is
	// ModeFixed. Every entry must be strictly positive.
	Diag []float64
}

// New creates an Optimizer that solves the problem using an
// analytically supplied Jacobian.
func (p *Problem) New(logger *Logger) (*Optimizer, error) {
	return p.build(logger, false, (p.N+1)*100)
}

// NewNumerical creates an Optimizer that approximates the Jacobian
// by forward differences (optionally banded); Problem.DF is ignored.
func (p *Problem) NewNumerical(logger *Logger) (*Optimizer, error) {
	return p.build(logger, true, (p.N+1)*200)
}

func (p *Problem) build(logger *Logger, numeric bool, defaultMaxFev int) (*Optimizer, error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	n := p.N
	stop := p.Stop

	if stop.MaxFunEvals <= 0 {
		stop.MaxFunEvals = defaultMaxFev
	}
	if stop.Factor <= 0 {
		stop.Factor = 100
	}
	if stop.Mode == 0 {
		stop.Mode = ModeAuto
	}
	if stop.Epsfcn <= epsmch {
		stop.Epsfcn = 0
	}
	if numeric {
		if stop.BandSub == 0 && stop.BandSuper == 0 {
			stop.BandSub, stop.BandSuper = -1, -1
		}
		if stop.BandSub < 0 {
			stop.BandSub = n - 1
		}
		if stop.BandSuper < 0 {
			stop.BandSuper = n - 1
		}
	}

	var err error
	switch {
	case n <= 0:
		err = errors.New("problem dimension must be greater than 0")
	case p.F == nil:
		err = errors.New("evaluation target is required")
	case !numeric && p.DF == nil:
		err = errors.New("analytic Jacobian is required, use NewNumerical otherwise")
	case stop.XTol < 0:
		err = errors.New("xtol must not be negative")
	case stop.Factor <= 0:
		err = errors.New("factor must be positive")
	case numeric && (stop.BandSub >= n || stop.BandSuper >= n):
		err = errors.New("jacobian bandwidth must be less than n")
	case stop.Mode == ModeFixed && len(p.Diag) != n:
		err = errors.New("diag must have length n when mode is fixed")
	}
	if err == nil && stop.Mode == ModeFixed {
		for _, d := range p.Diag {
			if d <= 0 {
				err = errors.New("diag entries must be strictly positive")
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if stop.XTol == 0 {
		stop.XTol = math.Sqrt(epsmch)
	}

	return &Optimizer{optSpec{
		n:       n,
		f:       p.F,
		df:      p.DF,
		numeric: numeric,
		diag:    p.Diag,
		stop:    stop,
		logger:  *logger,
	}}, nil
}

// optSpec is the immutable configuration resolved from a Problem.
type optSpec struct {
	n       int
	f       Evaluation
	df      Jacobian
	numeric bool
	diag    []float64
	stop    Termination
	logger  Logger
}

// Optimizer runs the Powell hybrid trust-region method against a
// resolved Problem.
type Optimizer struct {
	optSpec
}

// Workspace holds the mutable state of one solve: the residual, the
// factored Jacobian, and the scratch vectors the driver needs. Reuse
// across calls to Fit to avoid reallocating; workspaces are not
// safe for concurrent use, but one Optimizer may be shared by many
// Workspaces running on separate goroutines.
type Workspace struct {
	n int

	Fvec []float64 // residual F(x), length n
	Fjac []float64 // Q on return, row-major n×n during the solve
	R    []float64 // packed upper triangular factor, length n(n+1)/2
	Qtf  []float64 // Qᵀ·F(x), length n
	Diag []float64 // scaling factors, length n

	wa1, wa2, wa3, wa4, wa5 []float64

	Iter           int
	NFev, NJev     int
	Ncsuc, Ncfail  int
	Nslow1, Nslow2 int
	Sing           bool
}

// Init allocates a Workspace sized for the optimizer's problem.
func (o *Optimizer) Init() *Workspace {
	n := o.n
	w := &Workspace{
		n:    n,
		Fvec: make([]float64, n),
		Fjac: make([]float64, n*n),
		R:    make([]float64, n*(n+1)/2),
		Qtf:  make([]float64, n),
		Diag: make([]float64, n),
		wa1:  make([]float64, n),
		wa2:  make([]float64, n),
		wa3:  make([]float64, n),
		wa4:  make([]float64, n),
		wa5:  make([]float64, n),
	}
	if o.stop.Mode == ModeFixed {
		copy(w.Diag, o.diag)
	}
	return w
}

// Result is the outcome of a Fit call.
type Result struct {
	OK     bool // whether Status is RelativeErrorTooSmall
	Status Status
	X      []float64 // the caller's x, mutated in place
	Fvec   []float64 // F(x) at the returned x
	Summary
}

// Summary reports counters accumulated over one Fit call.
type Summary struct {
	Iter       int
	NFev, NJev int
}

// Fit runs the trust-region iteration from the initial guess x,
// mutating x in place, and returns once one of the Status
// termination conditions is met.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match spec")
	}
	if w.n != o.n {
		panic("workspace dimension not match spec")
	}

	d := &iterDriver{optimizer: o, workspace: w, x: x}
	status := d.mainLoop()

	return &Result{
		OK:     status == RelativeErrorTooSmall,
		Status: status,
		X:      x,
		Fvec:   w.Fvec,
		Summary: Summary{
			Iter: w.Iter,
			NFev: w.NFev,
			NJev: w.NJev,
		},
	}
}

// Solve is the convenience entry point for the analytic-Jacobian
// variant: it forces mode = ModeFixed with diag = 1 and generous
// evaluation limits, matching the historical single-tolerance call.
func (p *Problem) Solve(x []float64, tol float64) (Status, error) {
	diag := make([]float64, p.N)
	for i := range diag {
		diag[i] = 1
	}
	fixed := *p
	fixed.Diag = diag
	fixed.Stop = Termination{Mode: ModeFixed, XTol: tol, MaxFunEvals: (p.N + 1) * 100, Factor: 100}
	o, err := fixed.New(nil)
	if err != nil {
		return ImproperInputParameters, err
	}
	w := o.Init()
	return o.Fit(x, w).Status, nil
}

// SolveNumerical is the convenience entry point for the numeric-
// difference variant, mirroring Solve.
func (p *Problem) SolveNumerical(x []float64, tol float64) (Status, error) {
	diag := make([]float64, p.N)
	for i := range diag {
		diag[i] = 1
	}
	fixed := *p
	fixed.Diag = diag
	fixed.Stop = Termination{
		Mode: ModeFixed, XTol: tol, MaxFunEvals: (p.N + 1) * 200, Factor: 100,
		BandSub: p.N - 1, BandSuper: p.N - 1,
	}
	o, err := fixed.NewNumerical(nil)
	if err != nil {
		return ImproperInputParameters, err
	}
	w := o.Init()
	return o.Fit(x, w).Status, nil
}
