// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/manifold/internal/config"
	"github.com/curioloop/manifold/manifold"
	"github.com/curioloop/manifold/objective"
	"github.com/curioloop/manifold/rlbfgs"
)

// seedStream is the second PCG word; the user seed picks the first.
const seedStream = 0x6d616e69666f6c64

// DemoOptions holds flags for a manifold command.
type DemoOptions struct {
	*RootOptions
	K int
}

// NewBirkhoffCommand creates the birkhoff command.
func NewBirkhoffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "birkhoff",
		Aliases: []string{"ds"},
		Short:   "Denoise towards the nearest doubly-stochastic matrix",
		Long: `Draw a random n × n matrix with entries in [0, 1) and find the nearest
doubly-stochastic matrix, starting from a random point of the Birkhoff polytope.

Example:
  denoise birkhoff -n 10
  denoise birkhoff --runs 8 --config denoise.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts, manifold.KindBirkhoff)
		},
	}

	return cmd
}

// NewStiefelCommand creates the stiefel command.
func NewStiefelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stiefel",
		Short: "Denoise towards the nearest matrix with orthonormal columns",
		Long: `Draw a random n × k matrix with entries in [-1, 1) and find the nearest
matrix with orthonormal columns, starting from a random Stiefel point. The
result is compared with the closed-form projection U·Vᵀ of the SVD.

Example:
  denoise stiefel -n 10
  denoise stiefel -n 8 -k 3 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts, manifold.KindStiefel)
		},
	}

	cmd.Flags().IntVarP(&opts.K, "k", "k", 0, "matrix columns (defaults to n)")

	return cmd
}

// loadConfig merges the config file, the defaults and the flags set on the command line.
func loadConfig(cmd *cobra.Command, opts *DemoOptions, kind manifold.Kind) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("n") {
		cfg.N = opts.N
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if flags.Changed("runs") {
		cfg.Runs = opts.Runs
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}

	switch {
	case kind == manifold.KindBirkhoff:
		cfg.K = cfg.N
	case flags.Changed("k"):
		cfg.K = opts.K
	case opts.Config == "" || cfg.K > cfg.N:
		cfg.K = cfg.N
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// randomTarget draws the matrix to denoise: entries in [0, 1) for Birkhoff and
// in [-1, 1) for Stiefel.
func randomTarget(rng *rand.Rand, kind manifold.Kind, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		if kind == manifold.KindBirkhoff {
			data[i] = rng.Float64()
		} else {
			data[i] = 2*rng.Float64() - 1
		}
	}
	return mat.NewDense(r, c, data)
}

func runDemo(cmd *cobra.Command, opts *DemoOptions, kind manifold.Kind) error {
	cfg, err := loadConfig(cmd, opts, kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	errOut := &lockedWriter{w: cmd.ErrOrStderr()}
	logger := newLogger(errOut, cfg.LogLevel)

	m, err := cfg.Manifold(kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifold", err)
	}
	r, c := m.Dims()

	rng := rand.New(rand.NewPCG(cfg.Seed, seedStream))
	jobs := make([]rlbfgs.Job, cfg.Runs)
	for i := range jobs {
		jobs[i] = rlbfgs.Job{
			Object:   objective.NewDenoise(randomTarget(rng, kind, r, c)),
			Manifold: m,
			X0:       m.Random(rng),
		}
	}

	opt := cfg.Options()
	opt.Logger = solverLogger(errOut, cfg.LogLevel)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("solving", "manifold", kind, "rows", r, "cols", c, "runs", cfg.Runs, "seed", cfg.Seed)
	results, err := rlbfgs.SolveAll(ctx, opt, jobs)
	if err != nil {
		return WrapExitError(ExitFailure, "batch solve interrupted", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, res := range results {
		job := jobs[i]
		if len(results) > 1 {
			fmt.Fprintf(out, "=== run %d/%d ===\n\n", i+1, len(results))
		}
		report(out, kind, job.Object.(*objective.Denoise), job.X0, res)

		switch {
		case res.State != rlbfgs.Converged:
			failed++
			logger.Error("solve did not converge", "run", i+1, "state", res.State, "error", res.Err)
		case res.Err != nil:
			logger.Warn("solve stopped before the gradient tolerance", "run", i+1, "reason", res.Reason.Message())
		default:
			logger.Debug("solve converged", "run", i+1, "iterations", res.NumIter, "cost", res.F)
		}
	}
	logger.Info("done", "runs", len(results), "failed", failed)

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d runs did not converge", failed, len(results)))
	}
	return nil
}

// report prints the given matrix, the initial and final solutions, the solver
// summary and the membership check together with the closed-form reference.
func report(w io.Writer, kind manifold.Kind, den *objective.Denoise, x0 mat.Matrix, res *rlbfgs.Result) {
	a := den.Target()
	printMatrix(w, "Given matrix", a)
	printMatrix(w, "Initial solution", x0)
	if res.X != nil {
		printMatrix(w, "Final solution", res.X)
	}
	fmt.Fprintln(w, res.FullReport())
	if res.X == nil {
		return
	}

	switch kind {
	case manifold.KindBirkhoff:
		fmt.Fprintf(w, "Doubly-stochastic check: %v\n", manifold.IsDoublyStochastic(res.X, manifold.DefaultTolerance))
		oracle, err := manifold.ProjectBirkhoff(a, 1e-10, 100000)
		if oracle == nil {
			fmt.Fprintf(w, "Dykstra projection failed: %v\n", err)
			return
		}
		fmt.Fprintf(w, "Cost of Dykstra projection: %.6e (solver %.6e)\n", den.Cost(oracle), res.F)
		if err != nil {
			fmt.Fprintf(w, "  %v\n", err)
		}
	case manifold.KindStiefel:
		fmt.Fprintf(w, "Stiefel check: %v (‖XᵀX - I‖ = %.3e)\n",
			manifold.IsStiefel(res.X, manifold.DefaultTolerance), manifold.StiefelResidual(res.X))
		oracle, err := manifold.ProjectStiefel(a)
		if err != nil {
			fmt.Fprintf(w, "SVD projection failed: %v\n", err)
			return
		}
		printMatrix(w, "SVD projection", oracle)
		var diff mat.Dense
		diff.Sub(res.X, oracle)
		fmt.Fprintf(w, "Cost of SVD projection: %.6e (solver %.6e), ‖X - UVᵀ‖ = %.3e\n",
			den.Cost(oracle), res.F, mat.Norm(&diff, 2))
	}
	fmt.Fprintln(w)
}
