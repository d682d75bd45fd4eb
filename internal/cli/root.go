// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli implements the denoise command tree.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curioloop/manifold/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config   string
	N        int
	Seed     uint64
	Runs     int
	LogLevel string
}

// NewRootCommand creates the root command for the denoise CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "denoise",
		Short: "Manifold constrained matrix denoising",
		Long: `Recover the nearest doubly-stochastic or orthonormal matrix to a random
noisy matrix with a Riemannian L-BFGS solver.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidLogLevel(opts.LogLevel) {
				return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, config.LogLevels)
			}
			return nil
		},
	}

	def := config.Default()
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().IntVarP(&opts.N, "n", "n", def.N, "matrix rows")
	cmd.PersistentFlags().Uint64Var(&opts.Seed, "seed", def.Seed, "random seed")
	cmd.PersistentFlags().IntVar(&opts.Runs, "runs", def.Runs, "number of independent runs")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", def.LogLevel, "log level (debug|info|warn|error)")

	cmd.AddCommand(NewBirkhoffCommand(opts))
	cmd.AddCommand(NewStiefelCommand(opts))

	return cmd
}

func isValidLogLevel(level string) bool {
	for _, l := range config.LogLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}
