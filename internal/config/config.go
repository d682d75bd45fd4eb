// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the configuration of the denoise command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/curioloop/manifold/manifold"
	"github.com/curioloop/manifold/rlbfgs"
)

// Config describes a batch of denoising runs.
type Config struct {
	N           int      `yaml:"n"`
	K           int      `yaml:"k"`
	Seed        uint64   `yaml:"seed"`
	Runs        int      `yaml:"runs"`
	Parallelism int      `yaml:"parallelism"`
	LogLevel    string   `yaml:"log_level"`
	Solver      Solver   `yaml:"solver"`
	Birkhoff    Birkhoff `yaml:"birkhoff"`
}

// Solver holds the stopping rules of the solve.
type Solver struct {
	MaxIterations     int           `yaml:"max_iterations"`
	MaxEvaluations    int           `yaml:"max_evaluations"`
	MaxDuration       time.Duration `yaml:"max_duration"`
	FunctionTolerance float64       `yaml:"function_tolerance"`
	GradientTolerance float64       `yaml:"gradient_tolerance"`
	Memory            int           `yaml:"memory"`
	Tolerance         float64       `yaml:"tolerance"`
}

// Birkhoff holds the Sinkhorn settings of the doubly-stochastic retraction.
type Birkhoff struct {
	SinkhornTolerance  float64 `yaml:"sinkhorn_tolerance"`
	SinkhornIterations int     `yaml:"sinkhorn_iterations"`
	ZeroThreshold      float64 `yaml:"zero_threshold"`
}

// LogLevels are the accepted values of LogLevel.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Default returns the 10 × 10 demo with a single run.
func Default() Config {
	opt := rlbfgs.DefaultOptions()
	return Config{
		N:           10,
		K:           10,
		Seed:        1,
		Runs:        1,
		Parallelism: 4,
		LogLevel:    "info",
		Solver: Solver{
			MaxIterations:     opt.MaxIterations,
			FunctionTolerance: opt.FunctionTolerance,
			GradientTolerance: opt.GradientTolerance,
			Memory:            opt.Memory,
			Tolerance:         opt.Tolerance,
		},
		Birkhoff: Birkhoff{
			SinkhornTolerance:  1e-10,
			SinkhornIterations: 1000,
			ZeroThreshold:      1e-12,
		},
	}
}

// Load reads a YAML file over the defaults.
// Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode reads YAML from r over the defaults and validates the result.
// An empty document yields the defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.N <= 0:
		return errors.New("n must be positive")
	case c.K <= 0:
		return errors.New("k must be positive")
	case c.K > c.N:
		return fmt.Errorf("k (%d) must not exceed n (%d)", c.K, c.N)
	case c.Runs <= 0:
		return errors.New("runs must be positive")
	case c.Parallelism < 0:
		return errors.New("parallelism must not be negative")
	case !validLogLevel(c.LogLevel):
		return fmt.Errorf("invalid log level %q: must be one of %v", c.LogLevel, LogLevels)
	case c.Solver.MaxIterations <= 0:
		return errors.New("solver.max_iterations must be positive")
	case c.Solver.MaxEvaluations < 0:
		return errors.New("solver.max_evaluations must not be negative")
	case c.Solver.MaxDuration < 0:
		return errors.New("solver.max_duration must not be negative")
	case c.Solver.FunctionTolerance < 0 || c.Solver.GradientTolerance < 0:
		return errors.New("solver tolerances must not be negative")
	case c.Solver.Memory <= 0:
		return errors.New("solver.memory must be positive")
	case c.Solver.Tolerance <= 0:
		return errors.New("solver.tolerance must be positive")
	case c.Birkhoff.SinkhornTolerance <= 0:
		return errors.New("birkhoff.sinkhorn_tolerance must be positive")
	case c.Birkhoff.SinkhornIterations <= 0:
		return errors.New("birkhoff.sinkhorn_iterations must be positive")
	case c.Birkhoff.ZeroThreshold < 0:
		return errors.New("birkhoff.zero_threshold must not be negative")
	}
	return nil
}

func validLogLevel(level string) bool {
	for _, l := range LogLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

// Options maps the solver settings onto rlbfgs.Options.
func (c *Config) Options() rlbfgs.Options {
	opt := rlbfgs.DefaultOptions()
	opt.MaxIterations = c.Solver.MaxIterations
	opt.MaxEvaluations = c.Solver.MaxEvaluations
	opt.MaxDuration = c.Solver.MaxDuration
	opt.FunctionTolerance = c.Solver.FunctionTolerance
	opt.GradientTolerance = c.Solver.GradientTolerance
	opt.Memory = c.Solver.Memory
	opt.Tolerance = c.Solver.Tolerance
	opt.Parallelism = c.Parallelism
	return opt
}

// Manifold creates the parameterization of the given kind. Birkhoff uses n × n.
func (c *Config) Manifold(kind manifold.Kind) (manifold.Parameterization, error) {
	switch kind {
	case manifold.KindBirkhoff:
		return manifold.NewBirkhoff(c.N,
			manifold.WithSinkhornTolerance(c.Birkhoff.SinkhornTolerance),
			manifold.WithSinkhornIterations(c.Birkhoff.SinkhornIterations),
			manifold.WithZeroThreshold(c.Birkhoff.ZeroThreshold))
	case manifold.KindStiefel:
		return manifold.NewStiefel(c.N, c.K)
	}
	return nil, fmt.Errorf("unknown manifold kind %v", kind)
}
