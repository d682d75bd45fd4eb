// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/manifold/manifold"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.N)
	assert.Equal(t, 200, cfg.Solver.MaxIterations)
	assert.Equal(t, 1e-8, cfg.Solver.FunctionTolerance)
	assert.Equal(t, 1e-8, cfg.Solver.GradientTolerance)
}

func TestDecode(t *testing.T) {
	src := `
n: 6
k: 3
seed: 42
runs: 4
solver:
  max_iterations: 50
  max_duration: 2s
  gradient_tolerance: 1e-6
birkhoff:
  sinkhorn_iterations: 500
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.N)
	assert.Equal(t, 3, cfg.K)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 4, cfg.Runs)
	assert.Equal(t, 50, cfg.Solver.MaxIterations)
	assert.Equal(t, 2*time.Second, cfg.Solver.MaxDuration)
	assert.Equal(t, 1e-6, cfg.Solver.GradientTolerance)
	assert.Equal(t, 500, cfg.Birkhoff.SinkhornIterations)

	// untouched fields keep their defaults
	def := Default()
	assert.Equal(t, def.Solver.FunctionTolerance, cfg.Solver.FunctionTolerance)
	assert.Equal(t, def.Birkhoff.SinkhornTolerance, cfg.Birkhoff.SinkhornTolerance)
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestDecodeUnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader("n: 4\nsolver:\n  max_iteration: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iteration")
}

func TestDecodeInvalid(t *testing.T) {
	cases := map[string]string{
		"k above n":          "n: 3\nk: 4\n",
		"zero runs":          "runs: 0\n",
		"negative tolerance": "solver:\n  function_tolerance: -1\n",
		"zero memory":        "solver:\n  memory: 0\n",
		"log level":          "log_level: loud\n",
		"sinkhorn":           "birkhoff:\n  sinkhorn_tolerance: 0\n",
		"not yaml":           "n: [1\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Decode(strings.NewReader(src))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "denoise.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n: 5\nk: 2\nlog_level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.N)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Solver.MaxIterations = 7
	cfg.Solver.Memory = 3
	cfg.Parallelism = 2

	opt := cfg.Options()
	assert.Equal(t, 7, opt.MaxIterations)
	assert.Equal(t, 3, opt.Memory)
	assert.Equal(t, 2, opt.Parallelism)
	assert.Equal(t, cfg.Solver.Tolerance, opt.Tolerance)
}

func TestManifold(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.K = 5, 2

	ds, err := cfg.Manifold(manifold.KindBirkhoff)
	require.NoError(t, err)
	r, c := ds.Dims()
	assert.Equal(t, [2]int{5, 5}, [2]int{r, c})

	st, err := cfg.Manifold(manifold.KindStiefel)
	require.NoError(t, err)
	r, c = st.Dims()
	assert.Equal(t, [2]int{5, 2}, [2]int{r, c})

	_, err = cfg.Manifold(manifold.Kind(9))
	assert.Error(t, err)
}
