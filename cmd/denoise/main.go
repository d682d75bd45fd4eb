// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command denoise recovers the nearest doubly-stochastic or orthonormal
// matrix to a random matrix.
package main

import (
	"os"

	"github.com/curioloop/manifold/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
