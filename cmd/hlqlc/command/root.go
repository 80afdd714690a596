/*
Copyright 2026 The HLQL Compiler Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package command provides the hlqlc command-line front end, a
// standalone driver for the compiler core useful for inspecting the
// QueryUnits a script compiles to without standing up a worker
// process, RPC framing, or a wire protocol listener. Subcommands are
// organized with cobra, the usual shape for multi-verb CLI tools.
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbplatform/hlqlcompiler/internal/vtlog"
)

var rootCmd = &cobra.Command{
	Use:   "hlqlc",
	Short: "Offline driver for the HLQL compiler core",
	Long: `hlqlc drives the compiler core (dispatcher, unit assembler,
migration state machine, and type descriptor builder) against an
in-memory schema and frontend stand-in, the same ones exercised by the
package tests. It exists for interactive inspection of the QueryUnits
a script assembles into; it is not a server and performs no network
I/O or backend execution.`,
}

// Execute runs the root command, parsing CLI arguments and flags and
// dispatching to the most specific subcommand.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		vtlog.Errorf("hlqlc: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(compileCmd)
}
