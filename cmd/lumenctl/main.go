// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Lumenctl is the command-line client for the lumend backlight daemon.
package main

import (
	"fmt"
	"os"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	rootCmd := newRootCommand()

	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newCaptureCommand())
	rootCmd.AddCommand(newSetCommand())
	rootCmd.AddCommand(newTimeoutCommand())
	rootCmd.AddCommand(newCurveCommand())
	rootCmd.AddCommand(newAutocalibCommand())
	rootCmd.AddCommand(newDisplayCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
