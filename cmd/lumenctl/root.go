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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/lumen/internal/client"
)

// Global flags shared by every subcommand.
var (
	socketPath string
	outputJSON bool
)

// newRootCommand creates the root Cobra command for lumenctl.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lumenctl",
		Short: "Lumenctl - control the lumend backlight daemon",
		Long: `Lumenctl talks to a running lumend daemon over its control socket.

It can inspect the daemon state, force ambient captures, set the
backlight directly, and change calibration settings at runtime.

Run 'lumenctl status' to see what the daemon is doing.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Path to the daemon control socket (default: $LUMEND_SOCKET or the runtime dir)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	return cmd
}

// newClient builds a client honoring the --socket flag and environment.
func newClient() (*client.Client, error) {
	if socketPath != "" {
		return client.New(client.WithSocketPath(socketPath))
	}

	c, err := client.FromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

// daemonError prints start-up guidance and exits when the daemon is
// unreachable; any other error is returned for normal handling.
func daemonError(err error) error {
	if client.IsDaemonNotRunning(err) {
		dnr := &client.DaemonNotRunningError{}
		fmt.Fprintln(os.Stderr, dnr.Guidance())
		os.Exit(10)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printAccepted acknowledges a request the daemon queued for its loop.
func printAccepted(what string) error {
	if outputJSON {
		return printJSON(map[string]string{"status": "accepted"})
	}
	fmt.Printf("%s request sent.\n", what)
	return nil
}
