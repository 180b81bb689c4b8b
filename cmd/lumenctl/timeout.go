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
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/lumen/internal/control"
)

func newTimeoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "timeout <ac|battery> <day|night|event> <duration>",
		Short: "Change a capture timeout",
		Long: `Change how often the daemon captures ambient light for one power
source and daytime bucket. A duration of 0 disables automatic captures
for that entry.

The change applies immediately when it targets the entry currently in
effect; the running timer keeps its elapsed time.`,
		Example: `  # Example 1: Capture every 5 minutes on AC during the day
  lumenctl timeout ac day 5m

  # Example 2: Stop capturing on battery at night
  lumenctl timeout battery night 0s`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			err = c.SetTimeout(ctx, control.TimeoutRequest{
				Source:  args[0],
				Bucket:  args[1],
				Timeout: args[2],
			})
			if err != nil {
				return daemonError(err)
			}
			return printAccepted("Timeout")
		},
	}
}
