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
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check if the daemon is reachable",
		Long:  `Quickly check if the lumend daemon is running and answering requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			start := time.Now()
			health, err := c.Health(ctx)
			if err != nil {
				return daemonError(err)
			}
			latency := time.Since(start)

			if outputJSON {
				return printJSON(map[string]any{
					"status":         health.Status,
					"uptime_seconds": health.UptimeSeconds,
					"latency_ms":     latency.Milliseconds(),
				})
			}

			uptime := time.Duration(health.UptimeSeconds) * time.Second
			fmt.Printf("Daemon is running (status: %s, uptime: %s, latency: %v)\n",
				health.Status, uptime, latency.Round(time.Millisecond))
			return nil
		},
	}
}
