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

func newDisplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "display <dim|undim>",
		Short: "Report the display dim state",
		Long: `Tell the daemon the display was dimmed or restored. Desktop idle
managers call this so the daemon stops fighting the dimmer; calibration
pauses while the display is dimmed and resumes afterwards.`,
		Example: `  # Example 1: From an idle hook, before dimming the screen
  lumenctl display dim

  # Example 2: On user activity
  lumenctl display undim`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dimmed bool
			switch args[0] {
			case "dim":
				dimmed = true
			case "undim":
				dimmed = false
			default:
				return fmt.Errorf("expected 'dim' or 'undim', got %q", args[0])
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			if err := c.SetDisplay(ctx, dimmed); err != nil {
				return daemonError(err)
			}
			return printAccepted("Display")
		},
	}
}
