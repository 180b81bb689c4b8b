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

func newAutocalibCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "autocalib <on|off>",
		Short: "Toggle automatic calibration",
		Long: `Enable or disable automatic backlight calibration at runtime. While
disabled the daemon keeps capturing ambient light but leaves the
backlight alone.

See also: lumenctl status (the pause reasons line shows why
calibration is not running)`,
		Example: `  # Example 1: Stop the daemon from adjusting the backlight
  lumenctl autocalib off

  # Example 2: Resume automatic adjustment
  lumenctl autocalib on`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var disabled bool
			switch args[0] {
			case "on":
				disabled = false
			case "off":
				disabled = true
			default:
				return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			if err := c.SetAutocalib(ctx, disabled); err != nil {
				return daemonError(err)
			}
			return printAccepted("Autocalib")
		},
	}
}
