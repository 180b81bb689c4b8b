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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/lumen/internal/control"
)

func newSetCommand() *cobra.Command {
	var smooth bool
	var step float64
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "set <level>",
		Short: "Set the backlight level",
		Long: `Set the backlight to a level between 0 and 1. The change goes through
the daemon's request pipeline, so a capture cycle finishing at the same
moment wins or loses by arrival order like any other request.

See also: lumenctl capture, lumenctl curve`,
		Example: `  # Example 1: Set the backlight to 80%
  lumenctl set 0.8

  # Example 2: Fade to 30% in 5% steps
  lumenctl set 0.3 --smooth --step 0.05 --delay 30ms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid level %q: %w", args[0], err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			req := control.BacklightRequest{
				Level:  level,
				Smooth: smooth,
				Step:   step,
			}
			if delay > 0 {
				req.Delay = delay.String()
			}

			if err := c.SetBacklight(ctx, req); err != nil {
				return daemonError(err)
			}
			return printAccepted("Backlight")
		},
	}

	cmd.Flags().BoolVar(&smooth, "smooth", false, "Fade to the target level instead of jumping")
	cmd.Flags().Float64Var(&step, "step", 0, "Level change per smoothing step (0 uses the daemon default)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between smoothing steps (0 uses the daemon default)")

	return cmd
}
