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

func newCurveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "curve <ac|battery> [point...]",
		Short: "Replace or refit a calibration curve",
		Long: `Replace the calibration points mapping ambient light to backlight
level for one power source. Points are backlight levels in [0, 1],
evenly spaced over the ambient range. With no points the daemon refits
the curve it already has.

See also: lumenctl autocalib`,
		Example: `  # Example 1: A gentle curve for battery
  lumenctl curve battery 0.05 0.25 0.5 0.7 0.85

  # Example 2: Refit the AC curve after automatic calibration drifted
  lumenctl curve ac`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var points []float64
			for _, arg := range args[1:] {
				p, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid point %q: %w", arg, err)
				}
				points = append(points, p)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			err = c.SetCurve(ctx, control.CurveRequest{Source: args[0], Points: points})
			if err != nil {
				return daemonError(err)
			}
			return printAccepted("Curve")
		},
	}
}
