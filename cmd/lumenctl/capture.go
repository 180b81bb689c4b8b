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

func newCaptureCommand() *cobra.Command {
	var resetTimer bool
	var captureOnly bool

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Force an ambient capture cycle",
		Long: `Ask the daemon to run an ambient light capture cycle now instead of
waiting for the automatic capture timer.

See also: lumenctl status, lumenctl history`,
		Example: `  # Example 1: Capture and adjust the backlight
  lumenctl capture

  # Example 2: Capture and restart the automatic timer
  lumenctl capture --reset-timer

  # Example 3: Record the ambient level without touching the backlight
  lumenctl capture --capture-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			err = c.Capture(ctx, control.CaptureRequest{
				ResetTimer:  resetTimer,
				CaptureOnly: captureOnly,
			})
			if err != nil {
				return daemonError(err)
			}
			return printAccepted("Capture")
		},
	}

	cmd.Flags().BoolVar(&resetTimer, "reset-timer", false, "Restart the automatic capture timer from now")
	cmd.Flags().BoolVar(&captureOnly, "capture-only", false, "Record the reading without adjusting the backlight")

	return cmd
}
