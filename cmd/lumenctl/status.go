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
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon state",
		Long: `Display the daemon's view of the world: power source, daytime bucket,
sensor and display state, current backlight level, and the lifecycle of
every module.`,
		Example: `  # Example 1: Human-readable status
  lumenctl status

  # Example 2: Extract the backlight level
  lumenctl status --json | jq '.state.backlight'`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := newClient()
	if err != nil {
		return err
	}

	status, err := c.Status(ctx)
	if err != nil {
		return daemonError(err)
	}

	if outputJSON {
		return printJSON(status)
	}

	st := status.State

	display := "active"
	if st.DisplayDimmed {
		display = "dimmed"
	}
	lid := "open"
	if st.LidClosed {
		lid = "closed"
	}
	sensor := "unavailable"
	if st.SensorAvailable {
		sensor = st.SensorName
	}
	daytime := st.Daytime
	if st.InEventWindow {
		daytime += " (event window)"
	}
	nextCapture := "not scheduled"
	if st.NextCapture != nil {
		nextCapture = fmt.Sprintf("in %s", time.Until(*st.NextCapture).Round(time.Second))
	}

	fmt.Println("Lumen Daemon Status")
	fmt.Println("===================")
	fmt.Println()
	fmt.Printf("Power Source:  %s\n", st.PowerSource)
	fmt.Printf("Daytime:       %s\n", daytime)
	fmt.Printf("Lid:           %s\n", lid)
	fmt.Printf("Display:       %s\n", display)
	fmt.Printf("Sensor:        %s\n", sensor)
	fmt.Printf("Ambient:       %.2f\n", st.Ambient)
	fmt.Printf("Backlight:     %.2f\n", st.Backlight)
	fmt.Printf("Next Capture:  %s\n", nextCapture)
	fmt.Printf("Interval:      %s\n", st.EffectiveTimeout)
	fmt.Printf("Pause Reasons: %s\n", status.PauseReasons)
	fmt.Printf("Uptime:        %s\n", time.Duration(status.UptimeSeconds)*time.Second)

	if len(status.Modules) > 0 {
		names := make([]string, 0, len(status.Modules))
		for name := range status.Modules {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println()
		fmt.Println("Modules:")
		for _, name := range names {
			fmt.Printf("  %-10s %s\n", name, status.Modules[name])
		}
	}

	return nil
}
