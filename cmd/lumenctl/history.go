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
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded ambient and backlight readings",
		Long: `List readings from the daemon's capture journal, newest first.

See also: lumenctl capture, lumenctl status`,
		Example: `  # Example 1: The last 20 readings of any kind
  lumenctl history --limit 20

  # Example 2: Only ambient light readings
  lumenctl history --kind ambient

  # Example 3: Readings as JSON for plotting
  lumenctl history --json | jq '.readings[] | [.at, .value]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := newClient()
			if err != nil {
				return err
			}

			history, err := c.History(ctx, kind, limit)
			if err != nil {
				return daemonError(err)
			}

			if outputJSON {
				return printJSON(history)
			}

			if history.Count == 0 {
				fmt.Println("No readings recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tVALUE\tPOWER\tDAYTIME")
			for _, r := range history.Readings {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
					r.At.Local().Format(time.DateTime), r.Kind, r.Value, r.Power, r.Daytime)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by reading kind (ambient or backlight)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum readings to return (0 uses the daemon default)")

	return cmd
}
