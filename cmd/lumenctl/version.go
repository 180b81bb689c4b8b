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
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and daemon version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			out := map[string]any{
				"client": map[string]string{
					"version":    version,
					"commit":     commit,
					"build_date": buildDate,
					"go_version": runtime.Version(),
				},
			}

			// The daemon half is best effort; the client version still
			// prints when nothing is listening.
			daemonLine := "not running"
			if c, err := newClient(); err == nil {
				if v, err := c.Version(ctx); err == nil {
					out["daemon"] = v
					daemonLine = v.Version
					if v.Commit != "" {
						daemonLine += " (" + v.Commit + ")"
					}
				}
			}

			if outputJSON {
				return printJSON(out)
			}

			fmt.Printf("lumenctl %s (%s, built %s, %s)\n", version, commit, buildDate, runtime.Version())
			fmt.Printf("lumend   %s\n", daemonLine)
			return nil
		},
	}
}
