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

// Lumend keeps the screen backlight proportional to ambient brightness,
// reading the sensor and driving the hardware through the photond
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/lumen/internal/config"
	"github.com/tombee/lumen/internal/daemon"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path")
		socketPath  = flag.String("socket", "", "Control socket path")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lumend %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Apply CLI flag overrides
	if *socketPath != "" {
		cfg.Daemon.SocketPath = *socketPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	d, err := daemon.New(cfg, daemon.Options{
		Version:    version,
		Commit:     commit,
		BuildDate:  buildDate,
		ConfigPath: *configPath,
	})
	if err != nil {
		slog.Error("Failed to create daemon", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		slog.Error("Daemon error", slog.Any("error", err))
		os.Exit(1)
	}
}
