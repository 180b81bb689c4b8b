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

package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SocketEnv overrides the socket path lumenctl connects to.
const SocketEnv = "LUMEND_SOCKET"

// DefaultSocketPath returns the default Unix socket path for the daemon.
func DefaultSocketPath() (string, error) {
	// Use XDG_RUNTIME_DIR if available (Linux)
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "lumen", "lumend.sock"), nil
	}

	// Fall back to ~/.lumen/lumend.sock
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".lumen", "lumend.sock"), nil
}

// FromEnvironment creates a client configured from environment
// variables, falling back to the default socket path.
func FromEnvironment() (*Client, error) {
	if socketPath := os.Getenv(SocketEnv); socketPath != "" {
		return New(WithSocketPath(socketPath))
	}
	return New()
}

// DaemonNotRunningError indicates the daemon is not running.
type DaemonNotRunningError struct {
	SocketPath string
	Err        error
}

func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("lumend is not running (socket: %s)", e.SocketPath)
}

func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// Guidance returns user-friendly guidance for starting the daemon.
func (e *DaemonNotRunningError) Guidance() string {
	return `Lumend is not running.

Start the daemon with:
  lumend                           # Foreground (for development)
  systemctl --user start lumend    # As a user service (if installed)`
}

// IsDaemonNotRunning checks if an error indicates the daemon is not running.
func IsDaemonNotRunning(err error) bool {
	if err == nil {
		return false
	}

	var dnr *DaemonNotRunningError
	if errors.As(err, &dnr) {
		return true
	}

	// Dial failures against a dead daemon surface as one of these.
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such file or directory")
}
