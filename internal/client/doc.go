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

/*
Package client provides an HTTP client for the lumend control API.

This package lets lumenctl and other tools talk to a running daemon over
its Unix control socket.

# Basic Usage

Create a client and make requests:

	c, err := client.New()
	if err != nil {
	    log.Fatal(err)
	}

	// Read the daemon state
	status, err := c.Status(ctx)

	// Force an ambient capture cycle
	err = c.Capture(ctx, control.CaptureRequest{ResetTimer: true})

	// Set the backlight directly
	err = c.SetBacklight(ctx, control.BacklightRequest{Level: 0.8, Smooth: true})

# Transport

The default transport connects via Unix socket:

	$XDG_RUNTIME_DIR/lumen/lumend.sock  (when XDG_RUNTIME_DIR is set)
	~/.lumen/lumend.sock                (otherwise)

Override with the LUMEND_SOCKET environment variable:

	export LUMEND_SOCKET=/run/lumen/lumend.sock

# API Methods

The client provides methods matching the daemon's REST API:

  - Status: Read the daemon state and module lifecycles
  - SetBacklight: Set the backlight level
  - Capture: Force an ambient capture cycle
  - SetTimeout: Change a capture timeout entry
  - SetCurve: Replace or refit a calibration curve
  - SetAutocalib: Toggle automatic calibration
  - SetDisplay: Report the display dim state
  - History: Read recorded ambient and backlight readings
  - Health: Check daemon health
  - Version: Get daemon version info
*/
package client
