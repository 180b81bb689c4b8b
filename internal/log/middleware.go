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

package log

import (
	"log/slog"
	"time"
)

// BusCall captures one synchronous call to the hardware service for logging.
type BusCall struct {
	// Method is the fully qualified D-Bus method name.
	Method string

	// Device is the sensor device or backlight selector the call targets.
	Device string
}

// BusCallResult captures the outcome of a hardware service call.
type BusCallResult struct {
	// Err is nil on success.
	Err error

	// Duration is how long the call took.
	Duration time.Duration
}

// LogBusCall logs a completed hardware service call at debug level on
// success and error level on failure.
func LogBusCall(logger *slog.Logger, call *BusCall, res *BusCallResult) {
	attrs := []any{
		EventKey, "bus_call",
		"method", call.Method,
		DurationKey, res.Duration.Milliseconds(),
	}

	if call.Device != "" {
		attrs = append(attrs, DeviceKey, call.Device)
	}

	if res.Err != nil {
		attrs = append(attrs, "error", res.Err.Error())
		logger.Error("hardware service call failed", attrs...)
		return
	}

	logger.Debug("hardware service call completed", attrs...)
}
