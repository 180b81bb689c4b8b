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

// Package errors defines the typed errors shared across the daemon and
// its clients: hardware call failures, decode failures, configuration
// problems, and the validation/not-found errors the control API maps
// onto HTTP statuses.
package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid control requests, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "sensor", "reading")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// CallError represents a failed call to the hardware service.
// Use this for transport-level failures: the service is unreachable,
// the call was rejected, or no reply arrived in time.
type CallError struct {
	// Method is the fully qualified method name that failed
	Method string

	// Device is the sensor device or backlight selector, if relevant
	Device string

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	msg := fmt.Sprintf("call %s failed", e.Method)

	if e.Device != "" {
		msg = fmt.Sprintf("%s (device %s)", msg, e.Device)
	}

	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// DecodeError represents a malformed reply from the hardware service.
// The call itself succeeded but the response body did not match the
// expected signature.
type DecodeError struct {
	// Method is the fully qualified method name whose reply was malformed
	Method string

	// Want describes the expected reply shape
	Want string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("malformed reply from %s: want %s", e.Method, e.Want)
	}
	return fmt.Sprintf("malformed reply from %s", e.Method)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "sensor.device", "backlight.timeouts")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "sensor capture", "backlight set")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
