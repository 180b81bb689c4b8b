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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	lumenerrors "github.com/tombee/lumen/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *lumenerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &lumenerrors.ValidationError{
				Field:      "level",
				Message:    "must be between 0 and 1",
				Suggestion: "Pass a normalized backlight level",
			},
			wantMsg: "validation failed on level: must be between 0 and 1",
		},
		{
			name: "without field",
			err: &lumenerrors.ValidationError{
				Message:    "invalid format",
				Suggestion: "Check the input format",
			},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *lumenerrors.NotFoundError
		wantMsg string
	}{
		{
			name: "sensor not found",
			err: &lumenerrors.NotFoundError{
				Resource: "sensor",
				ID:       "als0",
			},
			wantMsg: "sensor not found: als0",
		},
		{
			name: "reading not found",
			err: &lumenerrors.NotFoundError{
				Resource: "reading",
				ID:       "42",
			},
			wantMsg: "reading not found: 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("NotFoundError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestCallError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *lumenerrors.CallError
		contains []string
	}{
		{
			name: "with device and message",
			err: &lumenerrors.CallError{
				Method:  "org.photond.Sensor.Capture",
				Device:  "als0",
				Message: "no reply",
			},
			contains: []string{"org.photond.Sensor.Capture", "als0", "no reply"},
		},
		{
			name: "method only",
			err: &lumenerrors.CallError{
				Method: "org.photond.Backlight.SetAll",
			},
			contains: []string{"call org.photond.Backlight.SetAll failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("CallError.Error() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestCallError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &lumenerrors.CallError{
		Method: "org.photond.Sensor.IsAvailable",
		Cause:  cause,
	}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestDecodeError_Error(t *testing.T) {
	err := &lumenerrors.DecodeError{
		Method: "org.photond.Sensor.Capture",
		Want:   "(s ad)",
		Cause:  errors.New("unexpected type"),
	}

	got := err.Error()
	if !strings.Contains(got, "org.photond.Sensor.Capture") {
		t.Errorf("DecodeError.Error() = %q, missing method", got)
	}
	if !strings.Contains(got, "(s ad)") {
		t.Errorf("DecodeError.Error() = %q, missing expected shape", got)
	}
}

func TestDecodeError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected type")
	err := &lumenerrors.DecodeError{Method: "m", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *lumenerrors.ConfigError
		wantMsg string
	}{
		{
			name: "with key",
			err: &lumenerrors.ConfigError{
				Key:    "sensor.device",
				Reason: "device name is empty",
			},
			wantMsg: "config error at sensor.device: device name is empty",
		},
		{
			name: "without key",
			err: &lumenerrors.ConfigError{
				Reason: "file is not valid YAML",
			},
			wantMsg: "config error: file is not valid YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("yaml: line 3: mapping values are not allowed")
	err := &lumenerrors.ConfigError{
		Key:    "backlight.curve",
		Reason: "parse failure",
		Cause:  cause,
	}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &lumenerrors.TimeoutError{
		Operation: "sensor capture",
		Duration:  5 * time.Second,
	}

	want := "sensor capture operation timed out after 5s"
	if got := err.Error(); got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
}

func TestTimeoutError_Unwrap(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := &lumenerrors.TimeoutError{
		Operation: "backlight set",
		Duration:  time.Second,
		Cause:     cause,
	}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestErrorsAs(t *testing.T) {
	var callErr *lumenerrors.CallError
	wrapped := fmt.Errorf("capture cycle: %w", &lumenerrors.CallError{
		Method: "org.photond.Sensor.Capture",
		Device: "als0",
	})

	if !errors.As(wrapped, &callErr) {
		t.Fatal("expected errors.As to match CallError through wrapping")
	}
	if callErr.Device != "als0" {
		t.Errorf("expected device als0, got %q", callErr.Device)
	}
}
