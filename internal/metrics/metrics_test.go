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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBusMessage(t *testing.T) {
	initial := testutil.ToFloat64(busMessages.WithLabelValues("power_changed"))
	RecordBusMessage("power_changed")
	RecordBusMessage("power_changed")
	got := testutil.ToFloat64(busMessages.WithLabelValues("power_changed"))
	if got != initial+2 {
		t.Errorf("counter = %f, want %f", got, initial+2)
	}
}

func TestRecordBusMessageEmptyTopic(t *testing.T) {
	initial := testutil.ToFloat64(busMessages.WithLabelValues("unknown"))
	RecordBusMessage("")
	got := testutil.ToFloat64(busMessages.WithLabelValues("unknown"))
	if got != initial+1 {
		t.Errorf("counter = %f, want %f", got, initial+1)
	}
}

func TestLevelGauges(t *testing.T) {
	SetAmbient(0.42)
	if got := testutil.ToFloat64(ambientLevel); got != 0.42 {
		t.Errorf("ambient = %f", got)
	}
	SetBacklight(0.7)
	if got := testutil.ToFloat64(backlightLevel); got != 0.7 {
		t.Errorf("backlight = %f", got)
	}
}

func TestOnBatteryGauge(t *testing.T) {
	SetOnBattery(true)
	if got := testutil.ToFloat64(onBattery); got != 1 {
		t.Errorf("on battery = %f, want 1", got)
	}
	SetOnBattery(false)
	if got := testutil.ToFloat64(onBattery); got != 0 {
		t.Errorf("on AC = %f, want 0", got)
	}
}

func TestSetDaytimeExclusive(t *testing.T) {
	SetDaytime("night")
	SetDaytime("event")
	for _, tc := range []struct {
		bucket string
		want   float64
	}{
		{"day", 0},
		{"night", 0},
		{"event", 1},
	} {
		if got := testutil.ToFloat64(daytimeBucket.WithLabelValues(tc.bucket)); got != tc.want {
			t.Errorf("bucket %s = %f, want %f", tc.bucket, got, tc.want)
		}
	}
}

func TestSetPaused(t *testing.T) {
	SetPaused("dimmed", true)
	SetPaused("sensor", false)
	if got := testutil.ToFloat64(calibrationPaused.WithLabelValues("dimmed")); got != 1 {
		t.Errorf("dimmed = %f, want 1", got)
	}
	if got := testutil.ToFloat64(calibrationPaused.WithLabelValues("sensor")); got != 0 {
		t.Errorf("sensor = %f, want 0", got)
	}
}

func TestSensorAvailableGauge(t *testing.T) {
	SetSensorAvailable(true)
	if got := testutil.ToFloat64(sensorAvailable); got != 1 {
		t.Errorf("available = %f, want 1", got)
	}
	SetSensorAvailable(false)
	if got := testutil.ToFloat64(sensorAvailable); got != 0 {
		t.Errorf("unavailable = %f, want 0", got)
	}
}

func TestCaptureAndActuationCounters(t *testing.T) {
	ok := testutil.ToFloat64(capturesTotal.WithLabelValues("ok"))
	covered := testutil.ToFloat64(capturesTotal.WithLabelValues("covered"))
	acts := testutil.ToFloat64(actuationsTotal)

	RecordCapture("ok")
	RecordCapture("ok")
	RecordCapture("covered")
	RecordActuation()

	if got := testutil.ToFloat64(capturesTotal.WithLabelValues("ok")); got != ok+2 {
		t.Errorf("ok captures = %f, want %f", got, ok+2)
	}
	if got := testutil.ToFloat64(capturesTotal.WithLabelValues("covered")); got != covered+1 {
		t.Errorf("covered captures = %f, want %f", got, covered+1)
	}
	if got := testutil.ToFloat64(actuationsTotal); got != acts+1 {
		t.Errorf("actuations = %f, want %f", got, acts+1)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	SetAmbient(0.5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lumen_ambient_level") {
		t.Error("response does not expose lumen_ambient_level")
	}
}
