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

// Package metrics exposes daemon state as Prometheus metrics, served
// over the control socket.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	busMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumen_bus_messages_total",
			Help: "Total messages published on the event bus by topic",
		},
		[]string{"topic"},
	)

	ambientLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_ambient_level",
			Help: "Last compensated ambient brightness reading in [0, 1]",
		},
	)

	backlightLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_backlight_level",
			Help: "Last applied backlight level in [0, 1]",
		},
	)

	onBattery = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_on_battery",
			Help: "1 when running on battery, 0 on external power",
		},
	)

	daytimeBucket = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lumen_daytime_bucket",
			Help: "1 for the effective daytime bucket, 0 otherwise",
		},
		[]string{"bucket"},
	)

	calibrationPaused = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lumen_calibration_paused",
			Help: "1 while automatic calibration is paused for the reason, 0 otherwise",
		},
		[]string{"reason"},
	)

	sensorAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_sensor_available",
			Help: "1 while an ambient light sensor is usable, 0 otherwise",
		},
	)

	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumen_captures_total",
			Help: "Total ambient capture cycles by result (ok, covered, error)",
		},
		[]string{"result"},
	)

	actuationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumen_actuations_total",
			Help: "Total accepted backlight writes",
		},
	)
)

// daytimeBuckets are the label values daytimeBucket cycles through.
var daytimeBuckets = []string{"day", "night", "event"}

// RecordBusMessage counts a published bus message.
func RecordBusMessage(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	busMessages.WithLabelValues(topic).Inc()
}

// SetAmbient records the latest ambient brightness reading.
func SetAmbient(v float64) {
	ambientLevel.Set(v)
}

// SetBacklight records the latest applied backlight level.
func SetBacklight(v float64) {
	backlightLevel.Set(v)
}

// SetOnBattery records the power source.
func SetOnBattery(battery bool) {
	if battery {
		onBattery.Set(1)
	} else {
		onBattery.Set(0)
	}
}

// SetDaytime marks bucket as the effective daytime bucket.
func SetDaytime(bucket string) {
	for _, b := range daytimeBuckets {
		if b == bucket {
			daytimeBucket.WithLabelValues(b).Set(1)
		} else {
			daytimeBucket.WithLabelValues(b).Set(0)
		}
	}
}

// SetPaused records whether calibration is paused for the given reason.
func SetPaused(reason string, active bool) {
	if active {
		calibrationPaused.WithLabelValues(reason).Set(1)
	} else {
		calibrationPaused.WithLabelValues(reason).Set(0)
	}
}

// SetSensorAvailable records ambient sensor availability.
func SetSensorAvailable(available bool) {
	if available {
		sensorAvailable.Set(1)
	} else {
		sensorAvailable.Set(0)
	}
}

// RecordCapture counts one capture cycle with its result.
func RecordCapture(result string) {
	capturesTotal.WithLabelValues(result).Inc()
}

// RecordActuation counts one accepted backlight write.
func RecordActuation() {
	actuationsTotal.Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
