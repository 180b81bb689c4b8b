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

package bus

// Topic identifies a message category on the bus. The set is closed:
// modules and topics are wired once at daemon startup.
type Topic uint8

const (
	// TopicPowerChanged announces a power source transition (AC/battery).
	TopicPowerChanged Topic = iota
	// TopicDisplayChanged announces that the display dim state changed.
	TopicDisplayChanged
	// TopicLidChanged announces a lid open/close transition.
	TopicLidChanged
	// TopicDaytimeChanged announces a day/night bucket transition.
	TopicDaytimeChanged
	// TopicEventWindowChanged announces entering or leaving a sunrise/sunset
	// event window.
	TopicEventWindowChanged
	// TopicSensorChanged announces an ambient sensor availability transition.
	TopicSensorChanged
	// TopicAmbientChanged announces a new compensated ambient brightness reading.
	TopicAmbientChanged
	// TopicBacklightChanged announces that the backlight level changed.
	TopicBacklightChanged
	// TopicTimeoutRequest asks the backlight module to update one entry of
	// its capture timeout table.
	TopicTimeoutRequest
	// TopicCaptureRequest asks the backlight module for a capture cycle.
	TopicCaptureRequest
	// TopicCurveRequest asks the backlight module to replace calibration
	// points and refit the curve.
	TopicCurveRequest
	// TopicAutocalibRequest asks the backlight module to toggle automatic
	// calibration.
	TopicAutocalibRequest
	// TopicBacklightRequest asks the backlight module for an explicit
	// backlight write.
	TopicBacklightRequest
	// TopicDisplayRequest asks the display module to update the dim state.
	TopicDisplayRequest
	// TopicTimerFired is dispatched by the runtime directly to the module
	// owning the timer. It never fans out.
	TopicTimerFired
	// TopicSignal is dispatched by the runtime directly to the module
	// owning a signal watch. It never fans out.
	TopicSignal

	topicCount
)

var topicNames = [topicCount]string{
	TopicPowerChanged:       "power_changed",
	TopicDisplayChanged:     "display_changed",
	TopicLidChanged:         "lid_changed",
	TopicDaytimeChanged:     "daytime_changed",
	TopicEventWindowChanged: "event_window_changed",
	TopicSensorChanged:      "sensor_changed",
	TopicAmbientChanged:     "ambient_changed",
	TopicBacklightChanged:   "backlight_changed",
	TopicTimeoutRequest:     "timeout_request",
	TopicCaptureRequest:     "capture_request",
	TopicCurveRequest:       "curve_request",
	TopicAutocalibRequest:   "autocalib_request",
	TopicBacklightRequest:   "backlight_request",
	TopicDisplayRequest:     "display_request",
	TopicTimerFired:         "timer_fired",
	TopicSignal:             "signal",
}

// String returns the snake_case topic name used in logs and metrics.
func (t Topic) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return topicNames[t]
}

// Valid reports whether t is a member of the closed topic set.
func (t Topic) Valid() bool {
	return t < topicCount
}

// IsRequest reports whether messages on this topic carry a freshness
// generation. Request topics can be submitted from outside the loop and
// may be superseded before delivery; handlers drop stale ones.
func (t Topic) IsRequest() bool {
	switch t {
	case TopicTimeoutRequest, TopicCaptureRequest, TopicCurveRequest,
		TopicAutocalibRequest, TopicBacklightRequest, TopicDisplayRequest:
		return true
	}
	return false
}
