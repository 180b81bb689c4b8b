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

import (
	"fmt"
	"time"
)

// PowerSource identifies where the machine draws power from.
type PowerSource uint8

const (
	// PowerAC means the machine runs on external power.
	PowerAC PowerSource = iota
	// PowerBattery means the machine runs on battery.
	PowerBattery

	powerSourceCount
)

// String returns the power source name used in logs and config files.
func (p PowerSource) String() string {
	switch p {
	case PowerAC:
		return "ac"
	case PowerBattery:
		return "battery"
	}
	return "unknown"
}

// ParsePowerSource maps a power source name back to its value.
func ParsePowerSource(name string) (PowerSource, error) {
	switch name {
	case "ac":
		return PowerAC, nil
	case "battery":
		return PowerBattery, nil
	}
	return 0, fmt.Errorf("unknown power source %q", name)
}

// ValidPowerSource reports whether p names a known power source.
func ValidPowerSource(p PowerSource) bool {
	return p < powerSourceCount
}

// PowerSourceCount is the number of power sources, for table sizing.
const PowerSourceCount = int(powerSourceCount)

// DaytimeBucket partitions the day for timeout selection.
type DaytimeBucket uint8

const (
	// BucketDay covers sunrise to sunset.
	BucketDay DaytimeBucket = iota
	// BucketNight covers sunset to sunrise.
	BucketNight
	// BucketEvent is the effective bucket while inside a sunrise/sunset
	// event window. It takes precedence over the natural day/night bucket.
	BucketEvent

	bucketCount
)

// String returns the bucket name used in logs and config files.
func (b DaytimeBucket) String() string {
	switch b {
	case BucketDay:
		return "day"
	case BucketNight:
		return "night"
	case BucketEvent:
		return "event"
	}
	return "unknown"
}

// ParseDaytimeBucket maps a bucket name back to its value.
func ParseDaytimeBucket(name string) (DaytimeBucket, error) {
	switch name {
	case "day":
		return BucketDay, nil
	case "night":
		return BucketNight, nil
	case "event":
		return BucketEvent, nil
	}
	return 0, fmt.Errorf("unknown daytime bucket %q", name)
}

// ValidBucket reports whether b names a known daytime bucket.
func ValidBucket(b DaytimeBucket) bool {
	return b < bucketCount
}

// BucketCount is the number of daytime buckets, for table sizing.
const BucketCount = int(bucketCount)

// PowerChange is the payload of TopicPowerChanged.
type PowerChange struct {
	Old PowerSource
	New PowerSource
}

// DisplayChange is the payload of TopicDisplayChanged.
type DisplayChange struct {
	Dimmed bool
}

// LidChange is the payload of TopicLidChanged.
type LidChange struct {
	Closed bool
}

// DaytimeChange is the payload of TopicDaytimeChanged. Old carries the
// previous natural bucket so consumers can rescale interval timers.
type DaytimeChange struct {
	Old DaytimeBucket
	New DaytimeBucket
}

// EventWindowChange is the payload of TopicEventWindowChanged.
type EventWindowChange struct {
	Active bool
}

// SensorChange is the payload of TopicSensorChanged. Sensor names the
// device reported by the hardware service, when known.
type SensorChange struct {
	Old    bool
	New    bool
	Sensor string
}

// AmbientChange is the payload of TopicAmbientChanged. Values are
// compensated ambient brightness in [0, 1].
type AmbientChange struct {
	Old float64
	New float64
}

// BacklightChange is the payload of TopicBacklightChanged. Values are
// normalized backlight levels in [0, 1]. The smoothing fields echo the
// transition the write used; they are zero for externally observed
// changes, which arrive already applied.
type BacklightChange struct {
	Old float64
	New float64

	Smooth    bool
	Step      float64
	StepDelay time.Duration
}

// TimeoutRequest is the payload of TopicTimeoutRequest. A non-positive
// Timeout disables automatic captures for that table entry.
type TimeoutRequest struct {
	Source  PowerSource
	Bucket  DaytimeBucket
	Timeout time.Duration
}

// CaptureRequest is the payload of TopicCaptureRequest. ResetTimer asks
// for the periodic timer to restart after the cycle; CaptureOnly skips
// the backlight write.
type CaptureRequest struct {
	ResetTimer  bool
	CaptureOnly bool
}

// CurveRequest is the payload of TopicCurveRequest. Nil Points refits
// the currently stored points (used when the mapping inputs change
// without new measurements).
type CurveRequest struct {
	Source PowerSource
	Points []float64
}

// AutocalibRequest is the payload of TopicAutocalibRequest.
type AutocalibRequest struct {
	Disabled bool
}

// BacklightRequest is the payload of TopicBacklightRequest. Level is a
// normalized target; Smooth selects a stepped transition with Step
// increments every StepDelay.
type BacklightRequest struct {
	Level     float64
	Smooth    bool
	Step      float64
	StepDelay time.Duration
}

// DisplayRequest is the payload of TopicDisplayRequest.
type DisplayRequest struct {
	Dimmed bool
}

// TimerFired is the payload of TopicTimerFired, dispatched directly to
// the module owning the named timer.
type TimerFired struct {
	Name string
}

// SignalEvent is the payload of TopicSignal, dispatched directly to the
// module owning the watch. Name is the fully qualified member, Body the
// decoded signal arguments.
type SignalEvent struct {
	Name string
	Path string
	Body []interface{}
}
