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

// Package state holds the daemon's shared runtime state. Each field
// has exactly one writing module; everything else reads. The control
// server and metrics read snapshots from their own goroutines, so
// access is guarded even though writes only happen on the loop.
package state

import (
	"sync"
	"time"

	"github.com/tombee/lumen/internal/bus"
)

// Store is the daemon's current view of the world.
type Store struct {
	mu sync.RWMutex

	power           bus.PowerSource
	daytime         bus.DaytimeBucket
	inEvent         bool
	lidClosed       bool
	displayDimmed   bool
	sensorAvailable bool
	sensorName      string
	ambient         float64
	backlight       float64
	screenComp      float64
	nextCapture     time.Time
	effTimeout      time.Duration
	curveCoeffs     [bus.PowerSourceCount][3]float64
}

// Snapshot is a point-in-time copy of the store, shaped for the
// control API.
type Snapshot struct {
	PowerSource     string    `json:"power_source"`
	Daytime         string    `json:"daytime"`
	InEventWindow   bool      `json:"in_event_window"`
	LidClosed       bool      `json:"lid_closed"`
	DisplayDimmed   bool      `json:"display_dimmed"`
	SensorAvailable bool      `json:"sensor_available"`
	SensorName      string    `json:"sensor_name,omitempty"`
	Ambient         float64   `json:"ambient"`
	Backlight       float64   `json:"backlight"`
	NextCapture     *time.Time `json:"next_capture,omitempty"`

	// EffectiveTimeout is the capture interval the current power source
	// and daytime bucket select, as a duration string; "0s" while the
	// automatic cycle is disabled or paused.
	EffectiveTimeout string `json:"effective_timeout"`

	// CurveCoefficients are the fitted quadratic coefficients per power
	// source, lowest order first.
	CurveCoefficients map[string][]float64 `json:"curve_coefficients,omitempty"`
}

// NewStore creates a store with zero values: AC power, day bucket,
// everything else off.
func NewStore() *Store {
	return &Store{}
}

// SetPowerSource records the power source. Writer: upower module.
func (s *Store) SetPowerSource(p bus.PowerSource) {
	s.mu.Lock()
	s.power = p
	s.mu.Unlock()
}

// PowerSource returns the current power source.
func (s *Store) PowerSource() bus.PowerSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.power
}

// SetDaytime records the natural daytime bucket. Writer: daytime module.
func (s *Store) SetDaytime(b bus.DaytimeBucket) {
	s.mu.Lock()
	s.daytime = b
	s.mu.Unlock()
}

// Daytime returns the natural daytime bucket (never BucketEvent).
func (s *Store) Daytime() bus.DaytimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daytime
}

// SetInEvent records the event window flag. Writer: daytime module.
func (s *Store) SetInEvent(in bool) {
	s.mu.Lock()
	s.inEvent = in
	s.mu.Unlock()
}

// InEvent reports whether a sunrise/sunset event window is active.
func (s *Store) InEvent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inEvent
}

// EffectiveBucket returns the bucket used for timeout selection: the
// event bucket while a window is active, the natural bucket otherwise.
func (s *Store) EffectiveBucket() bus.DaytimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.inEvent {
		return bus.BucketEvent
	}
	return s.daytime
}

// SetLidClosed records the lid state. Writer: lid module.
func (s *Store) SetLidClosed(closed bool) {
	s.mu.Lock()
	s.lidClosed = closed
	s.mu.Unlock()
}

// LidClosed reports whether the lid is closed.
func (s *Store) LidClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lidClosed
}

// SetDisplayDimmed records the display dim state. Writer: display module.
func (s *Store) SetDisplayDimmed(dimmed bool) {
	s.mu.Lock()
	s.displayDimmed = dimmed
	s.mu.Unlock()
}

// DisplayDimmed reports whether the display is dimmed.
func (s *Store) DisplayDimmed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayDimmed
}

// SetSensor records sensor availability and name. Writer: backlight module.
func (s *Store) SetSensor(available bool, name string) {
	s.mu.Lock()
	s.sensorAvailable = available
	s.sensorName = name
	s.mu.Unlock()
}

// SensorAvailable reports whether an ambient sensor is usable.
func (s *Store) SensorAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensorAvailable
}

// SetAmbient records the latest compensated ambient brightness.
// Writer: backlight module.
func (s *Store) SetAmbient(v float64) {
	s.mu.Lock()
	s.ambient = v
	s.mu.Unlock()
}

// Ambient returns the latest compensated ambient brightness.
func (s *Store) Ambient() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambient
}

// SetBacklight records the current backlight level. Writer: backlight
// module (tracking both its own writes and external changes signalled
// by the hardware service).
func (s *Store) SetBacklight(v float64) {
	s.mu.Lock()
	s.backlight = v
	s.mu.Unlock()
}

// Backlight returns the current backlight level.
func (s *Store) Backlight() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backlight
}

// SetScreenComp records the static screen content contribution
// subtracted from raw ambient readings. Writer: daemon setup.
func (s *Store) SetScreenComp(v float64) {
	s.mu.Lock()
	s.screenComp = v
	s.mu.Unlock()
}

// ScreenComp returns the screen content contribution.
func (s *Store) ScreenComp() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screenComp
}

// SetNextCapture records when the next automatic capture is due, or the
// zero time when the capture timer is disarmed. Writer: backlight module.
func (s *Store) SetNextCapture(at time.Time) {
	s.mu.Lock()
	s.nextCapture = at
	s.mu.Unlock()
}

// SetEffectiveTimeout records the capture interval currently driving
// the automatic cycle. Writer: backlight module.
func (s *Store) SetEffectiveTimeout(d time.Duration) {
	s.mu.Lock()
	s.effTimeout = d
	s.mu.Unlock()
}

// EffectiveTimeout returns the capture interval currently driving the
// automatic cycle.
func (s *Store) EffectiveTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effTimeout
}

// SetCurveCoeffs records the fitted calibration coefficients for one
// power source. Writer: backlight module.
func (s *Store) SetCurveCoeffs(p bus.PowerSource, c [3]float64) {
	if !bus.ValidPowerSource(p) {
		return
	}
	s.mu.Lock()
	s.curveCoeffs[p] = c
	s.mu.Unlock()
}

// CurveCoeffs returns the fitted calibration coefficients for one power
// source, lowest order first.
func (s *Store) CurveCoeffs(p bus.PowerSource) [3]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !bus.ValidPowerSource(p) {
		return [3]float64{}
	}
	return s.curveCoeffs[p]
}

// Snapshot returns a copy of the store for status reporting.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var next *time.Time
	if !s.nextCapture.IsZero() {
		at := s.nextCapture
		next = &at
	}
	coeffs := make(map[string][]float64, bus.PowerSourceCount)
	for p := 0; p < bus.PowerSourceCount; p++ {
		c := s.curveCoeffs[p]
		coeffs[bus.PowerSource(p).String()] = []float64{c[0], c[1], c[2]}
	}
	return Snapshot{
		PowerSource:     s.power.String(),
		Daytime:         s.daytime.String(),
		InEventWindow:   s.inEvent,
		LidClosed:       s.lidClosed,
		DisplayDimmed:   s.displayDimmed,
		SensorAvailable: s.sensorAvailable,
		SensorName:      s.sensorName,
		Ambient:         s.ambient,
		Backlight:       s.backlight,
		NextCapture:     next,

		EffectiveTimeout:  s.effTimeout.String(),
		CurveCoefficients: coeffs,
	}
}
