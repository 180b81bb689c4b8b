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

package backlight

import (
	"strings"
	"sync/atomic"
)

// PauseReason is one independent cause for suspending automatic
// calibration. Reasons accumulate: the module resumes only when every
// reason has cleared.
type PauseReason uint8

const (
	// PauseDimmed pauses while the display is dimmed, so calibration
	// never fights an idle dimmer.
	PauseDimmed PauseReason = 1 << iota

	// PauseSensor pauses while no ambient light sensor is usable.
	PauseSensor

	// PauseAutocalib pauses while automatic calibration is disabled by
	// configuration or request.
	PauseAutocalib

	// PauseLid pauses while the lid is closed, for sensors the lid
	// covers.
	PauseLid
)

// String returns the reason name used in logs.
func (r PauseReason) String() string {
	switch r {
	case PauseDimmed:
		return "dimmed"
	case PauseSensor:
		return "sensor"
	case PauseAutocalib:
		return "autocalib"
	case PauseLid:
		return "lid"
	}
	return "unknown"
}

// PauseSet is the set of active pause reasons. Zero means calibration
// runs.
type PauseSet uint8

// Has reports whether reason r is active.
func (s PauseSet) Has(r PauseReason) bool {
	return s&PauseSet(r) != 0
}

// With returns the set with reason r present or absent.
func (s PauseSet) With(r PauseReason, on bool) PauseSet {
	if on {
		return s | PauseSet(r)
	}
	return s &^ PauseSet(r)
}

// Names returns the active reason names, in declaration order. Empty
// for the zero set.
func (s PauseSet) Names() []string {
	var names []string
	for _, r := range []PauseReason{PauseDimmed, PauseSensor, PauseAutocalib, PauseLid} {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return names
}

// String returns the active reasons joined for logging, or "none".
func (s PauseSet) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "+")
}

// pauseState holds the active pause set. Writes happen only on the
// event loop; the atomic load lets the control server read it.
type pauseState struct {
	v atomic.Uint32
}

func (p *pauseState) get() PauseSet  { return PauseSet(p.v.Load()) }
func (p *pauseState) set(s PauseSet) { p.v.Store(uint32(s)) }
