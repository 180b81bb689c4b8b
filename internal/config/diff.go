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

package config

import (
	"time"

	"github.com/tombee/lumen/internal/bus"
)

// Diff lists the runtime-tunable settings that changed between two
// configurations. Settings outside this set need a daemon restart.
type Diff struct {
	// Timeouts holds changed capture interval entries.
	Timeouts []TimeoutChange

	// Curves holds changed calibration point sets.
	Curves []CurveChange

	// Autocalib is the new disabled state, nil if unchanged.
	Autocalib *bool
}

// TimeoutChange is one changed capture interval entry.
type TimeoutChange struct {
	Source  bus.PowerSource
	Bucket  bus.DaytimeBucket
	Timeout time.Duration
}

// CurveChange is one changed calibration point set.
type CurveChange struct {
	Source bus.PowerSource
	Points []float64
}

// Empty reports whether nothing tunable changed.
func (d Diff) Empty() bool {
	return len(d.Timeouts) == 0 && len(d.Curves) == 0 && d.Autocalib == nil
}

// Compare extracts the tunable differences from old to new.
func Compare(old, new *Config) Diff {
	var d Diff

	sets := []struct {
		source   bus.PowerSource
		old, new TimeoutSet
	}{
		{bus.PowerAC, old.Backlight.Timeouts.AC, new.Backlight.Timeouts.AC},
		{bus.PowerBattery, old.Backlight.Timeouts.Battery, new.Backlight.Timeouts.Battery},
	}
	for _, s := range sets {
		if s.old.Day != s.new.Day {
			d.Timeouts = append(d.Timeouts, TimeoutChange{s.source, bus.BucketDay, s.new.Day})
		}
		if s.old.Night != s.new.Night {
			d.Timeouts = append(d.Timeouts, TimeoutChange{s.source, bus.BucketNight, s.new.Night})
		}
		if s.old.Event != s.new.Event {
			d.Timeouts = append(d.Timeouts, TimeoutChange{s.source, bus.BucketEvent, s.new.Event})
		}
	}

	curves := []struct {
		source   bus.PowerSource
		old, new []float64
	}{
		{bus.PowerAC, old.Backlight.Curves.AC, new.Backlight.Curves.AC},
		{bus.PowerBattery, old.Backlight.Curves.Battery, new.Backlight.Curves.Battery},
	}
	for _, c := range curves {
		if !samePoints(c.old, c.new) {
			d.Curves = append(d.Curves, CurveChange{
				Source: c.source,
				Points: append([]float64(nil), c.new...),
			})
		}
	}

	if old.Backlight.NoAutoCalib != new.Backlight.NoAutoCalib {
		disabled := new.Backlight.NoAutoCalib
		d.Autocalib = &disabled
	}

	return d
}

func samePoints(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
