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
	"testing"
	"time"

	"github.com/tombee/lumen/internal/bus"
)

func TestCompareNoChanges(t *testing.T) {
	old := Default()
	new := Default()
	if d := Compare(old, new); !d.Empty() {
		t.Errorf("diff not empty: %+v", d)
	}
}

func TestCompareTimeouts(t *testing.T) {
	old := Default()
	new := Default()
	new.Backlight.Timeouts.AC.Day = 2 * time.Minute
	new.Backlight.Timeouts.Battery.Event = 15 * time.Minute

	d := Compare(old, new)
	if len(d.Timeouts) != 2 {
		t.Fatalf("timeouts = %+v, want 2 entries", d.Timeouts)
	}
	first := d.Timeouts[0]
	if first.Source != bus.PowerAC || first.Bucket != bus.BucketDay || first.Timeout != 2*time.Minute {
		t.Errorf("first change = %+v", first)
	}
	second := d.Timeouts[1]
	if second.Source != bus.PowerBattery || second.Bucket != bus.BucketEvent || second.Timeout != 15*time.Minute {
		t.Errorf("second change = %+v", second)
	}
	if len(d.Curves) != 0 || d.Autocalib != nil {
		t.Errorf("unexpected changes: %+v", d)
	}
}

func TestCompareCurves(t *testing.T) {
	old := Default()
	new := Default()
	new.Backlight.Curves.Battery = []float64{0.0, 0.4, 1.0}

	d := Compare(old, new)
	if len(d.Curves) != 1 {
		t.Fatalf("curves = %+v, want 1 entry", d.Curves)
	}
	change := d.Curves[0]
	if change.Source != bus.PowerBattery || len(change.Points) != 3 {
		t.Errorf("change = %+v", change)
	}

	// The diff owns its copy of the points.
	change.Points[0] = 0.9
	if new.Backlight.Curves.Battery[0] != 0.0 {
		t.Error("diff aliases the config slice")
	}
}

func TestCompareAutocalib(t *testing.T) {
	old := Default()
	new := Default()
	new.Backlight.NoAutoCalib = true

	d := Compare(old, new)
	if d.Autocalib == nil || !*d.Autocalib {
		t.Errorf("autocalib = %v", d.Autocalib)
	}

	// And back.
	d = Compare(new, old)
	if d.Autocalib == nil || *d.Autocalib {
		t.Errorf("autocalib = %v", d.Autocalib)
	}
}
