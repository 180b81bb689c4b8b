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

package daytime

import (
	"time"

	"github.com/tombee/lumen/internal/bus"
)

// schedule holds the solar times as offsets from local midnight plus
// the half-width of the event window around each.
type schedule struct {
	sunrise time.Duration
	sunset  time.Duration
	event   time.Duration
}

// at returns the natural bucket and event window state at t. The bucket
// is day within [sunrise, sunset) and night otherwise; the event window
// extends the configured duration to both sides of each solar event,
// including windows spilling over from the previous or next day.
func (s schedule) at(t time.Time) (bus.DaytimeBucket, bool) {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	sunrise := midnight.Add(s.sunrise)
	sunset := midnight.Add(s.sunset)

	bucket := bus.BucketNight
	if !t.Before(sunrise) && t.Before(sunset) {
		bucket = bus.BucketDay
	}

	inEvent := false
	for day := -1; day <= 1; day++ {
		base := midnight.AddDate(0, 0, day)
		for _, ev := range []time.Time{base.Add(s.sunrise), base.Add(s.sunset)} {
			d := t.Sub(ev)
			if d < 0 {
				d = -d
			}
			if d <= s.event {
				inEvent = true
			}
		}
	}
	return bucket, inEvent
}

// next returns the earliest instant strictly after t where the bucket
// or the event window state can change: the edges of each event window
// and the events themselves.
func (s schedule) next(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	var best time.Time
	for day := -1; day <= 1; day++ {
		base := midnight.AddDate(0, 0, day)
		for _, ev := range []time.Time{base.Add(s.sunrise), base.Add(s.sunset)} {
			for _, b := range []time.Time{ev.Add(-s.event), ev, ev.Add(s.event)} {
				if !b.After(t) {
					continue
				}
				if best.IsZero() || b.Before(best) {
					best = b
				}
			}
		}
	}
	return best
}
