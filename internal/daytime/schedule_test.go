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
	"testing"
	"time"

	"github.com/tombee/lumen/internal/bus"
)

// testSched is sunrise 07:00, sunset 19:00, 30 minute event windows.
var testSched = schedule{
	sunrise: 7 * time.Hour,
	sunset:  19 * time.Hour,
	event:   30 * time.Minute,
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 11, hour, min, 0, 0, time.UTC)
}

func TestScheduleAt(t *testing.T) {
	tests := []struct {
		name    string
		t       time.Time
		bucket  bus.DaytimeBucket
		inEvent bool
	}{
		{"noon", at(12, 0), bus.BucketDay, false},
		{"deep night", at(3, 0), bus.BucketNight, false},
		{"before sunrise in window", at(6, 45), bus.BucketNight, true},
		{"sunrise exactly", at(7, 0), bus.BucketDay, true},
		{"after sunrise in window", at(7, 15), bus.BucketDay, true},
		{"window edge", at(7, 30), bus.BucketDay, true},
		{"past window edge", at(7, 31), bus.BucketDay, false},
		{"before sunset in window", at(18, 40), bus.BucketDay, true},
		{"sunset exactly", at(19, 0), bus.BucketNight, true},
		{"after sunset outside window", at(19, 45), bus.BucketNight, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, inEvent := testSched.at(tt.t)
			if bucket != tt.bucket || inEvent != tt.inEvent {
				t.Errorf("at(%s) = %s/%v, want %s/%v",
					tt.t.Format("15:04"), bucket, inEvent, tt.bucket, tt.inEvent)
			}
		})
	}
}

func TestScheduleAtCrossesMidnight(t *testing.T) {
	// A sunset window reaching past midnight is still active early the
	// next day.
	s := schedule{sunrise: 7 * time.Hour, sunset: 23*time.Hour + 50*time.Minute, event: 30 * time.Minute}

	bucket, inEvent := s.at(at(0, 10))
	if bucket != bus.BucketNight {
		t.Errorf("bucket = %s, want night", bucket)
	}
	if !inEvent {
		t.Error("previous day's sunset window not honored after midnight")
	}
}

func TestScheduleNext(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"noon waits for sunset window", at(12, 0), at(18, 30)},
		{"inside window waits for the event", at(18, 45), at(19, 0)},
		{"after the event waits for window end", at(19, 10), at(19, 30)},
		{"late night rolls to next sunrise window", at(23, 0), at(6, 30).AddDate(0, 0, 1)},
		{"boundary itself is not next", at(18, 30), at(19, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testSched.next(tt.t); !got.Equal(tt.want) {
				t.Errorf("next(%s) = %s, want %s",
					tt.t.Format("15:04"), got.Format(time.RFC3339), tt.want.Format(time.RFC3339))
			}
		})
	}
}
