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

// Package timer provides the one-shot timer handle used by modules for
// periodic work. A handle is created once at module activation and only
// ever rescheduled; rearming replaces any pending expiration so a
// consumer never sees a stale tick from a superseded schedule.
package timer

import (
	"sync"
	"time"
)

// Handle is a single one-shot timer. All schedule operations are safe
// for concurrent use with a consumer receiving from C.
type Handle struct {
	name string

	mu sync.Mutex
	t  *time.Timer
	c  <-chan time.Time

	armed   bool
	armedAt time.Time
	dur     time.Duration

	// periodStart marks the beginning of the current logical period.
	// Arm starts a new period; RearmFrom reschedules within the same
	// period, deducting time already served.
	periodStart time.Time
}

// New creates a disarmed handle.
func New(name string) *Handle {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &Handle{name: name, t: t, c: t.C}
}

// Name returns the handle name, used in dispatch payloads and logs.
func (h *Handle) Name() string {
	return h.name
}

// C returns the expiration channel. At most one tick is pending at any
// time.
func (h *Handle) C() <-chan time.Time {
	return h.c
}

// Arm schedules the timer to fire after d, starting a new period. A
// non-positive d disarms instead.
func (h *Handle) Arm(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d <= 0 {
		h.disarmLocked()
		return
	}
	h.armLocked(d)
	h.periodStart = h.armedAt
}

// ArmImmediate schedules the timer to fire as soon as possible,
// starting a new period. Used for "capture now" transitions.
func (h *Handle) ArmImmediate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armLocked(time.Nanosecond)
	h.periodStart = h.armedAt
}

// Disarm cancels any pending expiration.
func (h *Handle) Disarm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disarmLocked()
}

// RearmFrom reschedules the current period against a new total duration
// d, preserving time already elapsed in the period. If the elapsed time
// meets or exceeds d the timer fires immediately. A non-positive d
// disarms. A disarmed handle is armed fresh for the full duration.
func (h *Handle) RearmFrom(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d <= 0 {
		h.disarmLocked()
		return
	}
	if !h.armed || h.periodStart.IsZero() {
		h.armLocked(d)
		h.periodStart = h.armedAt
		return
	}
	remaining := d - time.Since(h.periodStart)
	if remaining <= 0 {
		h.armLocked(time.Nanosecond)
		return
	}
	h.armLocked(remaining)
}

// Armed reports whether the last schedule operation was an arm. The
// handle cannot observe consumption of a fired tick, so Armed stays
// true between a fire and the next schedule operation.
func (h *Handle) Armed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.armed
}

// Remaining returns the time left until the scheduled expiration, or
// zero if the handle is disarmed or overdue.
func (h *Handle) Remaining() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.armed {
		return 0
	}
	rem := h.dur - time.Since(h.armedAt)
	if rem < 0 {
		return 0
	}
	return rem
}

// armLocked resets the underlying timer, discarding any unconsumed
// tick from a previous schedule.
func (h *Handle) armLocked(d time.Duration) {
	h.stopAndDrainLocked()
	h.t.Reset(d)
	h.armed = true
	h.armedAt = time.Now()
	h.dur = d
}

func (h *Handle) disarmLocked() {
	h.stopAndDrainLocked()
	h.armed = false
	h.periodStart = time.Time{}
}

func (h *Handle) stopAndDrainLocked() {
	if !h.t.Stop() {
		select {
		case <-h.c:
		default:
		}
	}
}
