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

package module

import (
	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/timer"
)

// Source is a waitable event source owned by a module. The loop pumps
// each registered source on its own goroutine and dispatches the
// yielded messages to the owning module.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Wait blocks until the next event or until stop is closed. It
	// returns ok=false when the source yielded nothing and the pump
	// should exit.
	Wait(stop <-chan struct{}) (bus.Message, bool)
}

// timerSource adapts a timer handle into a Source yielding
// TopicTimerFired messages.
type timerSource struct {
	h *timer.Handle
}

// TimerSource wraps a timer handle for registration with AddSource.
// Wrap each handle once and reuse the Source across register and
// deregister cycles.
func TimerSource(h *timer.Handle) Source {
	return &timerSource{h: h}
}

func (s *timerSource) Name() string {
	return s.h.Name()
}

func (s *timerSource) Wait(stop <-chan struct{}) (bus.Message, bool) {
	select {
	case <-s.h.C():
		return bus.Message{
			Topic: bus.TopicTimerFired,
			Data:  bus.TimerFired{Name: s.h.Name()},
		}, true
	case <-stop:
		return bus.Message{}, false
	}
}
