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

package sysbus

import (
	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/module"
)

// Source adapts the watch into an event source for the module loop.
// Each signal is delivered to the owning module as a SignalEvent.
func (w *Watch) Source() module.Source {
	return watchSource{w}
}

type watchSource struct {
	w *Watch
}

func (s watchSource) Name() string {
	return s.w.name
}

func (s watchSource) Wait(stop <-chan struct{}) (bus.Message, bool) {
	select {
	case sig, ok := <-s.w.C:
		if !ok {
			return bus.Message{}, false
		}
		return bus.Message{
			Topic: bus.TopicSignal,
			Data: bus.SignalEvent{
				Name: sig.Name,
				Path: string(sig.Path),
				Body: sig.Body,
			},
		}, true
	case <-stop:
		return bus.Message{}, false
	}
}
