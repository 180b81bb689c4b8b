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
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tombee/lumen/internal/bus"
)

// maxBehaviorDepth caps the behavior stack at the base receive plus one
// override. The daemon's modes (warm-up, paused) never nest.
const maxBehaviorDepth = 2

// Runtime is a module's handle to the loop: subscriptions, publishing,
// behavior stacking, pause bookkeeping, and waitable sources. All
// methods except Lifecycle must be called on the loop goroutine.
type Runtime struct {
	name   string
	loop   *Loop
	logger *slog.Logger

	lifecycle atomic.Uint32

	behaviors []Behavior
	sources   map[Source]chan struct{}
}

func newRuntime(name string, loop *Loop, logger *slog.Logger) *Runtime {
	r := &Runtime{
		name:    name,
		loop:    loop,
		logger:  logger.With(slog.String("module", name)),
		sources: make(map[Source]chan struct{}),
	}
	r.lifecycle.Store(uint32(LifecycleInitializing))
	return r
}

// Name returns the owning module's name.
func (r *Runtime) Name() string {
	return r.name
}

// Logger returns a logger scoped to the owning module.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// Lifecycle returns the module's current lifecycle state. Safe for
// concurrent use; the control server reads it for status reporting.
func (r *Runtime) Lifecycle() Lifecycle {
	return Lifecycle(r.lifecycle.Load())
}

// SetReceive installs the base receive behavior. Must be called during
// Init, before any message can be dispatched.
func (r *Runtime) SetReceive(b Behavior) {
	if len(r.behaviors) == 0 {
		r.behaviors = append(r.behaviors, b)
		return
	}
	r.behaviors[0] = b
}

// Become pushes a temporary behavior override. Messages route to the
// top of the stack until Unbecome pops it.
func (r *Runtime) Become(b Behavior) error {
	if len(r.behaviors) == 0 {
		return fmt.Errorf("module %s: no base receive behavior set", r.name)
	}
	if len(r.behaviors) >= maxBehaviorDepth {
		return fmt.Errorf("module %s: behavior stack depth %d exceeded", r.name, maxBehaviorDepth)
	}
	r.behaviors = append(r.behaviors, b)
	return nil
}

// Unbecome pops the current behavior override. The base receive
// behavior can never be popped.
func (r *Runtime) Unbecome() error {
	if len(r.behaviors) <= 1 {
		return fmt.Errorf("module %s: no behavior override to pop", r.name)
	}
	r.behaviors = r.behaviors[:len(r.behaviors)-1]
	return nil
}

// SetPaused flips the lifecycle between Active and Paused. Driven by
// the owning module's pause/resume transitions; it has no effect after
// destruction.
func (r *Runtime) SetPaused(paused bool) {
	current := r.Lifecycle()
	if current != LifecycleActive && current != LifecyclePaused {
		return
	}
	if paused {
		r.lifecycle.Store(uint32(LifecyclePaused))
	} else {
		r.lifecycle.Store(uint32(LifecycleActive))
	}
}

// Subscribe routes a bus topic to this module. Messages are delivered
// to whichever behavior is on top of the stack at processing time.
func (r *Runtime) Subscribe(t bus.Topic) {
	r.loop.bus.Subscribe(t, r.dispatch)
}

// Publish sends an update message on the bus.
func (r *Runtime) Publish(t bus.Topic, data any) {
	r.loop.bus.Publish(bus.Message{Topic: t, Data: data})
}

// PublishRequest stamps and sends a request message on the bus.
func (r *Runtime) PublishRequest(t bus.Topic, data any) {
	r.loop.bus.Publish(r.loop.bus.NewRequest(t, data))
}

// Fresh reports whether a request message is still the latest for its
// topic. Handlers drop stale requests without acting.
func (r *Runtime) Fresh(msg bus.Message) bool {
	return r.loop.bus.Fresh(msg)
}

// AddSource registers a waitable source. A pump goroutine forwards its
// events into the loop, where they dispatch to this module's current
// behavior. Adding an already-registered source is a no-op.
func (r *Runtime) AddSource(s Source) {
	if _, ok := r.sources[s]; ok {
		return
	}
	stop := make(chan struct{})
	r.sources[s] = stop
	r.loop.startPump(r, s, stop)
}

// RemoveSource stops pumping a source. An event the pump already
// forwarded is still delivered afterwards; behaviors must tolerate one
// residual wakeup after removal.
func (r *Runtime) RemoveSource(s Source) {
	stop, ok := r.sources[s]
	if !ok {
		return
	}
	close(stop)
	delete(r.sources, s)
}

// removeAllSources stops every pump during destruction.
func (r *Runtime) removeAllSources() {
	for s, stop := range r.sources {
		close(stop)
		delete(r.sources, s)
	}
}

// dispatch delivers a message to the top of the behavior stack.
func (r *Runtime) dispatch(msg bus.Message) {
	if len(r.behaviors) == 0 {
		r.logger.Error("message dropped, no receive behavior",
			slog.String("topic", msg.Topic.String()))
		return
	}
	r.behaviors[len(r.behaviors)-1](msg)
}
