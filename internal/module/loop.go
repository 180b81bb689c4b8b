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
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tombee/lumen/internal/bus"
)

// workQueueSize bounds events waiting for the loop. Sources block when
// it fills, which throttles producers instead of dropping events.
const workQueueSize = 256

// Loop runs every registered module on one goroutine. Modules are
// registered before Run; the set is fixed for the daemon's life.
type Loop struct {
	logger *slog.Logger
	bus    *bus.Bus

	entries []loopEntry

	work chan func()
	done chan struct{}

	pumps   sync.WaitGroup
	running atomic.Bool
}

type loopEntry struct {
	mod Module
	rt  *Runtime
}

// NewLoop creates a loop around the given bus.
func NewLoop(b *bus.Bus, logger *slog.Logger) *Loop {
	return &Loop{
		logger: logger.With(slog.String("component", "loop")),
		bus:    b,
		work:   make(chan func(), workQueueSize),
		done:   make(chan struct{}),
	}
}

// Bus returns the loop's message bus, used to stamp requests before
// injection.
func (l *Loop) Bus() *bus.Bus {
	return l.bus
}

// Add registers a module and runs its Init. Registration order is
// start order; destruction runs in reverse.
func (l *Loop) Add(m Module) error {
	if l.running.Load() {
		return fmt.Errorf("loop already running, cannot add module %s", m.Name())
	}
	rt := newRuntime(m.Name(), l, l.logger)
	if err := m.Init(rt); err != nil {
		return fmt.Errorf("init module %s: %w", m.Name(), err)
	}
	l.entries = append(l.entries, loopEntry{mod: m, rt: rt})
	return nil
}

// Runtime returns the runtime of a registered module, or nil. Used by
// the control server for lifecycle reporting.
func (l *Loop) Runtime(name string) *Runtime {
	for _, e := range l.entries {
		if e.mod.Name() == name {
			return e.rt
		}
	}
	return nil
}

// ModuleStates returns the lifecycle of every registered module, in
// registration order. Safe for concurrent use.
func (l *Loop) ModuleStates() map[string]Lifecycle {
	states := make(map[string]Lifecycle, len(l.entries))
	for _, e := range l.entries {
		states[e.mod.Name()] = e.rt.Lifecycle()
	}
	return states
}

// Run starts every module in registration order, then processes events
// until ctx is cancelled. On return all modules are destroyed and all
// source pumps have exited.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("loop already running")
	}
	defer l.teardown()

	for _, e := range l.entries {
		e.rt.lifecycle.Store(uint32(LifecycleActive))
		if err := e.mod.Start(); err != nil {
			return fmt.Errorf("start module %s: %w", e.mod.Name(), err)
		}
	}

	l.logger.Info("loop started", slog.Int("modules", len(l.entries)))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping")
			return nil
		case fn := <-l.work:
			fn()
		}
	}
}

// Inject queues a stamped message for publication on the loop
// goroutine. Safe for concurrent use; messages injected during
// shutdown are dropped.
func (l *Loop) Inject(msg bus.Message) {
	select {
	case l.work <- func() { l.bus.Publish(msg) }:
	case <-l.done:
	}
}

// submit queues a closure for the loop goroutine. Returns false once
// the loop has shut down.
func (l *Loop) submit(fn func()) bool {
	select {
	case l.work <- fn:
		return true
	case <-l.done:
		return false
	}
}

// startPump runs a source pump until its stop channel closes or the
// loop shuts down.
func (l *Loop) startPump(r *Runtime, s Source, stop chan struct{}) {
	l.pumps.Add(1)
	go func() {
		defer l.pumps.Done()
		for {
			msg, ok := s.Wait(stop)
			if !ok {
				return
			}
			if !l.submit(func() { r.dispatch(msg) }) {
				return
			}
		}
	}()
}

// teardown destroys modules in reverse registration order and joins
// every pump goroutine.
func (l *Loop) teardown() {
	close(l.done)
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		e.mod.Destroy()
		e.rt.removeAllSources()
		e.rt.lifecycle.Store(uint32(LifecycleDestroyed))
	}
	l.pumps.Wait()
	l.logger.Info("loop stopped")
}
