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

package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
)

// queueSize bounds readings waiting for the writer. Inserts must never
// block the event loop, so overflow drops the reading instead.
const queueSize = 128

// Params configures the journal module.
type Params struct {
	// Store is the journal database.
	Store *Store

	// State provides power source and daytime context for readings.
	State *state.Store

	// Retention is how long readings are kept. Zero disables pruning.
	Retention time.Duration
}

// Module records ambient and backlight changes into the journal. Writes
// happen on a dedicated goroutine so database latency never stalls the
// event loop.
type Module struct {
	rt     *module.Runtime
	logger *slog.Logger

	store     *Store
	state     *state.Store
	retention time.Duration

	// pruneEvery is how often old readings are deleted.
	pruneEvery time.Duration

	queue chan Entry
	done  chan struct{}
	wg    sync.WaitGroup
}

// New builds the module.
func New(p Params) *Module {
	return &Module{
		store:      p.Store,
		state:      p.State,
		retention:  p.Retention,
		pruneEvery: time.Hour,
		queue:      make(chan Entry, queueSize),
		done:       make(chan struct{}),
	}
}

// Name implements module.Module.
func (m *Module) Name() string { return "journal" }

// Init implements module.Module.
func (m *Module) Init(rt *module.Runtime) error {
	m.rt = rt
	m.logger = rt.Logger()
	rt.Subscribe(bus.TopicAmbientChanged)
	rt.Subscribe(bus.TopicBacklightChanged)
	rt.SetReceive(m.receive)
	return nil
}

// Start implements module.Module.
func (m *Module) Start() error {
	m.wg.Add(1)
	go m.writer()
	return nil
}

// Destroy implements module.Module.
func (m *Module) Destroy() {
	close(m.done)
	m.wg.Wait()
}

func (m *Module) receive(msg bus.Message) {
	e := Entry{At: time.Now()}
	switch msg.Topic {
	case bus.TopicAmbientChanged:
		e.Kind = KindAmbient
		e.Value = msg.Data.(bus.AmbientChange).New
	case bus.TopicBacklightChanged:
		e.Kind = KindBacklight
		e.Value = msg.Data.(bus.BacklightChange).New
	default:
		return
	}
	e.Power = m.state.PowerSource().String()
	e.Daytime = m.state.EffectiveBucket().String()

	select {
	case m.queue <- e:
	default:
		m.logger.Debug("journal queue full, dropping reading",
			log.String("kind", e.Kind))
	}
}

func (m *Module) writer() {
	defer m.wg.Done()

	prune := time.NewTicker(m.pruneEvery)
	defer prune.Stop()

	m.pruneOnce()

	for {
		select {
		case e := <-m.queue:
			m.insert(e)
		case <-prune.C:
			m.pruneOnce()
		case <-m.done:
			// Flush whatever is already queued.
			for {
				select {
				case e := <-m.queue:
					m.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (m *Module) insert(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Insert(ctx, e); err != nil {
		m.logger.Warn("failed to journal reading", log.Error(err))
	}
}

func (m *Module) pruneOnce() {
	if m.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	count, err := m.store.DeleteOlderThan(ctx, time.Now().Add(-m.retention))
	if err != nil {
		m.logger.Warn("failed to prune journal", log.Error(err))
		return
	}
	if count > 0 {
		m.logger.Info("pruned old journal readings", log.Int("count", int(count)))
	}
}
