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

// Package daytime drives the day/night schedule from configured sunrise
// and sunset times. It announces bucket transitions and the event
// windows around each solar event, during which ambient light changes
// fastest and captures run more often.
package daytime

import (
	"log/slog"
	"time"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/config"
	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
	"github.com/tombee/lumen/internal/timer"
)

// Module is the daytime producer. It owns the store's daytime and
// event window fields.
type Module struct {
	rt     *module.Runtime
	logger *slog.Logger

	store *state.Store
	sched schedule

	timer    *timer.Handle
	timerSrc module.Source

	bucket  bus.DaytimeBucket
	inEvent bool

	// now is replaceable for tests.
	now func() time.Time
}

// New builds the module from a validated configuration.
func New(cfg *config.Config, store *state.Store) *Module {
	m := &Module{
		store: store,
		sched: schedule{
			sunrise: cfg.Daytime.SunriseOffset(),
			sunset:  cfg.Daytime.SunsetOffset(),
			event:   cfg.Daytime.EventDuration,
		},
		timer: timer.New("daytime-transition"),
		now:   time.Now,
	}
	m.timerSrc = module.TimerSource(m.timer)
	return m
}

// Name implements module.Module.
func (m *Module) Name() string { return "daytime" }

// Init implements module.Module.
func (m *Module) Init(rt *module.Runtime) error {
	m.rt = rt
	m.logger = rt.Logger()
	rt.SetReceive(m.receive)
	rt.AddSource(m.timerSrc)
	return nil
}

// Start evaluates the schedule, announces the initial bucket and event
// window, and arms the transition timer.
func (m *Module) Start() error {
	t := m.now()
	m.bucket, m.inEvent = m.sched.at(t)
	m.store.SetDaytime(m.bucket)
	m.store.SetInEvent(m.inEvent)

	next := m.sched.next(t)
	m.logger.Info("daytime schedule started",
		log.String("bucket", m.bucket.String()),
		log.Bool("in_event", m.inEvent),
		log.String("next_transition", next.Format(time.RFC3339)))

	m.rt.Publish(bus.TopicDaytimeChanged, bus.DaytimeChange{Old: m.bucket, New: m.bucket})
	m.rt.Publish(bus.TopicEventWindowChanged, bus.EventWindowChange{Active: m.inEvent})

	m.timer.Arm(next.Sub(t))
	return nil
}

// Destroy implements module.Module.
func (m *Module) Destroy() {
	m.timer.Disarm()
}

func (m *Module) receive(msg bus.Message) {
	if msg.Topic != bus.TopicTimerFired {
		return
	}
	t := m.now()
	m.apply(t)
	m.timer.Arm(m.sched.next(t).Sub(t))
}

// apply re-evaluates the schedule and announces whatever changed.
func (m *Module) apply(t time.Time) {
	bucket, inEvent := m.sched.at(t)

	if bucket != m.bucket {
		old := m.bucket
		m.bucket = bucket
		m.store.SetDaytime(bucket)
		m.logger.Info("daytime changed",
			log.String("from", old.String()),
			log.String("to", bucket.String()))
		m.rt.Publish(bus.TopicDaytimeChanged, bus.DaytimeChange{Old: old, New: bucket})
	}

	if inEvent != m.inEvent {
		m.inEvent = inEvent
		m.store.SetInEvent(inEvent)
		m.logger.Info("event window changed", log.Bool("active", inEvent))
		m.rt.Publish(bus.TopicEventWindowChanged, bus.EventWindowChange{Active: inEvent})
	}
}
