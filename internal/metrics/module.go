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

package metrics

import (
	"slices"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
)

// pauseReasons are the label values the pause gauge cycles through,
// matching the backlight module's reason names.
var pauseReasons = []string{"dimmed", "sensor", "autocalib", "lid"}

// Params configures the metrics module.
type Params struct {
	// State provides initial values for the gauges.
	State *state.Store

	// Pause reports the active calibration pause reason names. Optional.
	Pause func() []string
}

// Module mirrors bus traffic into the Prometheus gauges. It subscribes
// after the modules it observes, so gauges reflect post-transition
// state.
type Module struct {
	rt    *module.Runtime
	state *state.Store
	pause func() []string
}

// New builds the module.
func New(p Params) *Module {
	return &Module{state: p.State, pause: p.Pause}
}

// Name implements module.Module.
func (m *Module) Name() string { return "metrics" }

// Init implements module.Module.
func (m *Module) Init(rt *module.Runtime) error {
	m.rt = rt
	for _, t := range []bus.Topic{
		bus.TopicPowerChanged,
		bus.TopicDaytimeChanged,
		bus.TopicEventWindowChanged,
		bus.TopicAmbientChanged,
		bus.TopicBacklightChanged,
		bus.TopicDisplayChanged,
		bus.TopicLidChanged,
		bus.TopicSensorChanged,
		bus.TopicAutocalibRequest,
	} {
		rt.Subscribe(t)
	}
	rt.SetReceive(m.receive)
	return nil
}

// Start implements module.Module, priming the gauges from the store.
func (m *Module) Start() error {
	SetOnBattery(m.state.PowerSource() == bus.PowerBattery)
	SetDaytime(m.state.EffectiveBucket().String())
	SetAmbient(m.state.Ambient())
	SetBacklight(m.state.Backlight())
	SetSensorAvailable(m.state.SensorAvailable())
	m.syncPause()
	return nil
}

// Destroy implements module.Module.
func (m *Module) Destroy() {}

func (m *Module) receive(msg bus.Message) {
	switch msg.Topic {
	case bus.TopicPowerChanged:
		SetOnBattery(msg.Data.(bus.PowerChange).New == bus.PowerBattery)
	case bus.TopicDaytimeChanged, bus.TopicEventWindowChanged:
		SetDaytime(m.state.EffectiveBucket().String())
	case bus.TopicAmbientChanged:
		SetAmbient(msg.Data.(bus.AmbientChange).New)
	case bus.TopicBacklightChanged:
		SetBacklight(msg.Data.(bus.BacklightChange).New)
	case bus.TopicSensorChanged:
		SetSensorAvailable(msg.Data.(bus.SensorChange).New)
		m.syncPause()
	case bus.TopicDisplayChanged, bus.TopicLidChanged,
		bus.TopicAutocalibRequest:
		m.syncPause()
	}
}

func (m *Module) syncPause() {
	if m.pause == nil {
		return
	}
	active := m.pause()
	for _, r := range pauseReasons {
		SetPaused(r, slices.Contains(active, r))
	}
}
