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

// Package display tracks the display dim state. Idle managers report
// dimming through the control API; this module owns the store's dim
// field and announces transitions, which pause automatic calibration.
package display

import (
	"log/slog"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
)

// Module is the display dim state producer.
type Module struct {
	rt     *module.Runtime
	logger *slog.Logger
	store  *state.Store
}

// New builds the module.
func New(store *state.Store) *Module {
	return &Module{store: store}
}

// Name implements module.Module.
func (m *Module) Name() string { return "display" }

// Init implements module.Module.
func (m *Module) Init(rt *module.Runtime) error {
	m.rt = rt
	m.logger = rt.Logger()
	rt.Subscribe(bus.TopicDisplayRequest)
	rt.SetReceive(m.receive)
	return nil
}

// Start implements module.Module. The display starts undimmed; there is
// nothing to announce.
func (m *Module) Start() error { return nil }

// Destroy implements module.Module.
func (m *Module) Destroy() {}

func (m *Module) receive(msg bus.Message) {
	if msg.Topic != bus.TopicDisplayRequest {
		return
	}
	if !m.rt.Fresh(msg) {
		m.logger.Debug("dropping superseded display request")
		return
	}
	req := msg.Data.(bus.DisplayRequest)
	if req.Dimmed == m.store.DisplayDimmed() {
		return
	}
	m.store.SetDisplayDimmed(req.Dimmed)
	m.logger.Info("display dim state changed", log.Bool("dimmed", req.Dimmed))
	m.rt.Publish(bus.TopicDisplayChanged, bus.DisplayChange{Dimmed: req.Dimmed})
}
