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

// Package upower tracks the machine's power source through the UPower
// system service and announces AC/battery transitions on the bus.
package upower

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
	"github.com/tombee/lumen/internal/sysbus"
)

// UPower service coordinates.
const (
	Service   = "org.freedesktop.UPower"
	Path      = dbus.ObjectPath("/org/freedesktop/UPower")
	Interface = "org.freedesktop.UPower"

	propOnBattery = "OnBattery"
)

// Reader reads the current power supply state.
type Reader interface {
	OnBattery(ctx context.Context) (bool, error)
}

type busReader struct {
	router *sysbus.Router
}

// NewReader returns a Reader backed by the system bus.
func NewReader(router *sysbus.Router) Reader {
	return &busReader{router: router}
}

func (r *busReader) OnBattery(_ context.Context) (bool, error) {
	v, err := r.router.GetProperty(Service, Path, Interface+"."+propOnBattery)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", propOnBattery, err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("read %s: unexpected type %T", propOnBattery, v.Value())
	}
	return b, nil
}

// Watch opens the PropertiesChanged watch for the UPower object.
func Watch(router *sysbus.Router) (*sysbus.Watch, error) {
	return router.WatchProperties(Path)
}

// Params carries the module's dependencies.
type Params struct {
	Reader Reader
	Store  *state.Store

	// Signal delivers PropertiesChanged events for the UPower object.
	// Nil leaves the module on its initial reading.
	Signal module.Source
}

// Module is the power source producer. It owns the store's power field.
type Module struct {
	rt     *module.Runtime
	logger *slog.Logger

	reader Reader
	store  *state.Store
	signal module.Source

	current bus.PowerSource
	ctx     context.Context
}

// New builds the module.
func New(p Params) *Module {
	return &Module{
		reader: p.Reader,
		store:  p.Store,
		signal: p.Signal,
		ctx:    context.Background(),
	}
}

// Name implements module.Module.
func (m *Module) Name() string { return "upower" }

// Init implements module.Module.
func (m *Module) Init(rt *module.Runtime) error {
	m.rt = rt
	m.logger = rt.Logger()
	rt.SetReceive(m.receive)
	if m.signal != nil {
		rt.AddSource(m.signal)
	}
	return nil
}

// Start reads the initial power source and announces it. A failed read
// assumes AC so the daemon comes up in a usable state.
func (m *Module) Start() error {
	m.current = m.read()
	m.store.SetPowerSource(m.current)
	m.logger.Info("power source detected", log.String("source", m.current.String()))
	m.rt.Publish(bus.TopicPowerChanged, bus.PowerChange{Old: m.current, New: m.current})
	return nil
}

// Destroy implements module.Module.
func (m *Module) Destroy() {}

func (m *Module) receive(msg bus.Message) {
	if msg.Topic != bus.TopicSignal {
		return
	}
	ev := msg.Data.(bus.SignalEvent)

	v, upd := sysbus.PropertyFromSignal(ev, Interface, propOnBattery)
	switch upd {
	case sysbus.PropertyUntouched:
		return
	case sysbus.PropertyChanged:
		if onBattery, ok := v.Value().(bool); ok {
			m.update(powerFrom(onBattery))
			return
		}
		m.update(m.read())
	case sysbus.PropertyInvalidated:
		m.update(m.read())
	}
}

func (m *Module) update(src bus.PowerSource) {
	if src == m.current {
		return
	}
	old := m.current
	m.current = src
	m.store.SetPowerSource(src)
	m.logger.Info("power source changed",
		log.String("from", old.String()),
		log.String("to", src.String()))
	m.rt.Publish(bus.TopicPowerChanged, bus.PowerChange{Old: old, New: src})
}

func (m *Module) read() bus.PowerSource {
	onBattery, err := m.reader.OnBattery(m.ctx)
	if err != nil {
		m.logger.Warn("cannot read power supply state, assuming AC", log.Error(err))
		return bus.PowerAC
	}
	return powerFrom(onBattery)
}

func powerFrom(onBattery bool) bus.PowerSource {
	if onBattery {
		return bus.PowerBattery
	}
	return bus.PowerAC
}
