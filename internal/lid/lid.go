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

// Package lid tracks the laptop lid through logind and announces
// open/close transitions on the bus.
package lid

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

// logind service coordinates.
const (
	Service   = "org.freedesktop.login1"
	Path      = dbus.ObjectPath("/org/freedesktop/login1")
	Interface = "org.freedesktop.login1.Manager"

	propLidClosed = "LidClosed"
)

// Reader reads the current lid state.
type Reader interface {
	LidClosed(ctx context.Context) (bool, error)
}

type busReader struct {
	router *sysbus.Router
}

// NewReader returns a Reader backed by the system bus.
func NewReader(router *sysbus.Router) Reader {
	return &busReader{router: router}
}

func (r *busReader) LidClosed(_ context.Context) (bool, error) {
	v, err := r.router.GetProperty(Service, Path, Interface+"."+propLidClosed)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", propLidClosed, err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("read %s: unexpected type %T", propLidClosed, v.Value())
	}
	return b, nil
}

// Watch opens the PropertiesChanged watch for the logind manager object.
func Watch(router *sysbus.Router) (*sysbus.Watch, error) {
	return router.WatchProperties(Path)
}

// Params carries the module's dependencies.
type Params struct {
	Reader Reader
	Store  *state.Store

	// Signal delivers PropertiesChanged events for the logind manager.
	// Nil leaves the module on its initial reading; desktops without a
	// lid run that way.
	Signal module.Source
}

// Module is the lid state producer. It owns the store's lid field.
type Module struct {
	rt     *module.Runtime
	logger *slog.Logger

	reader Reader
	store  *state.Store
	signal module.Source

	closed bool
	ctx    context.Context
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
func (m *Module) Name() string { return "lid" }

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

// Start reads the initial lid state and announces it. A failed read
// assumes open; a machine without a lid behaves like one that never
// closes.
func (m *Module) Start() error {
	closed, err := m.reader.LidClosed(m.ctx)
	if err != nil {
		m.logger.Warn("cannot read lid state, assuming open", log.Error(err))
		closed = false
	}
	m.closed = closed
	m.store.SetLidClosed(closed)
	m.logger.Info("lid state detected", log.Bool("closed", closed))
	m.rt.Publish(bus.TopicLidChanged, bus.LidChange{Closed: closed})
	return nil
}

// Destroy implements module.Module.
func (m *Module) Destroy() {}

func (m *Module) receive(msg bus.Message) {
	if msg.Topic != bus.TopicSignal {
		return
	}
	ev := msg.Data.(bus.SignalEvent)

	v, upd := sysbus.PropertyFromSignal(ev, Interface, propLidClosed)
	switch upd {
	case sysbus.PropertyUntouched:
		return
	case sysbus.PropertyChanged:
		if closed, ok := v.Value().(bool); ok {
			m.update(closed)
			return
		}
		m.reread()
	case sysbus.PropertyInvalidated:
		m.reread()
	}
}

func (m *Module) reread() {
	closed, err := m.reader.LidClosed(m.ctx)
	if err != nil {
		m.logger.Warn("cannot re-read lid state", log.Error(err))
		return
	}
	m.update(closed)
}

func (m *Module) update(closed bool) {
	if closed == m.closed {
		return
	}
	m.closed = closed
	m.store.SetLidClosed(closed)
	m.logger.Info("lid state changed", log.Bool("closed", closed))
	m.rt.Publish(bus.TopicLidChanged, bus.LidChange{Closed: closed})
}
