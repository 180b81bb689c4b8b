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

// Package sysbus wraps the D-Bus system bus connection shared by every
// module that talks to external services: signal watches are routed to
// per-consumer channels and method calls go through the underlying
// connection.
package sysbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// watchBuffer bounds each watch channel. Consumers treat signals as
// edge triggers and re-query state, so dropping under overload is
// safe; it is still logged.
const watchBuffer = 16

// Conn is the subset of the D-Bus connection the daemon uses,
// extracted so tests can substitute a fake.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Close() error
}

// Router owns the system bus connection and fans incoming signals out
// to registered watches.
type Router struct {
	conn   Conn
	logger *slog.Logger

	sig chan *dbus.Signal

	mu      sync.Mutex
	watches map[*Watch]struct{}

	routed sync.WaitGroup
}

// Open connects to the system bus. The daemon treats failure here as
// fatal: without the bus there is no sensor and no backlight.
func Open(logger *slog.Logger) (*Router, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return NewRouter(conn, logger), nil
}

// NewRouter wraps an established connection. Used directly by tests.
func NewRouter(conn Conn, logger *slog.Logger) *Router {
	r := &Router{
		conn:    conn,
		logger:  logger.With(slog.String("component", "sysbus")),
		sig:     make(chan *dbus.Signal, 64),
		watches: make(map[*Watch]struct{}),
	}
	conn.Signal(r.sig)
	r.routed.Add(1)
	go r.route()
	return r
}

// Conn exposes the underlying connection for method calls.
func (r *Router) Conn() Conn {
	return r.conn
}

// Object returns a handle for calls against one destination and path.
func (r *Router) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return r.conn.Object(dest, path)
}

// GetProperty reads a property through the destination's standard
// Properties interface.
func (r *Router) GetProperty(dest string, path dbus.ObjectPath, prop string) (dbus.Variant, error) {
	return r.conn.Object(dest, path).GetProperty(prop)
}

// Watch subscribes to a signal by interface and member. A non-empty
// path restricts matching to one object. The returned watch delivers
// matching signals on C until closed.
func (r *Router) Watch(iface, member string, path dbus.ObjectPath) (*Watch, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	}
	if path != "" {
		opts = append(opts, dbus.WithMatchObjectPath(path))
	}
	if err := r.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("add match %s.%s: %w", iface, member, err)
	}

	w := &Watch{
		C:      make(chan *dbus.Signal, watchBuffer),
		name:   iface + "." + member,
		path:   path,
		opts:   opts,
		router: r,
	}
	r.mu.Lock()
	r.watches[w] = struct{}{}
	r.mu.Unlock()
	return w, nil
}

// Close tears down the connection. The signal channel is closed by the
// bus library, which ends the routing goroutine.
func (r *Router) Close() error {
	err := r.conn.Close()
	r.routed.Wait()
	return err
}

func (r *Router) route() {
	defer r.routed.Done()
	for sig := range r.sig {
		r.deliver(sig)
	}
}

func (r *Router) deliver(sig *dbus.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for w := range r.watches {
		if w.name != sig.Name {
			continue
		}
		if w.path != "" && w.path != sig.Path {
			continue
		}
		select {
		case w.C <- sig:
		default:
			r.logger.Warn("signal watch overflow, dropping",
				slog.String("signal", sig.Name))
		}
	}
}

func (r *Router) unregister(w *Watch) error {
	r.mu.Lock()
	delete(r.watches, w)
	r.mu.Unlock()
	if err := r.conn.RemoveMatchSignal(w.opts...); err != nil {
		return fmt.Errorf("remove match %s: %w", w.name, err)
	}
	return nil
}

// Watch is one signal subscription. Signals arrive on C.
type Watch struct {
	C chan *dbus.Signal

	name   string
	path   dbus.ObjectPath
	opts   []dbus.MatchOption
	router *Router

	closeOnce sync.Once
	closeErr  error
}

// Name returns the fully qualified member this watch matches.
func (w *Watch) Name() string {
	return w.name
}

// Close unsubscribes the watch. Signals already delivered to C remain
// readable.
func (w *Watch) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.router.unregister(w)
	})
	return w.closeErr
}
