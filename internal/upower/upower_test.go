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

package upower

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/goleak"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
	"github.com/tombee/lumen/internal/sysbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeReader struct {
	mu        sync.Mutex
	onBattery bool
	err       error
	reads     int
}

func (f *fakeReader) OnBattery(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.onBattery, f.err
}

func (f *fakeReader) set(onBattery bool) {
	f.mu.Lock()
	f.onBattery = onBattery
	f.mu.Unlock()
}

func (f *fakeReader) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type chanSource struct {
	ch chan bus.Message
}

func (s *chanSource) Name() string { return "upower-props" }

func (s *chanSource) Wait(stop <-chan struct{}) (bus.Message, bool) {
	select {
	case msg := <-s.ch:
		return msg, true
	case <-stop:
		return bus.Message{}, false
	}
}

type spy struct {
	changes chan bus.PowerChange
}

func (s *spy) Name() string { return "spy" }

func (s *spy) Init(rt *module.Runtime) error {
	rt.SetReceive(func(msg bus.Message) {
		s.changes <- msg.Data.(bus.PowerChange)
	})
	rt.Subscribe(bus.TopicPowerChanged)
	return nil
}

func (s *spy) Start() error { return nil }
func (s *spy) Destroy()     {}

type harness struct {
	t       *testing.T
	store   *state.Store
	reader  *fakeReader
	src     *chanSource
	changes chan bus.PowerChange
}

func newHarness(t *testing.T, reader *fakeReader) *harness {
	t.Helper()

	// Snapshot before the loop goroutine starts; the check runs after
	// the shutdown cleanup below.
	prior := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, prior) })

	h := &harness{
		t:       t,
		store:   state.NewStore(),
		reader:  reader,
		src:     &chanSource{ch: make(chan bus.Message, 4)},
		changes: make(chan bus.PowerChange, 16),
	}

	b := bus.New(testLogger(), true)
	l := module.NewLoop(b, testLogger())
	if err := l.Add(New(Params{Reader: reader, Store: h.store, Signal: h.src})); err != nil {
		t.Fatal(err)
	}
	if err := l.Add(&spy{changes: h.changes}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("loop exited with error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
	})
	return h
}

func (h *harness) waitChange() bus.PowerChange {
	h.t.Helper()
	select {
	case c := <-h.changes:
		return c
	case <-time.After(2 * time.Second):
		h.t.Fatal("no power change published")
		return bus.PowerChange{}
	}
}

func (h *harness) quiet(d time.Duration) {
	h.t.Helper()
	select {
	case c := <-h.changes:
		h.t.Fatalf("unexpected power change %v -> %v", c.Old, c.New)
	case <-time.After(d):
	}
}

func propsSignal(changed map[string]dbus.Variant, invalidated []string) bus.Message {
	return bus.Message{Topic: bus.TopicSignal, Data: bus.SignalEvent{
		Name: sysbus.PropertiesInterface + "." + sysbus.PropertiesChanged,
		Body: []interface{}{Interface, changed, invalidated},
	}}
}

func TestAnnouncesInitialSource(t *testing.T) {
	h := newHarness(t, &fakeReader{onBattery: true})

	c := h.waitChange()
	if c.New != bus.PowerBattery {
		t.Errorf("initial source = %v, want battery", c.New)
	}
	if got := h.store.PowerSource(); got != bus.PowerBattery {
		t.Errorf("store source = %v, want battery", got)
	}
}

func TestReadFailureAssumesAC(t *testing.T) {
	h := newHarness(t, &fakeReader{err: errors.New("upower gone")})

	c := h.waitChange()
	if c.New != bus.PowerAC {
		t.Errorf("initial source = %v, want ac fallback", c.New)
	}
}

func TestSignalCarryingValue(t *testing.T) {
	reader := &fakeReader{}
	h := newHarness(t, reader)
	h.waitChange()
	reads := reader.readCount()

	// The new value rides in the signal; no re-read needed.
	h.src.ch <- propsSignal(map[string]dbus.Variant{propOnBattery: dbus.MakeVariant(true)}, nil)
	c := h.waitChange()
	if c.Old != bus.PowerAC || c.New != bus.PowerBattery {
		t.Errorf("change = %v -> %v, want ac -> battery", c.Old, c.New)
	}
	if got := reader.readCount(); got != reads {
		t.Errorf("reads = %d, want %d (value came with the signal)", got, reads)
	}
	if got := h.store.PowerSource(); got != bus.PowerBattery {
		t.Errorf("store source = %v, want battery", got)
	}
}

func TestSignalInvalidatedTriggersReread(t *testing.T) {
	reader := &fakeReader{}
	h := newHarness(t, reader)
	h.waitChange()

	reader.set(true)
	h.src.ch <- propsSignal(nil, []string{propOnBattery})
	c := h.waitChange()
	if c.New != bus.PowerBattery {
		t.Errorf("source after invalidation = %v, want battery", c.New)
	}
}

func TestUnrelatedSignalIgnored(t *testing.T) {
	h := newHarness(t, &fakeReader{})
	h.waitChange()

	h.src.ch <- propsSignal(map[string]dbus.Variant{"DaemonVersion": dbus.MakeVariant("1.0")}, nil)
	h.quiet(120 * time.Millisecond)
}

func TestUnchangedValueNotRepublished(t *testing.T) {
	h := newHarness(t, &fakeReader{})
	h.waitChange()

	h.src.ch <- propsSignal(map[string]dbus.Variant{propOnBattery: dbus.MakeVariant(false)}, nil)
	h.quiet(120 * time.Millisecond)
}
