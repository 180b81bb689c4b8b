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
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/timer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testModule is a scriptable module for loop tests.
type testModule struct {
	name      string
	initFn    func(rt *Runtime) error
	startFn   func() error
	destroyFn func()
	rt        *Runtime
}

func (m *testModule) Name() string { return m.name }

func (m *testModule) Init(rt *Runtime) error {
	m.rt = rt
	if m.initFn != nil {
		return m.initFn(rt)
	}
	rt.SetReceive(func(bus.Message) {})
	return nil
}

func (m *testModule) Start() error {
	if m.startFn != nil {
		return m.startFn()
	}
	return nil
}

func (m *testModule) Destroy() {
	if m.destroyFn != nil {
		m.destroyFn()
	}
}

// chanSource is a fake waitable source fed by a channel.
type chanSource struct {
	name string
	ch   chan bus.Message
}

func (s *chanSource) Name() string { return s.name }

func (s *chanSource) Wait(stop <-chan struct{}) (bus.Message, bool) {
	select {
	case msg := <-s.ch:
		return msg, true
	case <-stop:
		return bus.Message{}, false
	}
}

// runLoop starts the loop and returns a stop function that cancels it
// and waits for a clean exit.
func runLoop(t *testing.T, l *Loop) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("loop exited with error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
	}
}

// barrier waits until the loop goroutine has processed everything
// queued before it.
func barrier(t *testing.T, l *Loop) {
	t.Helper()
	done := make(chan struct{})
	if !l.submit(func() { close(done) }) {
		t.Fatal("loop already shut down")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain")
	}
}

func TestStartOrderAndDestroyOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		m := &testModule{
			name:      name,
			startFn:   func() error { order = append(order, "start:"+name); return nil },
			destroyFn: func() { order = append(order, "destroy:"+name) },
		}
		if err := l.Add(m); err != nil {
			t.Fatal(err)
		}
	}

	stop := runLoop(t, l)
	stop()

	want := []string{
		"start:first", "start:second", "start:third",
		"destroy:third", "destroy:second", "destroy:first",
	}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestStartFailureAborts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())

	boom := errors.New("no bus connection")
	if err := l.Add(&testModule{name: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Add(&testModule{name: "broken", startFn: func() error { return boom }}); err != nil {
		t.Fatal(err)
	}

	err := l.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want wrapped %v", err, boom)
	}
}

func TestAddAfterRunRejected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())
	if err := l.Add(&testModule{name: "only"}); err != nil {
		t.Fatal(err)
	}

	stop := runLoop(t, l)
	defer stop()
	barrier(t, l)

	if err := l.Add(&testModule{name: "late"}); err == nil {
		t.Error("expected Add to fail while loop is running")
	}
}

func TestInjectPublishesOnLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())

	received := make(chan bus.Message, 1)
	m := &testModule{name: "listener", initFn: func(rt *Runtime) error {
		rt.SetReceive(func(msg bus.Message) { received <- msg })
		rt.Subscribe(bus.TopicDisplayRequest)
		return nil
	}}
	if err := l.Add(m); err != nil {
		t.Fatal(err)
	}

	stop := runLoop(t, l)
	defer stop()

	l.Inject(b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: true}))

	select {
	case msg := <-received:
		if !msg.Data.(bus.DisplayRequest).Dimmed {
			t.Error("payload lost in injection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("injected message never delivered")
	}
}

func TestTimerSourceDispatchesToModule(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())

	h := timer.New("capture")
	src := TimerSource(h)
	received := make(chan bus.Message, 1)

	m := &testModule{name: "consumer"}
	m.initFn = func(rt *Runtime) error {
		rt.SetReceive(func(msg bus.Message) { received <- msg })
		return nil
	}
	m.startFn = func() error {
		m.rt.AddSource(src)
		h.ArmImmediate()
		return nil
	}
	if err := l.Add(m); err != nil {
		t.Fatal(err)
	}

	stop := runLoop(t, l)
	defer stop()

	select {
	case msg := <-received:
		if msg.Topic != bus.TopicTimerFired {
			t.Errorf("topic = %s, want timer_fired", msg.Topic)
		}
		if fired := msg.Data.(bus.TimerFired); fired.Name != "capture" {
			t.Errorf("timer name = %q, want capture", fired.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer event never dispatched")
	}
}

func TestRemoveSourceStillDeliversInFlightEvent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())

	received := make(chan bus.Message, 4)
	src := &chanSource{name: "watch", ch: make(chan bus.Message, 1)}

	m := &testModule{name: "consumer"}
	m.initFn = func(rt *Runtime) error {
		rt.SetReceive(func(msg bus.Message) { received <- msg })
		return nil
	}
	m.startFn = func() error {
		m.rt.AddSource(src)
		return nil
	}
	if err := l.Add(m); err != nil {
		t.Fatal(err)
	}

	stop := runLoop(t, l)
	defer stop()

	// Occupy the loop goroutine until the pump has queued the event,
	// then deregister the source before the event is processed.
	started := make(chan struct{})
	l.submit(func() {
		close(started)
		deadline := time.Now().Add(2 * time.Second)
		for len(l.work) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		m.rt.RemoveSource(src)
	})
	<-started
	src.ch <- bus.Message{Topic: bus.TopicSignal, Data: bus.SignalEvent{Name: "org.photond.Sensor.Changed"}}

	select {
	case msg := <-received:
		if msg.Topic != bus.TopicSignal {
			t.Errorf("topic = %s, want signal", msg.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight event must still be delivered after removal")
	}

	// Events raised after removal stay undelivered.
	src.ch <- bus.Message{Topic: bus.TopicSignal}
	select {
	case <-received:
		t.Fatal("event delivered after source removal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestModuleStates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())

	m := &testModule{name: "worker"}
	if err := l.Add(m); err != nil {
		t.Fatal(err)
	}

	if got := l.ModuleStates()["worker"]; got != LifecycleInitializing {
		t.Errorf("state before run = %s, want initializing", got)
	}

	stop := runLoop(t, l)
	barrier(t, l)

	if got := l.ModuleStates()["worker"]; got != LifecycleActive {
		t.Errorf("state while running = %s, want active", got)
	}

	stop()

	if got := l.ModuleStates()["worker"]; got != LifecycleDestroyed {
		t.Errorf("state after stop = %s, want destroyed", got)
	}
}
