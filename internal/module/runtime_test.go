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
	"testing"

	"github.com/tombee/lumen/internal/bus"
)

func newTestRuntime(t *testing.T) (*Runtime, *bus.Bus) {
	t.Helper()
	b := bus.New(testLogger(), true)
	l := NewLoop(b, testLogger())
	return newRuntime("backlight", l, testLogger()), b
}

func TestDispatchRoutesToTopOfStack(t *testing.T) {
	rt, _ := newTestRuntime(t)

	var got []string
	rt.SetReceive(func(bus.Message) { got = append(got, "receive") })

	rt.dispatch(bus.Message{Topic: bus.TopicLidChanged})

	if err := rt.Become(func(bus.Message) { got = append(got, "override") }); err != nil {
		t.Fatal(err)
	}
	rt.dispatch(bus.Message{Topic: bus.TopicLidChanged})

	if err := rt.Unbecome(); err != nil {
		t.Fatal(err)
	}
	rt.dispatch(bus.Message{Topic: bus.TopicLidChanged})

	want := []string{"receive", "override", "receive"}
	if len(got) != len(want) {
		t.Fatalf("routing = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("routing = %v, want %v", got, want)
		}
	}
}

func TestBecomeDepthCapped(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.SetReceive(func(bus.Message) {})

	if err := rt.Become(func(bus.Message) {}); err != nil {
		t.Fatalf("first override: %v", err)
	}
	if err := rt.Become(func(bus.Message) {}); err == nil {
		t.Error("second override should exceed the depth cap")
	}
}

func TestBecomeRequiresReceive(t *testing.T) {
	rt, _ := newTestRuntime(t)

	if err := rt.Become(func(bus.Message) {}); err == nil {
		t.Error("Become before SetReceive should fail")
	}
}

func TestUnbecomeNeverPopsBase(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.SetReceive(func(bus.Message) {})

	if err := rt.Unbecome(); err == nil {
		t.Error("Unbecome with no override should fail")
	}
}

func TestSubscribeRoutesThroughBehaviorStack(t *testing.T) {
	rt, b := newTestRuntime(t)

	var got []string
	rt.SetReceive(func(bus.Message) { got = append(got, "receive") })
	rt.Subscribe(bus.TopicPowerChanged)

	b.Publish(bus.Message{Topic: bus.TopicPowerChanged, Data: bus.PowerChange{}})

	if err := rt.Become(func(bus.Message) { got = append(got, "paused") }); err != nil {
		t.Fatal(err)
	}
	b.Publish(bus.Message{Topic: bus.TopicPowerChanged, Data: bus.PowerChange{}})

	want := []string{"receive", "paused"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("routing = %v, want %v", got, want)
	}
}

func TestSetPausedFlipsLifecycle(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.lifecycle.Store(uint32(LifecycleActive))

	rt.SetPaused(true)
	if got := rt.Lifecycle(); got != LifecyclePaused {
		t.Errorf("lifecycle = %s, want paused", got)
	}

	rt.SetPaused(false)
	if got := rt.Lifecycle(); got != LifecycleActive {
		t.Errorf("lifecycle = %s, want active", got)
	}
}

func TestSetPausedIgnoredAfterDestroy(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.lifecycle.Store(uint32(LifecycleDestroyed))

	rt.SetPaused(true)
	if got := rt.Lifecycle(); got != LifecycleDestroyed {
		t.Errorf("lifecycle = %s, want destroyed", got)
	}
}

func TestAddSourceIdempotent(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.SetReceive(func(bus.Message) {})

	src := &chanSource{name: "watch", ch: make(chan bus.Message)}
	rt.AddSource(src)
	rt.AddSource(src)

	if len(rt.sources) != 1 {
		t.Errorf("sources = %d, want 1", len(rt.sources))
	}

	rt.RemoveSource(src)
	rt.RemoveSource(src)

	if len(rt.sources) != 0 {
		t.Errorf("sources = %d, want 0", len(rt.sources))
	}
	rt.loop.pumps.Wait()
}
