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

package display

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type spy struct {
	changes chan bus.DisplayChange
}

func (s *spy) Name() string { return "spy" }

func (s *spy) Init(rt *module.Runtime) error {
	rt.SetReceive(func(msg bus.Message) {
		s.changes <- msg.Data.(bus.DisplayChange)
	})
	rt.Subscribe(bus.TopicDisplayChanged)
	return nil
}

func (s *spy) Start() error { return nil }
func (s *spy) Destroy()     {}

func newHarness(t *testing.T) (*bus.Bus, *module.Loop, *state.Store, chan bus.DisplayChange) {
	t.Helper()

	// Snapshot before the loop goroutine starts; the check runs after
	// the shutdown cleanup below.
	prior := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, prior) })

	b := bus.New(testLogger(), true)
	l := module.NewLoop(b, testLogger())
	store := state.NewStore()
	changes := make(chan bus.DisplayChange, 16)

	if err := l.Add(New(store)); err != nil {
		t.Fatal(err)
	}
	if err := l.Add(&spy{changes: changes}); err != nil {
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
	return b, l, store, changes
}

func waitChange(t *testing.T, changes chan bus.DisplayChange) bus.DisplayChange {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no display change published")
		return bus.DisplayChange{}
	}
}

func TestRequestUpdatesStoreAndAnnounces(t *testing.T) {
	b, l, store, changes := newHarness(t)

	l.Inject(b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: true}))
	if c := waitChange(t, changes); !c.Dimmed {
		t.Error("change reports undimmed, want dimmed")
	}
	if !store.DisplayDimmed() {
		t.Error("store reports undimmed, want dimmed")
	}

	l.Inject(b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: false}))
	if c := waitChange(t, changes); c.Dimmed {
		t.Error("change reports dimmed, want undimmed")
	}
}

func TestDuplicateRequestNotRepublished(t *testing.T) {
	b, l, _, changes := newHarness(t)

	l.Inject(b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: true}))
	waitChange(t, changes)

	l.Inject(b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: true}))
	select {
	case c := <-changes:
		t.Fatalf("duplicate state republished, dimmed=%v", c.Dimmed)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestStaleRequestDropped(t *testing.T) {
	b, l, store, changes := newHarness(t)

	// Stamped back to back: the dim request is superseded by the undim
	// before either is processed, so the state never changes.
	first := b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: true})
	second := b.NewRequest(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: false})
	l.Inject(first)
	l.Inject(second)

	select {
	case c := <-changes:
		t.Fatalf("unexpected display change, dimmed=%v", c.Dimmed)
	case <-time.After(120 * time.Millisecond):
	}
	if store.DisplayDimmed() {
		t.Error("stale request mutated the store")
	}
}
