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

package daemon

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/config"
	"github.com/tombee/lumen/internal/module"
)

// spyModule records every request topic it is subscribed to.
type spyModule struct {
	rt   *module.Runtime
	msgs chan bus.Message
}

func (m *spyModule) Name() string { return "spy" }

func (m *spyModule) Init(rt *module.Runtime) error {
	m.rt = rt
	rt.Subscribe(bus.TopicTimeoutRequest)
	rt.Subscribe(bus.TopicCurveRequest)
	rt.Subscribe(bus.TopicAutocalibRequest)
	rt.SetReceive(func(msg bus.Message) { m.msgs <- msg })
	return nil
}

func (m *spyModule) Start() error { return nil }
func (m *spyModule) Destroy()     {}

func waitMsg(t *testing.T, ch chan bus.Message) bus.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for injected request")
		return bus.Message{}
	}
}

// TestInjectDiff covers the config hot-reload path: every tunable
// change becomes one stamped request on the loop.
func TestInjectDiff(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := slog.New(slog.DiscardHandler)
	loop := module.NewLoop(bus.New(logger, true), logger)
	spy := &spyModule{msgs: make(chan bus.Message, 8)}
	if err := loop.Add(spy); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("loop exited with error: %v", err)
		}
	}()

	old := config.Default()
	updated := config.Default()
	updated.Backlight.Timeouts.Battery.Day = 45 * time.Second
	updated.Backlight.Curves.AC = []float64{0, 0.5, 1}
	updated.Backlight.NoAutoCalib = true

	injectDiff(loop, config.Compare(old, updated), logger)

	seen := map[bus.Topic]bus.Message{}
	for i := 0; i < 3; i++ {
		msg := waitMsg(t, spy.msgs)
		seen[msg.Topic] = msg
	}

	to, ok := seen[bus.TopicTimeoutRequest].Data.(bus.TimeoutRequest)
	if !ok || to.Source != bus.PowerBattery || to.Bucket != bus.BucketDay || to.Timeout != 45*time.Second {
		t.Errorf("unexpected timeout request %+v", seen[bus.TopicTimeoutRequest])
	}
	cu, ok := seen[bus.TopicCurveRequest].Data.(bus.CurveRequest)
	if !ok || cu.Source != bus.PowerAC || len(cu.Points) != 3 {
		t.Errorf("unexpected curve request %+v", seen[bus.TopicCurveRequest])
	}
	ac, ok := seen[bus.TopicAutocalibRequest].Data.(bus.AutocalibRequest)
	if !ok || !ac.Disabled {
		t.Errorf("unexpected autocalib request %+v", seen[bus.TopicAutocalibRequest])
	}

	// Stamped: a later request of the same kind supersedes the injected
	// one.
	later := loop.Bus().NewRequest(bus.TopicTimeoutRequest, bus.TimeoutRequest{})
	if loop.Bus().Fresh(seen[bus.TopicTimeoutRequest]) {
		t.Error("superseded request still reported fresh")
	}
	if !loop.Bus().Fresh(later) {
		t.Error("latest request not reported fresh")
	}
}
