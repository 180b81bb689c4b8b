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

// Package module hosts the daemon's cooperative module runtime.
//
// Every module runs on one shared loop goroutine. Modules react to bus
// messages through a behavior stack: the base receive handler plus at
// most one temporary override pushed with Become (used for warm-up and
// paused modes). Waitable sources (timers, signal watches) are pumped
// into the loop and dispatched to whichever behavior is on top of the
// stack when the event is processed.
package module

import (
	"github.com/tombee/lumen/internal/bus"
)

// Module is one unit of daemon behavior hosted by the loop.
//
// Init runs during registration: subscribe to topics, set the base
// receive behavior, create timer handles. Start runs on the loop
// goroutine once all modules are registered: publish initial
// announcements, arm timers, open watches. Destroy runs on the loop
// goroutine during shutdown, in reverse registration order.
type Module interface {
	Name() string
	Init(rt *Runtime) error
	Start() error
	Destroy()
}

// Behavior handles messages for a module in one mode of operation.
// Behaviors run synchronously on the loop goroutine.
type Behavior func(bus.Message)

// Lifecycle tracks a module's position in its life.
type Lifecycle uint8

const (
	// LifecycleUninitialized means the module has not been registered.
	LifecycleUninitialized Lifecycle = iota
	// LifecycleInitializing means Init ran but the loop has not started it.
	LifecycleInitializing
	// LifecycleActive means the module is processing messages normally.
	LifecycleActive
	// LifecyclePaused means the module suspended its periodic work.
	LifecyclePaused
	// LifecycleDestroyed means Destroy has run.
	LifecycleDestroyed
)

// String returns the lifecycle name used in logs and status output.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleUninitialized:
		return "uninitialized"
	case LifecycleInitializing:
		return "initializing"
	case LifecycleActive:
		return "active"
	case LifecyclePaused:
		return "paused"
	case LifecycleDestroyed:
		return "destroyed"
	}
	return "unknown"
}
