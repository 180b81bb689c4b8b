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

// Package bus implements the daemon's typed publish/subscribe message bus.
//
// Delivery is synchronous: Publish runs every subscriber on the caller's
// stack before returning. A handler may itself publish; nested messages
// are delivered depth-first, so all reactions to an inner message finish
// before the outer publish resumes. The bus performs no queuing and
// starts no goroutines; all publishing happens on the loop goroutine.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Message is one bus message. Data holds the topic's payload struct.
// For request topics, gen carries the freshness generation stamped by
// NewRequest; handlers consult Fresh before acting.
type Message struct {
	Topic Topic
	Data  any

	gen uint64
}

// Handler consumes one message. Handlers run synchronously on the
// publisher's stack and may publish further messages.
type Handler func(Message)

// Bus routes messages between modules. Subscriptions are established
// during module initialization, before the loop starts; Publish must
// only be called from the loop goroutine. NewRequest and Fresh are safe
// for concurrent use so that requests can be stamped from other
// goroutines before being injected into the loop.
type Bus struct {
	logger *slog.Logger
	strict bool

	subs [topicCount][]Handler

	genMu  sync.Mutex
	latest [topicCount]uint64

	onPublish func(Topic)
}

// New creates a bus. In strict mode an invalid topic on Publish or
// Subscribe panics instead of being logged and dropped; tests run
// strict, the daemon does not.
func New(logger *slog.Logger, strict bool) *Bus {
	return &Bus{
		logger: logger,
		strict: strict,
	}
}

// OnPublish installs a hook invoked for every published message, before
// delivery. Used for metrics instrumentation. Must be set before the
// loop starts.
func (b *Bus) OnPublish(fn func(Topic)) {
	b.onPublish = fn
}

// Subscribe registers a handler for a topic. Subscribers receive
// messages in subscription order.
func (b *Bus) Subscribe(t Topic, h Handler) {
	if !t.Valid() {
		b.invalidTopic("subscribe", t)
		return
	}
	b.subs[t] = append(b.subs[t], h)
}

// Publish delivers msg to every subscriber of its topic, in
// subscription order, on the caller's stack.
func (b *Bus) Publish(msg Message) {
	if !msg.Topic.Valid() {
		b.invalidTopic("publish", msg.Topic)
		return
	}
	if b.onPublish != nil {
		b.onPublish(msg.Topic)
	}
	for _, h := range b.subs[msg.Topic] {
		h(msg)
	}
}

// NewRequest builds a request message stamped with the next freshness
// generation for its topic. The stamp is taken at creation time, so of
// two requests created back to back only the second is fresh by the
// time either is delivered.
func (b *Bus) NewRequest(t Topic, data any) Message {
	if !t.Valid() || !t.IsRequest() {
		b.invalidTopic("request", t)
		return Message{Topic: t, Data: data}
	}
	b.genMu.Lock()
	b.latest[t]++
	gen := b.latest[t]
	b.genMu.Unlock()
	return Message{Topic: t, Data: data, gen: gen}
}

// Fresh reports whether msg still carries the latest generation for its
// topic. Non-request messages are always fresh.
func (b *Bus) Fresh(msg Message) bool {
	if !msg.Topic.Valid() || !msg.Topic.IsRequest() {
		return true
	}
	b.genMu.Lock()
	latest := b.latest[msg.Topic]
	b.genMu.Unlock()
	return msg.gen == latest
}

func (b *Bus) invalidTopic(op string, t Topic) {
	if b.strict {
		panic(fmt.Sprintf("bus: %s on invalid topic %d", op, t))
	}
	if b.logger != nil {
		b.logger.Error("invalid bus topic dropped",
			"op", op,
			"topic", uint8(t))
	}
}
