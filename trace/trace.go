// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package trace reifies the protocol's traced attributes as a small
// named-channel publish/subscribe bus. Downstream loggers, test assertions,
// and a future experiment harness all subscribe the same way; the core never
// depends on any particular subscriber.
package trace

import "sync"

// Channel names used across the RIT MAC core.
const (
	MacMode        = "MacMode"
	MacState       = "MacState"
	BeaconWait     = "BeaconWaitEvent"
	DataWait       = "DataWaitEvent"
	MacTx          = "MacTx"
	MacTxOk        = "MacTxOk"
	MacTxDrop      = "MacTxDrop"
	MacRx          = "MacRx"
	MacRxDrop      = "MacRxDrop"
	NwkTx          = "NwkTx"
	NwkTxOk        = "NwkTxOk"
	NwkTxDrop      = "NwkTxDrop"
	NwkRx          = "NwkRx"
	NwkRxDrop      = "NwkRxDrop"
	NwkReTx        = "NwkReTx"
)

// Event is the payload delivered to a trace subscriber. Fields beyond Channel
// are channel-specific and left as an opaque value so every component can
// publish whatever shape is natural for it (a mode, a packet, an address).
type Event struct {
	Channel string
	NodeId  int
	Value   interface{}
}

// Handler receives published trace events.
type Handler func(Event)

// Bus is a named-channel publish/subscribe point. The zero value is usable.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// Subscribe registers fn to be called for every event published on channel.
func (b *Bus) Subscribe(channel string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[string][]Handler)
	}
	b.subs[channel] = append(b.subs[channel], fn)
}

// Publish delivers an event synchronously to every subscriber of the event's
// channel. A Bus with no subscribers is a no-op, so callers can publish
// unconditionally without checking whether anyone is listening.
func (b *Bus) Publish(channel string, nodeId int, value interface{}) {
	b.mu.RLock()
	handlers := b.subs[channel]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(Event{Channel: channel, NodeId: nodeId, Value: value})
	}
}
