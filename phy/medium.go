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

package phy

import (
	"math/rand"
	"time"

	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/types"
)

// MediumConfig holds the Medium's loss and propagation-delay parameters.
type MediumConfig struct {
	// LossProbability is the chance, in [0,1], that a given transmission is
	// not delivered to a given other attached device.
	LossProbability float64
	// MinPropagationDelay and MaxPropagationDelay bound the per-transmission
	// delivery delay, drawn uniformly between them.
	MinPropagationDelay time.Duration
	MaxPropagationDelay time.Duration
}

// DefaultMediumConfig is a lossless, near-instant channel: every transmission
// reaches every attached device 1µs after the frame's airtime ends.
func DefaultMediumConfig() MediumConfig {
	return MediumConfig{
		LossProbability:     0,
		MinPropagationDelay: 1 * time.Microsecond,
		MaxPropagationDelay: 1 * time.Microsecond,
	}
}

// Medium is a shared broadcast domain: every Device attached to it receives
// every other attached Device's transmissions, subject to configured loss
// and propagation delay. It is a PHY test/demo double, not a production
// channel model (no path loss, no interference, no modulation).
type Medium struct {
	cfg       MediumConfig
	sched     *scheduler.Scheduler
	lossRng   *rand.Rand
	delayRng  *rand.Rand
	devices   map[types.NodeId]*Device
	busyUntil time.Time
}

// NewMedium creates a Medium scheduled through sched, with loss and delay
// draws taken from lossRng/delayRng (callers typically pass run-scoped
// streams from ritsim/prng so the channel is reproducible across runs).
func NewMedium(cfg MediumConfig, sched *scheduler.Scheduler, lossRng, delayRng *rand.Rand) *Medium {
	return &Medium{
		cfg:      cfg,
		sched:    sched,
		lossRng:  lossRng,
		delayRng: delayRng,
		devices:  make(map[types.NodeId]*Device),
	}
}

// Attach adds dev to the medium's broadcast domain.
func (m *Medium) Attach(dev *Device) {
	m.devices[dev.nodeId] = dev
}

// Busy reports whether the medium is currently carrying a transmission, as
// observed at the medium's current virtual time; used to answer CCA requests.
func (m *Medium) Busy() bool {
	return m.sched.Now().Before(m.busyUntil)
}

func (m *Medium) propagationDelay() time.Duration {
	lo, hi := m.cfg.MinPropagationDelay, m.cfg.MaxPropagationDelay
	if hi <= lo {
		return lo
	}
	span := hi - lo
	return lo + time.Duration(m.delayRng.Int63n(int64(span)))
}

// transmit delivers frame, sent by from, to every other attached device
// after a per-link loss draw, once the frame's airtime (txDuration) plus the
// propagation delay has elapsed. txDuration also marks the medium busy for
// CCA purposes over [now, now+txDuration).
func (m *Medium) transmit(from *Device, frame []byte, txDuration time.Duration) {
	now := m.sched.Now()
	if busyEnd := now.Add(txDuration); busyEnd.After(m.busyUntil) {
		m.busyUntil = busyEnd
	}
	for id, dev := range m.devices {
		if id == from.nodeId {
			continue
		}
		if m.lossRng.Float64() < m.cfg.LossProbability {
			continue
		}
		delivered := append([]byte(nil), frame...)
		delay := txDuration + m.propagationDelay()
		target := dev
		m.sched.ScheduleAfter(delay, func() {
			target.receive(delivered)
		})
	}
}
