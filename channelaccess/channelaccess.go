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

// Package channelaccess implements the channel-access strategies the RIT MAC
// chooses between before transmitting: standard unslotted CSMA-CA, and two
// lighter single-shot CCA variants (PreCs, PreCsB) intended for the short
// control frames RIT exchanges. All three satisfy the same Access interface
// so the MAC can chain them as fallbacks without caring which is active.
package channelaccess

import (
	"math/rand"
	"time"

	"github.com/ritmac/ritsim/logger"
	"github.com/ritmac/ritsim/phy"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/types"
)

// unitBackoffPeriod is the 802.15.4 aUnitBackoffPeriod: 20 symbols.
const unitBackoffPeriod = 20 * 16 * time.Microsecond

// Access is the channel-access strategy interface the MAC drives. Start
// begins an attempt; eventually either SetMacStateCallback's callback fires
// with CcaIdle (transmit now) or CcaBusy (channel access failure), or — for
// the single-shot variants — a CCA confirm that arrived after the strategy
// was no longer waiting is handed to SetFallbackCcaConfirmCallback instead.
type Access interface {
	Start()
	Cancel()
	PlmeCcaConfirm(status types.CcaStatus)
	SetMacStateCallback(cb func(status types.CcaStatus))
	SetFallbackCcaConfirmCallback(cb func(status types.CcaStatus))
}

// PreCs is a single CCA attempt with no backoff and no retry: request CCA
// immediately, and report whatever the PHY says. Intended for lightweight
// RIT Data Request frames where the cost of full CSMA-CA is not worth
// paying.
type PreCs struct {
	adapter    phy.Adapter
	running    bool
	macStateCb func(status types.CcaStatus)
	fallbackCb func(status types.CcaStatus)
}

// NewPreCs creates a PreCs that drives adapter.
func NewPreCs(adapter phy.Adapter) *PreCs {
	return &PreCs{adapter: adapter}
}

func (p *PreCs) SetMacStateCallback(cb func(status types.CcaStatus))         { p.macStateCb = cb }
func (p *PreCs) SetFallbackCcaConfirmCallback(cb func(status types.CcaStatus)) { p.fallbackCb = cb }

func (p *PreCs) Start() {
	p.running = true
	p.adapter.PlmeCcaRequest()
}

func (p *PreCs) Cancel() {
	if !p.running {
		return
	}
	p.adapter.PlmeCcaCancel()
	p.running = false
}

// PlmeCcaConfirm delivers the PHY's CCA result. If this PreCs is not the one
// waiting on it (already cancelled, or this confirm belongs to a lower-level
// attempt after a chained fallback), it is forwarded to the fallback
// callback instead of being acted on.
func (p *PreCs) PlmeCcaConfirm(status types.CcaStatus) {
	if !p.running {
		if p.fallbackCb != nil {
			p.fallbackCb(status)
		}
		return
	}
	p.running = false
	if p.macStateCb != nil {
		p.macStateCb(status)
	}
}

// PreCsB is PreCs with one short, random pre-CCA backoff (a single unit
// backoff period drawn uniformly) before the single CCA attempt, trading a
// little extra delay for a lower chance of colliding with a transmission
// that starts between two nodes' otherwise-synchronized RIT cycles.
type PreCsB struct {
	adapter    phy.Adapter
	sched      *scheduler.Scheduler
	rng        *rand.Rand
	running    bool
	backoffID  scheduler.EventID
	waitingCca bool
	macStateCb func(status types.CcaStatus)
	fallbackCb func(status types.CcaStatus)
}

// NewPreCsB creates a PreCsB that drives adapter, schedules its backoff
// through sched, and draws the backoff length from rng.
func NewPreCsB(adapter phy.Adapter, sched *scheduler.Scheduler, rng *rand.Rand) *PreCsB {
	return &PreCsB{adapter: adapter, sched: sched, rng: rng}
}

func (p *PreCsB) SetMacStateCallback(cb func(status types.CcaStatus))          { p.macStateCb = cb }
func (p *PreCsB) SetFallbackCcaConfirmCallback(cb func(status types.CcaStatus)) { p.fallbackCb = cb }

func (p *PreCsB) Start() {
	p.running = true
	backoff := time.Duration(p.rng.Int63n(int64(unitBackoffPeriod)))
	p.backoffID = p.sched.ScheduleAfter(backoff, func() {
		if !p.running {
			return
		}
		p.waitingCca = true
		p.adapter.PlmeCcaRequest()
	})
}

func (p *PreCsB) Cancel() {
	if !p.running {
		return
	}
	if p.waitingCca {
		p.adapter.PlmeCcaCancel()
	} else {
		p.sched.Cancel(p.backoffID)
	}
	p.running = false
	p.waitingCca = false
}

func (p *PreCsB) PlmeCcaConfirm(status types.CcaStatus) {
	if !p.running || !p.waitingCca {
		if p.fallbackCb != nil {
			p.fallbackCb(status)
		}
		return
	}
	p.running = false
	p.waitingCca = false
	if p.macStateCb != nil {
		p.macStateCb(status)
	}
}

// CsmaCa is standard unslotted CSMA-CA (IEEE 802.15.4 section 6.2.5.1):
// repeated random backoff plus single CCA, with the backoff exponent growing
// from MinBe towards MaxBe after each busy channel. It reports failure once
// more than MaxCsmaBackoffs CCAs have found the channel busy, so a run makes
// at most MaxCsmaBackoffs+1 CCA attempts.
type CsmaCa struct {
	adapter phy.Adapter
	sched   *scheduler.Scheduler
	rng     *rand.Rand

	MinBe           int
	MaxBe           int
	MaxCsmaBackoffs int

	running    bool
	waitingCca bool
	nb         int
	be         int
	backoffID  scheduler.EventID
	macStateCb func(status types.CcaStatus)
	fallbackCb func(status types.CcaStatus)
}

// DefaultMinBe, DefaultMaxBe, and DefaultMaxCsmaBackoffs are the IEEE
// 802.15.4 default macMinBE/macMaxBE/macMaxCSMABackoffs values.
const (
	DefaultMinBe           = 3
	DefaultMaxBe           = 5
	DefaultMaxCsmaBackoffs = 4
)

// NewCsmaCa creates a CsmaCa with the IEEE 802.15.4 defaults for MinBe, MaxBe,
// and MaxCsmaBackoffs; callers may override the fields directly afterward.
func NewCsmaCa(adapter phy.Adapter, sched *scheduler.Scheduler, rng *rand.Rand) *CsmaCa {
	return &CsmaCa{
		adapter:         adapter,
		sched:           sched,
		rng:             rng,
		MinBe:           DefaultMinBe,
		MaxBe:           DefaultMaxBe,
		MaxCsmaBackoffs: DefaultMaxCsmaBackoffs,
	}
}

func (c *CsmaCa) SetMacStateCallback(cb func(status types.CcaStatus))          { c.macStateCb = cb }
func (c *CsmaCa) SetFallbackCcaConfirmCallback(cb func(status types.CcaStatus)) { c.fallbackCb = cb }

func (c *CsmaCa) Start() {
	c.running = true
	c.nb = 0
	c.be = c.MinBe
	c.scheduleBackoff()
}

func (c *CsmaCa) scheduleBackoff() {
	window := int64(1) << c.be
	delay := time.Duration(c.rng.Int63n(window)) * unitBackoffPeriod
	c.backoffID = c.sched.ScheduleAfter(delay, func() {
		if !c.running {
			return
		}
		c.waitingCca = true
		c.adapter.PlmeCcaRequest()
	})
}

func (c *CsmaCa) Cancel() {
	if !c.running {
		return
	}
	if c.waitingCca {
		c.adapter.PlmeCcaCancel()
	} else {
		c.sched.Cancel(c.backoffID)
	}
	c.running = false
	c.waitingCca = false
}

func (c *CsmaCa) PlmeCcaConfirm(status types.CcaStatus) {
	if !c.running || !c.waitingCca {
		if c.fallbackCb != nil {
			c.fallbackCb(status)
		}
		return
	}
	c.waitingCca = false

	if status == types.CcaIdle {
		c.running = false
		if c.macStateCb != nil {
			c.macStateCb(types.CcaIdle)
		}
		return
	}

	c.nb++
	c.be++
	if c.be > c.MaxBe {
		c.be = c.MaxBe
	}
	if c.nb > c.MaxCsmaBackoffs {
		c.running = false
		if c.macStateCb != nil {
			c.macStateCb(types.CcaBusy)
		}
		return
	}
	c.scheduleBackoff()
}

// Chain builds a fallback sequence: attempting primary first, and on any CCA
// confirm primary is not waiting for, handing it to the next strategy in
// order. Per the RIT MAC's configured fallback chain (PreCsB -> PreCs ->
// CsmaCa), this lets a confirm that arrives after one strategy gave up still
// resolve through the next.
func Chain(strategies ...Access) {
	for i := 0; i < len(strategies)-1; i++ {
		next := strategies[i+1]
		logger.AssertTrue(next != nil)
		strategies[i].SetFallbackCcaConfirmCallback(next.PlmeCcaConfirm)
	}
}
