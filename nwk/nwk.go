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

// Package nwk implements a minimal rank-based forwarding layer above the RIT
// MAC: packets are addressed uplink by comparing a header-carried rank
// against the local node's rank, with no route discovery or maintenance.
// It is deliberately simple so that network-layer behavior never masks
// MAC-layer effects in a run.
package nwk

import (
	"math/rand"
	"time"

	"github.com/ritmac/ritsim/frame"
	"github.com/ritmac/ritsim/logger"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/trace"
	"github.com/ritmac/ritsim/types"
)

// McpsDataRequestParams is the subset of MCPS-DATA.request fields the NWK
// layer fills in on every downward transmission. It is a plain alias of the
// shared types.McpsDataRequestParams so that ritsim/mac can implement this
// package's Mac interface without importing ritsim/nwk.
type McpsDataRequestParams = types.McpsDataRequestParams

// Mac is the MAC-layer surface the NWK layer drives. A real RIT MAC instance
// (ritsim/mac) satisfies this; tests can substitute a stub.
type Mac interface {
	McpsDataRequest(params McpsDataRequestParams, payload []byte)
	MlmeSetRequest(id types.PibAttr, value interface{}) error
	SendRitData()
}

// DefaultMaxRetries and DefaultRetryDelayBound are the original evaluation
// defaults: no MAC-layer retry, and (where retries are enabled) a uniformly
// random delay up to 5 seconds before resending.
const (
	DefaultMaxRetries      = 0
	DefaultRetryDelayBound = 5 * time.Second
)

type pendingTx struct {
	payload []byte // NWK-header-less application payload
	dst     types.ShortAddress
	retries int
}

// Nwk is one node's rank-based forwarding instance.
type Nwk struct {
	mac   Mac
	sched *scheduler.Scheduler
	bus   *trace.Bus
	rng   *rand.Rand

	rank      uint16
	shortAddr types.ShortAddress

	maxRetries      int
	retryDelayBound time.Duration

	nwkHandle byte
	macHandle byte

	pending       map[byte]*pendingTx // by NWK handle
	msduToNwkMap  map[byte]byte       // MAC handle -> NWK handle

	rxCallback func(payload []byte, src types.ShortAddress)
}

// Config carries the construction-time parameters the original evaluation
// hard-coded as constants: New exposes them so a scenario can tune
// retry behavior per run.
type Config struct {
	MaxRetries      int
	RetryDelayBound time.Duration
}

// DefaultConfig returns the original evaluation's retry behavior: no retry.
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, RetryDelayBound: DefaultRetryDelayBound}
}

// New creates an Nwk instance bound to mac, scheduling retries through sched
// and drawing retry delays from rng (typically a ritsim/prng node stream
// keyed by prng.StreamBaseRetryDelay).
func New(mac Mac, sched *scheduler.Scheduler, bus *trace.Bus, rng *rand.Rand, cfg Config) *Nwk {
	return &Nwk{
		mac:             mac,
		sched:           sched,
		bus:             bus,
		rng:             rng,
		maxRetries:      cfg.MaxRetries,
		retryDelayBound: cfg.RetryDelayBound,
		pending:         make(map[byte]*pendingTx),
		msduToNwkMap:    make(map[byte]byte),
	}
}

// SetRank sets this node's rank and, as a side effect, pushes the RIT
// request payload (a bare NWK header advertising that rank, addressed to
// broadcast) down into the MAC's PIB so the MAC's periodic beacon carries it.
func (n *Nwk) SetRank(rank uint16) {
	n.rank = rank
	hdr := frame.RitNwkHeader{Rank: rank, Src: n.shortAddr, Dst: types.ShortBroadcastAddr}
	payload := frame.EncodeRitNwkHeader(nil, hdr)
	if err := n.mac.MlmeSetRequest(types.PibMacRitRequestPayload, payload); err != nil {
		logger.Errorf("nwk: failed to set RIT request payload: %v", err)
	}
}

// Rank returns the node's currently configured rank.
func (n *Nwk) Rank() uint16 { return n.rank }

// SetShortAddress sets the node's own short address, used both as the
// source address of packets it originates and to recognize packets destined
// to itself.
func (n *Nwk) SetShortAddress(addr types.ShortAddress) { n.shortAddr = addr }

// SetRxCallback installs the callback invoked when a packet destined to this
// node is received.
func (n *Nwk) SetRxCallback(cb func(payload []byte, src types.ShortAddress)) {
	n.rxCallback = cb
}

// Send originates a new packet toward dst, allocating a fresh NWK handle.
func (n *Nwk) Send(payload []byte, dst types.ShortAddress) {
	h := n.nwkHandle
	n.nwkHandle++
	n.pending[h] = &pendingTx{payload: payload, dst: dst, retries: 0}
	n.sendWithHandle(h)
}

func (n *Nwk) sendWithHandle(nwkHandle byte) {
	tx, ok := n.pending[nwkHandle]
	logger.AssertTrue(ok)

	msduHandle := n.macHandle
	n.macHandle++
	n.msduToNwkMap[msduHandle] = nwkHandle

	hdr := frame.RitNwkHeader{Rank: n.rank, Src: n.shortAddr, Dst: tx.dst}
	var wire []byte
	wire = frame.EncodeRitNwkHeader(wire, hdr)
	wire = append(wire, tx.payload...)

	n.bus.Publish(trace.NwkTx, 0, wire)

	n.mac.McpsDataRequest(McpsDataRequestParams{
		DstAddrMode: types.AddrModeShort,
		DstShort:    tx.dst,
		MsduHandle:  msduHandle,
		TxOptions:   types.TxOptAck,
	}, wire)
}

// McpsDataConfirm is the MAC's outcome notification for a previously
// requested transmission. On MacNoAck, up to maxRetries resends are
// attempted after a random delay bounded by retryDelayBound; any other
// non-success status drops the packet.
func (n *Nwk) McpsDataConfirm(msduHandle byte, status types.MacStatus) {
	nwkHandle, ok := n.msduToNwkMap[msduHandle]
	if !ok {
		logger.Warnf("nwk: McpsDataConfirm for unknown msduHandle %d", msduHandle)
		return
	}
	delete(n.msduToNwkMap, msduHandle)

	tx, ok := n.pending[nwkHandle]
	if !ok {
		return
	}

	switch status {
	case types.MacSuccess:
		n.bus.Publish(trace.NwkTxOk, 0, tx)
		delete(n.pending, nwkHandle)
	case types.MacNoAck:
		if tx.retries < n.maxRetries {
			tx.retries++
			n.bus.Publish(trace.NwkReTx, 0, tx)
			delay := n.retryDelay()
			n.sched.ScheduleAfter(delay, func() { n.sendWithHandle(nwkHandle) })
			return
		}
		n.bus.Publish(trace.NwkTxDrop, 0, tx)
		delete(n.pending, nwkHandle)
	default:
		n.bus.Publish(trace.NwkTxDrop, 0, tx)
		delete(n.pending, nwkHandle)
	}
}

func (n *Nwk) retryDelay() time.Duration {
	if n.retryDelayBound <= 0 {
		return 0
	}
	return time.Duration(n.rng.Int63n(int64(n.retryDelayBound)))
}

// McpsDataIndication handles a received NWK-layer frame: deliver to the
// upper layer if addressed to this node, forward uplink if the packet's
// rank exceeds this node's (the tree-forwarding rule), or drop otherwise.
func (n *Nwk) McpsDataIndication(wire []byte) {
	hdr, ok, rest := frame.DecodeRitNwkHeader(wire)
	if !ok {
		n.bus.Publish(trace.NwkRxDrop, 0, wire)
		return
	}

	if hdr.Dst == n.shortAddr {
		n.bus.Publish(trace.NwkRx, 0, wire)
		if n.rxCallback != nil {
			n.rxCallback(rest, hdr.Src)
		}
		return
	}

	if hdr.Rank > n.rank {
		n.bus.Publish(trace.NwkRx, 0, wire)
		n.Send(rest, hdr.Dst)
		return
	}

	n.bus.Publish(trace.NwkRxDrop, 0, wire)
}

// MlmeRitRequestIndication handles a RIT request payload received from the
// MAC (a bare NWK header broadcast by a lower-rank node during its RIT
// cycle). When the requester's rank is exactly one below this node's, the
// requester is this node's designated parent, and this node responds by
// sending queued RIT data.
//
// SendRitData is deferred to the next scheduler tick rather than called
// inline: this callback fires mid-way through the MAC's own
// pdDataIndication/handleRitDataReq call stack, and re-entering the MAC from
// there would run SendRitData's txQueue/mode mutations underneath code that
// hasn't finished mutating the same state itself.
func (n *Nwk) MlmeRitRequestIndication(ritRequestPayload []byte) {
	hdr, ok, _ := frame.DecodeRitNwkHeader(ritRequestPayload)
	if !ok {
		return
	}
	if uint16(hdr.Rank)+1 == n.rank {
		n.sched.ScheduleAfter(0, n.mac.SendRitData)
	}
}
