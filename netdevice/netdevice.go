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

// Package netdevice is the per-node wiring point: it instantiates a PHY
// device, a RIT MAC engine, and a rank-forwarding NWK layer over one
// shared medium, and routes the MLME/MCPS callbacks between them so that a
// caller only has to deal with Send/Receive at the packet level.
package netdevice

import (
	"github.com/ritmac/ritsim/mac"
	"github.com/ritmac/ritsim/nwk"
	"github.com/ritmac/ritsim/phy"
	"github.com/ritmac/ritsim/prng"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/trace"
	"github.com/ritmac/ritsim/types"
)

// Config carries the per-node construction parameters a harness fills in
// from topology/scenario data.
type Config struct {
	NodeId    types.NodeId
	ShortAddr types.ShortAddress
	PanId     types.PanId
	Rank      uint16

	Mac mac.Config
	Nwk nwk.Config
}

// DefaultConfig returns a Config with the MAC/NWK defaults and an
// unassigned address; a caller must still set NodeId/ShortAddr/PanId/Rank.
func DefaultConfig() Config {
	return Config{Mac: mac.DefaultConfig(), Nwk: nwk.DefaultConfig()}
}

// Device is one simulated node: a PHY attachment, a MAC engine, and a NWK
// forwarding layer, wired together and ready to Send/Receive application
// packets.
type Device struct {
	cfg Config

	phy *phy.Device
	Mac *mac.Mac
	Nwk *nwk.Nwk

	receiveCallback func(payload []byte, src types.ShortAddress)
}

// New creates a Device attached to medium, scheduling its events through
// sched and publishing trace events on bus. root partitions this device's
// RNG streams by NodeId so every node's stochastic behavior (clock skew,
// retry jitter) is independently seeded yet reproducible from one root seed.
func New(cfg Config, medium *phy.Medium, sched *scheduler.Scheduler, bus *trace.Bus, root *prng.Root) *Device {
	dev := phy.NewDevice(cfg.NodeId, medium, sched)

	macCfg := cfg.Mac
	macCfg.ShortAddr = cfg.ShortAddr
	macCfg.PanId = cfg.PanId
	skewRng := root.NodeStream(prng.StreamBaseClockSkew, cfg.NodeId)
	m := mac.New(dev, sched, bus, skewRng, macCfg)

	retryRng := root.NodeStream(prng.StreamBaseRetryDelay, cfg.NodeId)
	n := nwk.New(m, sched, bus, retryRng, cfg.Nwk)
	n.SetShortAddress(cfg.ShortAddr)
	n.SetRank(cfg.Rank)

	d := &Device{cfg: cfg, phy: dev, Mac: m, Nwk: n}

	m.SetMcpsDataConfirmCallback(n.McpsDataConfirm)
	m.SetMcpsDataIndicationCallback(n.McpsDataIndication)
	m.SetMlmeRitRequestIndicationCallback(n.MlmeRitRequestIndication)
	n.SetRxCallback(func(payload []byte, src types.ShortAddress) {
		if d.receiveCallback != nil {
			d.receiveCallback(payload, src)
		}
	})

	return d
}

// Send originates an application packet toward dst through the NWK layer.
func (d *Device) Send(payload []byte, dst types.ShortAddress) {
	d.Nwk.Send(payload, dst)
}

// SetReceiveCallback installs the handler invoked for packets addressed to
// this device, with the sender's short address.
func (d *Device) SetReceiveCallback(cb func(payload []byte, src types.ShortAddress)) {
	d.receiveCallback = cb
}

// SetRank updates this device's forwarding rank, which also controls
// whether it answers a given neighbor's RIT requests.
func (d *Device) SetRank(rank uint16) {
	d.cfg.Rank = rank
	d.Nwk.SetRank(rank)
}

// Rank returns this device's currently configured forwarding rank.
func (d *Device) Rank() uint16 { return d.cfg.Rank }

// ShortAddr returns this device's short address.
func (d *Device) ShortAddr() types.ShortAddress { return d.cfg.ShortAddr }

// NodeId returns this device's node identifier.
func (d *Device) NodeId() types.NodeId { return d.cfg.NodeId }
