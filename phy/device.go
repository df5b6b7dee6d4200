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
	"time"

	"github.com/ritmac/ritsim/logger"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/types"
)

// symbolDuration and ccaDuration follow the O-QPSK 2.4GHz PHY timing used
// throughout the corpus this core is drawn from: one symbol is 16µs (62.5
// ksymbol/s), one CCA slot is 8 symbols.
const (
	symbolDuration = 16 * time.Microsecond
	ccaDuration    = 8 * symbolDuration
	perByteTime    = 2 * symbolDuration // 4 bits/symbol at 2 symbols/byte-ish approximation
)

// Device is one node's attachment point to a Medium. It implements Adapter.
type Device struct {
	nodeId types.NodeId
	medium *Medium
	sched  *scheduler.Scheduler

	trxState  types.TrxState
	ccaActive bool
	ccaEvent  scheduler.EventID

	dataIndicationCb func(frame []byte)
	dataConfirmCb    func(status types.MacStatus)
	ccaConfirmCb     func(status types.CcaStatus)
	stateConfirmCb   func(state types.TrxState, status types.MacStatus)
}

// NewDevice creates a Device for nodeId, attaches it to medium, and schedules
// its events through sched.
func NewDevice(nodeId types.NodeId, medium *Medium, sched *scheduler.Scheduler) *Device {
	d := &Device{nodeId: nodeId, medium: medium, sched: sched, trxState: types.TrxOff}
	medium.Attach(d)
	return d
}

func (d *Device) SetDataIndicationCallback(cb func(frame []byte))                 { d.dataIndicationCb = cb }
func (d *Device) SetDataConfirmCallback(cb func(status types.MacStatus))          { d.dataConfirmCb = cb }
func (d *Device) SetCcaConfirmCallback(cb func(status types.CcaStatus))           { d.ccaConfirmCb = cb }
func (d *Device) SetStateConfirmCallback(cb func(state types.TrxState, status types.MacStatus)) {
	d.stateConfirmCb = cb
}

// PdDataRequest transmits frame onto the medium. The PHY confirms the
// transmission once the frame's nominal airtime has elapsed.
func (d *Device) PdDataRequest(frame []byte) {
	txDuration := time.Duration(len(frame)) * perByteTime
	d.medium.transmit(d, frame, txDuration)
	d.sched.ScheduleAfter(txDuration, func() {
		if d.dataConfirmCb != nil {
			d.dataConfirmCb(types.MacSuccess)
		}
	})
}

// PlmeSetTrxStateRequest switches the transceiver state, confirming
// immediately; a production PHY would model the actual switch latency.
func (d *Device) PlmeSetTrxStateRequest(state types.TrxState) {
	d.trxState = state
	if d.stateConfirmCb != nil {
		d.stateConfirmCb(state, types.MacSuccess)
	}
}

// PlmeCcaRequest samples the medium's busy/idle state one CCA slot from now.
func (d *Device) PlmeCcaRequest() {
	logger.AssertTrue(!d.ccaActive)
	d.ccaActive = true
	d.ccaEvent = d.sched.ScheduleAfter(ccaDuration, func() {
		d.ccaActive = false
		status := types.CcaIdle
		if d.medium.Busy() {
			status = types.CcaBusy
		}
		if d.ccaConfirmCb != nil {
			d.ccaConfirmCb(status)
		}
	})
}

// PlmeCcaCancel aborts a CCA in progress; a no-op if none is pending.
func (d *Device) PlmeCcaCancel() {
	if !d.ccaActive {
		return
	}
	d.sched.Cancel(d.ccaEvent)
	d.ccaActive = false
}

func (d *Device) receive(frame []byte) {
	if d.trxState != types.TrxRx {
		return
	}
	if d.dataIndicationCb != nil {
		d.dataIndicationCb(frame)
	}
}
