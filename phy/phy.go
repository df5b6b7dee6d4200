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

// Package phy defines the PHY-layer surface the RIT MAC core consumes and
// ships one concrete double implementing it. A production PHY (a radio
// driver, a hardware-in-the-loop bridge) would satisfy the same Adapter
// interface; the MAC never depends on Medium/Device directly.
package phy

import "github.com/ritmac/ritsim/types"

// Adapter is the PHY service the MAC drives: PD-DATA and PLME-SET-TRX-STATE
// requests going down, four confirm/indication callbacks coming back up.
type Adapter interface {
	// PdDataRequest asks the PHY to transmit frame over the air.
	PdDataRequest(frame []byte)
	// PlmeSetTrxStateRequest asks the PHY to switch its transceiver state.
	PlmeSetTrxStateRequest(state types.TrxState)
	// PlmeCcaRequest starts a single clear-channel-assessment.
	PlmeCcaRequest()
	// PlmeCcaCancel aborts a CCA in progress, if any.
	PlmeCcaCancel()

	SetDataIndicationCallback(cb func(frame []byte))
	SetDataConfirmCallback(cb func(status types.MacStatus))
	SetCcaConfirmCallback(cb func(status types.CcaStatus))
	SetStateConfirmCallback(cb func(state types.TrxState, status types.MacStatus))
}
