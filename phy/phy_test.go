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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ritmac/ritsim/prng"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/types"
)

func newTestMedium(t *testing.T, cfg MediumConfig) (*Medium, *scheduler.Scheduler) {
	t.Helper()
	root := prng.NewRoot(1)
	sched := scheduler.NewAt(time.Unix(0, 0))
	lossRng := root.RunStream(prng.StreamBasePhyLoss, 1)
	delayRng := root.RunStream(prng.StreamBasePhyDelay, 1)
	return NewMedium(cfg, sched, lossRng, delayRng), sched
}

func TestDeliversFrameToAttachedReceiver(t *testing.T) {
	medium, sched := newTestMedium(t, DefaultMediumConfig())
	tx := NewDevice(1, medium, sched)
	rx := NewDevice(2, medium, sched)
	rx.PlmeSetTrxStateRequest(types.TrxRx)

	var received []byte
	rx.SetDataIndicationCallback(func(frame []byte) { received = frame })

	tx.PdDataRequest([]byte{1, 2, 3})
	sched.RunUntil(sched.Now().Add(time.Millisecond))

	require.Equal(t, []byte{1, 2, 3}, received)
}

func TestReceiverIgnoresFrameWhenNotListening(t *testing.T) {
	medium, sched := newTestMedium(t, DefaultMediumConfig())
	tx := NewDevice(1, medium, sched)
	rx := NewDevice(2, medium, sched)

	called := false
	rx.SetDataIndicationCallback(func(frame []byte) { called = true })

	tx.PdDataRequest([]byte{1, 2, 3})
	sched.RunUntil(sched.Now().Add(time.Millisecond))

	require.False(t, called)
}

func TestDataRequestConfirmsSuccess(t *testing.T) {
	medium, sched := newTestMedium(t, DefaultMediumConfig())
	tx := NewDevice(1, medium, sched)

	var status types.MacStatus
	confirmed := false
	tx.SetDataConfirmCallback(func(s types.MacStatus) { status = s; confirmed = true })

	tx.PdDataRequest([]byte{1, 2, 3, 4})
	sched.RunUntil(sched.Now().Add(time.Millisecond))

	require.True(t, confirmed)
	require.Equal(t, types.MacSuccess, status)
}

func TestTotalLossDropsFrame(t *testing.T) {
	cfg := DefaultMediumConfig()
	cfg.LossProbability = 1.0
	medium, sched := newTestMedium(t, cfg)
	tx := NewDevice(1, medium, sched)
	rx := NewDevice(2, medium, sched)
	rx.PlmeSetTrxStateRequest(types.TrxRx)

	called := false
	rx.SetDataIndicationCallback(func(frame []byte) { called = true })

	tx.PdDataRequest([]byte{1, 2, 3})
	sched.RunUntil(sched.Now().Add(time.Millisecond))

	require.False(t, called)
}

func TestCcaReportsIdleOnQuietChannel(t *testing.T) {
	medium, sched := newTestMedium(t, DefaultMediumConfig())
	dev := NewDevice(1, medium, sched)

	var status types.CcaStatus
	confirmed := false
	dev.SetCcaConfirmCallback(func(s types.CcaStatus) { status = s; confirmed = true })

	dev.PlmeCcaRequest()
	sched.RunUntil(sched.Now().Add(time.Millisecond))

	require.True(t, confirmed)
	require.Equal(t, types.CcaIdle, status)
}

func TestCcaCancelSuppressesConfirm(t *testing.T) {
	medium, sched := newTestMedium(t, DefaultMediumConfig())
	dev := NewDevice(1, medium, sched)

	confirmed := false
	dev.SetCcaConfirmCallback(func(s types.CcaStatus) { confirmed = true })

	dev.PlmeCcaRequest()
	dev.PlmeCcaCancel()
	sched.RunUntil(sched.Now().Add(time.Millisecond))

	require.False(t, confirmed)
}

func TestPlmeSetTrxStateRequestConfirms(t *testing.T) {
	medium, sched := newTestMedium(t, DefaultMediumConfig())
	dev := NewDevice(1, medium, sched)

	var gotState types.TrxState
	confirmed := false
	dev.SetStateConfirmCallback(func(state types.TrxState, status types.MacStatus) {
		gotState = state
		confirmed = true
	})

	dev.PlmeSetTrxStateRequest(types.TrxRx)

	require.True(t, confirmed)
	require.Equal(t, types.TrxRx, gotState)
}
