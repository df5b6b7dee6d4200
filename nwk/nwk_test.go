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

package nwk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ritmac/ritsim/prng"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/trace"
	"github.com/ritmac/ritsim/types"
)

type stubMac struct {
	sentParams  []McpsDataRequestParams
	sentPayload [][]byte
	pibValues   map[types.PibAttr]interface{}
	sendRitCalls int
}

func newStubMac() *stubMac {
	return &stubMac{pibValues: make(map[types.PibAttr]interface{})}
}

func (m *stubMac) McpsDataRequest(params McpsDataRequestParams, payload []byte) {
	m.sentParams = append(m.sentParams, params)
	m.sentPayload = append(m.sentPayload, payload)
}

func (m *stubMac) MlmeSetRequest(id types.PibAttr, value interface{}) error {
	m.pibValues[id] = value
	return nil
}

func (m *stubMac) SendRitData() { m.sendRitCalls++ }

func newTestNwk(t *testing.T, mac Mac, cfg Config) (*Nwk, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.NewAt(time.Unix(0, 0))
	root := prng.NewRoot(1)
	n := New(mac, sched, &trace.Bus{}, root.RunStream(prng.StreamBaseRetryDelay, 1), cfg)
	return n, sched
}

func TestSendEncodesNwkHeaderAndForwardsToMac(t *testing.T) {
	mac := newStubMac()
	n, _ := newTestNwk(t, mac, DefaultConfig())
	n.SetShortAddress(0x0001)
	n.SetRank(2)

	n.Send([]byte{0xaa, 0xbb}, 0x0002)

	require.Len(t, mac.sentPayload, 1)
	require.Equal(t, types.ShortAddress(0x0002), mac.sentParams[0].DstShort)
	require.Equal(t, []byte{0xaa, 0xbb}, mac.sentPayload[0][6:])
}

func TestMcpsDataIndicationDeliversWhenAddressedToSelf(t *testing.T) {
	mac := newStubMac()
	n, _ := newTestNwk(t, mac, DefaultConfig())
	n.SetShortAddress(0x0001)
	n.SetRank(1)

	var gotPayload []byte
	var gotSrc types.ShortAddress
	n.SetRxCallback(func(payload []byte, src types.ShortAddress) {
		gotPayload, gotSrc = payload, src
	})

	hdr := encodeHdr(t, 5, 0x0002, 0x0001)
	wire := append(hdr, []byte{1, 2, 3}...)
	n.McpsDataIndication(wire)

	require.Equal(t, []byte{1, 2, 3}, gotPayload)
	require.Equal(t, types.ShortAddress(0x0002), gotSrc)
}

func TestMcpsDataIndicationForwardsWhenPacketRankExceedsOwn(t *testing.T) {
	mac := newStubMac()
	n, _ := newTestNwk(t, mac, DefaultConfig())
	n.SetShortAddress(0x0001)
	n.SetRank(1)

	hdr := encodeHdr(t, 5, 0x0003, 0x0099) // not addressed to us, rank 5 > our rank 1
	wire := append(hdr, []byte{9}...)
	n.McpsDataIndication(wire)

	require.Len(t, mac.sentPayload, 1, "should have re-sent uplink")
}

func TestMcpsDataIndicationDropsWhenRankNotHigher(t *testing.T) {
	mac := newStubMac()
	n, _ := newTestNwk(t, mac, DefaultConfig())
	n.SetShortAddress(0x0001)
	n.SetRank(5)

	hdr := encodeHdr(t, 1, 0x0003, 0x0099)
	wire := append(hdr, []byte{9}...)
	n.McpsDataIndication(wire)

	require.Empty(t, mac.sentPayload)
}

func TestMcpsDataConfirmSuccessClearsPending(t *testing.T) {
	mac := newStubMac()
	n, _ := newTestNwk(t, mac, DefaultConfig())
	n.SetShortAddress(0x0001)
	n.Send([]byte{1}, 0x0002)

	require.Len(t, n.pending, 1)
	n.McpsDataConfirm(0, types.MacSuccess)
	require.Empty(t, n.pending)
}

func TestMcpsDataConfirmNoAckRetriesUpToMax(t *testing.T) {
	mac := newStubMac()
	n, sched := newTestNwk(t, mac, Config{MaxRetries: 1, RetryDelayBound: time.Second})
	n.SetShortAddress(0x0001)
	n.Send([]byte{1}, 0x0002)
	require.Len(t, mac.sentPayload, 1)

	n.McpsDataConfirm(0, types.MacNoAck)
	sched.RunUntil(sched.Now().Add(2 * time.Second))
	require.Len(t, mac.sentPayload, 2, "one retry should have been sent")

	n.McpsDataConfirm(1, types.MacNoAck)
	require.Empty(t, n.pending, "exhausted retries should drop the packet")
}

func TestMlmeRitRequestIndicationTriggersSendRitDataFromDirectChild(t *testing.T) {
	mac := newStubMac()
	n, sched := newTestNwk(t, mac, DefaultConfig())
	n.SetRank(2)

	hdr := encodeHdr(t, 1, 0x0005, types.ShortBroadcastAddr)
	n.MlmeRitRequestIndication(hdr)
	require.Equal(t, 0, mac.sendRitCalls, "SendRitData must not run inline, only on the next tick")

	sched.RunUntil(sched.Now())
	require.Equal(t, 1, mac.sendRitCalls)
}

func TestMlmeRitRequestIndicationIgnoresNonChild(t *testing.T) {
	mac := newStubMac()
	n, sched := newTestNwk(t, mac, DefaultConfig())
	n.SetRank(2)

	hdr := encodeHdr(t, 9, 0x0005, types.ShortBroadcastAddr)
	n.MlmeRitRequestIndication(hdr)
	sched.RunUntil(sched.Now())

	require.Equal(t, 0, mac.sendRitCalls)
}

func encodeHdr(t *testing.T, rank uint16, src, dst types.ShortAddress) []byte {
	t.Helper()
	return []byte{
		byte(rank), byte(rank >> 8),
		byte(src), byte(src >> 8),
		byte(dst), byte(dst >> 8),
	}
}
