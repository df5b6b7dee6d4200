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

package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ritmac/ritsim/types"
)

func TestRitNwkHeaderRoundTrip(t *testing.T) {
	h := RitNwkHeader{Rank: 2, Src: 0x0042, Dst: 0x0001}
	buf := EncodeRitNwkHeader(nil, h)
	require.Len(t, buf, RitNwkHeaderSize)
	got, ok, rest := DecodeRitNwkHeader(buf)
	require.True(t, ok)
	require.Empty(t, rest)
	require.Equal(t, h, got)
}

func TestRitNwkHeaderDecodeTruncated(t *testing.T) {
	_, ok, _ := DecodeRitNwkHeader([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestRitSubHeaderRoundTrip(t *testing.T) {
	h := RitSubHeader{Continuous: true}
	buf := EncodeRitSubHeader(nil, h)
	require.Len(t, buf, RitSubHeaderSize)
	got, ok, _ := DecodeRitSubHeader(buf)
	require.True(t, ok)
	require.Equal(t, h, got)
}

func TestMacHeaderRoundTripShortAddressing(t *testing.T) {
	h := MacHeader{
		FrameType:    types.FrameTypeData,
		SeqNum:       7,
		FrameVersion: 1,
		AckRequest:   true,
		SrcAddrMode:  types.AddrModeShort,
		SrcPanId:     0x1234,
		SrcShort:     0x0001,
		DstAddrMode:  types.AddrModeShort,
		DstPanId:     0x1234,
		DstShort:     0x0000,
	}
	buf := EncodeMacHeader(nil, h)
	got, ok, rest := DecodeMacHeader(buf)
	require.True(t, ok)
	require.Empty(t, rest)
	require.Equal(t, h, got)
}

func TestMacHeaderRoundTripPanCompressed(t *testing.T) {
	h := MacHeader{
		FrameType:       types.FrameTypeCommand,
		SeqNum:          1,
		FrameVersion:    1,
		PanIdCompressed: true,
		SrcAddrMode:     types.AddrModeShort,
		SrcShort:        0x0000,
		DstAddrMode:     types.AddrModeNone,
	}
	buf := EncodeMacHeader(nil, h)
	got, ok, _ := DecodeMacHeader(buf)
	require.True(t, ok)
	require.Equal(t, h.SrcShort, got.SrcShort)
	require.True(t, got.PanIdCompressed)
}

func TestMacHeaderExtendedAddressing(t *testing.T) {
	h := MacHeader{
		FrameType:   types.FrameTypeData,
		SeqNum:      3,
		DstAddrMode: types.AddrModeExtended,
		DstExt:      0x0102030405060708,
		SrcAddrMode: types.AddrModeExtended,
		SrcExt:      0x1112131415161718,
	}
	buf := EncodeMacHeader(nil, h)
	got, ok, rest := DecodeMacHeader(buf)
	require.True(t, ok)
	require.Empty(t, rest)
	require.Equal(t, h.DstExt, got.DstExt)
	require.Equal(t, h.SrcExt, got.SrcExt)
}

func TestDecodeMacHeaderTruncated(t *testing.T) {
	_, ok, _ := DecodeMacHeader([]byte{0x01})
	require.False(t, ok)
}

func TestCommandPayloadRoundTrip(t *testing.T) {
	payload := []byte{0xaa, 0xbb, 0xcc}
	buf := EncodeCommandPayload(nil, CommandRitDataReq, payload)
	id, got, ok := DecodeCommandPayload(buf)
	require.True(t, ok)
	require.Equal(t, CommandRitDataReq, id)
	require.Equal(t, payload, got)
}

func TestFCSRoundTrip(t *testing.T) {
	body := []byte("hello rit")
	buf := AppendFCS(append([]byte{}, body...))
	got, ok := CheckAndStripFCS(buf)
	require.True(t, ok)
	require.Equal(t, body, got)
}

func TestFCSMismatchDropped(t *testing.T) {
	body := []byte("hello rit")
	buf := AppendFCS(append([]byte{}, body...))
	buf[0] ^= 0xff // corrupt
	_, ok := CheckAndStripFCS(buf)
	require.False(t, ok)
}

func TestFullDataFrameRoundTrip(t *testing.T) {
	mac := MacHeader{
		FrameType:    types.FrameTypeData,
		SeqNum:       5,
		FrameVersion: 1,
		AckRequest:   true,
		SrcAddrMode:  types.AddrModeShort,
		SrcShort:     0x0002,
		DstAddrMode:  types.AddrModeShort,
		DstShort:     0x0000,
	}
	nwk := RitNwkHeader{Rank: 1, Src: 0x0002, Dst: 0x0000}
	payload := []byte{1, 2, 3, 4, 5}

	var buf []byte
	buf = EncodeMacHeader(buf, mac)
	buf = EncodeRitNwkHeader(buf, nwk)
	buf = append(buf, payload...)
	buf = AppendFCS(buf)

	body, ok := CheckAndStripFCS(buf)
	require.True(t, ok)

	gotMac, ok, rest := DecodeMacHeader(body)
	require.True(t, ok)
	require.Equal(t, mac, gotMac)

	gotNwk, ok, rest := DecodeRitNwkHeader(rest)
	require.True(t, ok)
	require.Equal(t, nwk, gotNwk)
	require.Equal(t, payload, rest)
}
