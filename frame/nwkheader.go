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

// Package frame implements the wire encoding for RIT MAC headers, command
// payloads, and the rank-based network header. Every Decode* function
// returns ok=false on a truncated or otherwise malformed buffer rather than
// panicking: a bad frame is a dropped frame, not a crash.
package frame

import (
	"encoding/binary"

	"github.com/ritmac/ritsim/types"
)

// RitNwkHeaderSize is the fixed wire size of RitNwkHeader.
const RitNwkHeaderSize = 6

// RitNwkHeader is the minimal rank-based network header: rank, source short
// address, destination short address, 6 bytes total, little-endian.
//
//	offset 0: rank   u16
//	offset 2: src    u16
//	offset 4: dst    u16
type RitNwkHeader struct {
	Rank uint16
	Src  types.ShortAddress
	Dst  types.ShortAddress
}

// EncodeRitNwkHeader appends the wire form of h to buf and returns the result.
func EncodeRitNwkHeader(buf []byte, h RitNwkHeader) []byte {
	var b [RitNwkHeaderSize]byte
	binary.LittleEndian.PutUint16(b[0:2], h.Rank)
	binary.LittleEndian.PutUint16(b[2:4], uint16(h.Src))
	binary.LittleEndian.PutUint16(b[4:6], uint16(h.Dst))
	return append(buf, b[:]...)
}

// DecodeRitNwkHeader reads a RitNwkHeader from the front of buf, returning the
// header, whether decoding succeeded, and the remaining unconsumed bytes.
func DecodeRitNwkHeader(buf []byte) (h RitNwkHeader, ok bool, rest []byte) {
	if len(buf) < RitNwkHeaderSize {
		return RitNwkHeader{}, false, buf
	}
	h.Rank = binary.LittleEndian.Uint16(buf[0:2])
	h.Src = types.ShortAddress(binary.LittleEndian.Uint16(buf[2:4]))
	h.Dst = types.ShortAddress(binary.LittleEndian.Uint16(buf[4:6]))
	return h, true, buf[RitNwkHeaderSize:]
}

// RitSubHeaderSize is the fixed wire size of RitSubHeader.
const RitSubHeaderSize = 1

const subHeaderContinuousBit = 1 << 0

// RitSubHeader is a 1-byte flag field carried between the command payload
// header and the RIT NWK header; bit 0 marks a continuous-TX cycle, bits 1-7
// are reserved. The MAC's send paths never insert it, with or without
// continuous_tx; only this codec encodes and decodes it.
type RitSubHeader struct {
	Continuous bool
}

// EncodeRitSubHeader appends the wire form of h to buf.
func EncodeRitSubHeader(buf []byte, h RitSubHeader) []byte {
	var flags byte
	if h.Continuous {
		flags |= subHeaderContinuousBit
	}
	return append(buf, flags)
}

// DecodeRitSubHeader reads a RitSubHeader from the front of buf.
func DecodeRitSubHeader(buf []byte) (h RitSubHeader, ok bool, rest []byte) {
	if len(buf) < RitSubHeaderSize {
		return RitSubHeader{}, false, buf
	}
	h.Continuous = buf[0]&subHeaderContinuousBit != 0
	return h, true, buf[RitSubHeaderSize:]
}
