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
	"encoding/binary"
	"hash/crc32"

	"github.com/ritmac/ritsim/types"
)

// IEEE 802.15.4-2006 PHY/MAC framing limits, used to bound the MSDU a
// McpsDataRequest will accept.
const (
	aMaxPhyPacketSize  = 127
	aMinMPDUOverhead   = 9
	MaxMpduPayloadSize = aMaxPhyPacketSize - aMinMPDUOverhead
)

// CommandId identifies the payload of a command frame.
type CommandId byte

const (
	CommandRitDataReq CommandId = 0x01
	CommandRitDataRes CommandId = 0x02
)

// MacHeader is the frame-control portion of every MAC frame: type, sequence
// number, flags, and addressing. Address fields are only meaningful when the
// corresponding AddrMode is not AddrModeNone.
type MacHeader struct {
	FrameType       types.FrameType
	SeqNum          byte
	FrameVersion    byte // 0 or 1
	AckRequest      bool
	PanIdCompressed bool
	SecurityEnabled bool

	SrcAddrMode types.AddrMode
	SrcPanId    types.PanId
	SrcShort    types.ShortAddress
	SrcExt      types.ExtAddress

	DstAddrMode types.AddrMode
	DstPanId    types.PanId
	DstShort    types.ShortAddress
	DstExt      types.ExtAddress
}

const (
	fcFrameTypeMask  = 0x07
	fcSecEnabledBit  = 1 << 3
	fcAckRequestBit  = 1 << 4
	fcPanCompressBit = 1 << 5
	fcVersionShift   = 6

	addrModeMask     = 0x03
	srcAddrModeShift = 2
)

// EncodeMacHeader appends the wire form of h to buf.
//
//	byte 0: frame-control low  = type(3) | secEnabled(1) | ackRequest(1) | panCompressed(1) | version(2)
//	byte 1: frame-control high = dstAddrMode(2) | srcAddrMode(2) | reserved(4)
//	byte 2: sequence number
//	[dst PAN (2), if DstAddrMode != none]
//	[dst addr (2 or 8), per DstAddrMode]
//	[src PAN (2), if SrcAddrMode != none && !PanIdCompressed]
//	[src addr (2 or 8), per SrcAddrMode]
func EncodeMacHeader(buf []byte, h MacHeader) []byte {
	fc0 := byte(h.FrameType) & fcFrameTypeMask
	if h.SecurityEnabled {
		fc0 |= fcSecEnabledBit
	}
	if h.AckRequest {
		fc0 |= fcAckRequestBit
	}
	if h.PanIdCompressed {
		fc0 |= fcPanCompressBit
	}
	fc0 |= (h.FrameVersion & 0x03) << fcVersionShift

	fc1 := byte(h.DstAddrMode)&addrModeMask | (byte(h.SrcAddrMode)&addrModeMask)<<srcAddrModeShift

	buf = append(buf, fc0, fc1, h.SeqNum)

	if h.DstAddrMode != types.AddrModeNone {
		buf = appendU16(buf, uint16(h.DstPanId))
		buf = appendAddr(buf, h.DstAddrMode, h.DstShort, h.DstExt)
	}
	if h.SrcAddrMode != types.AddrModeNone && !h.PanIdCompressed {
		buf = appendU16(buf, uint16(h.SrcPanId))
	}
	if h.SrcAddrMode != types.AddrModeNone {
		buf = appendAddr(buf, h.SrcAddrMode, h.SrcShort, h.SrcExt)
	}
	return buf
}

// DecodeMacHeader reads a MacHeader from the front of buf. Returns ok=false
// on any truncation (malformed frame -> dropped, not panicked).
func DecodeMacHeader(buf []byte) (h MacHeader, ok bool, rest []byte) {
	if len(buf) < 3 {
		return MacHeader{}, false, buf
	}
	fc0, fc1, seq := buf[0], buf[1], buf[2]
	buf = buf[3:]

	h.FrameType = types.FrameType(fc0 & fcFrameTypeMask)
	h.SecurityEnabled = fc0&fcSecEnabledBit != 0
	h.AckRequest = fc0&fcAckRequestBit != 0
	h.PanIdCompressed = fc0&fcPanCompressBit != 0
	h.FrameVersion = fc0 >> fcVersionShift & 0x03
	h.SeqNum = seq

	h.DstAddrMode = types.AddrMode(fc1 & addrModeMask)
	h.SrcAddrMode = types.AddrMode((fc1 >> srcAddrModeShift) & addrModeMask)

	if h.DstAddrMode != types.AddrModeNone {
		var pan uint16
		if pan, ok, buf = readU16(buf); !ok {
			return MacHeader{}, false, buf
		}
		h.DstPanId = types.PanId(pan)
		if h.DstShort, h.DstExt, ok, buf = readAddr(buf, h.DstAddrMode); !ok {
			return MacHeader{}, false, buf
		}
	}
	if h.SrcAddrMode != types.AddrModeNone && !h.PanIdCompressed {
		var pan uint16
		if pan, ok, buf = readU16(buf); !ok {
			return MacHeader{}, false, buf
		}
		h.SrcPanId = types.PanId(pan)
	} else if h.PanIdCompressed {
		h.SrcPanId = h.DstPanId
	}
	if h.SrcAddrMode != types.AddrModeNone {
		if h.SrcShort, h.SrcExt, ok, buf = readAddr(buf, h.SrcAddrMode); !ok {
			return MacHeader{}, false, buf
		}
	}
	return h, true, buf
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func readU16(buf []byte) (v uint16, ok bool, rest []byte) {
	if len(buf) < 2 {
		return 0, false, buf
	}
	return binary.LittleEndian.Uint16(buf[:2]), true, buf[2:]
}

func appendAddr(buf []byte, mode types.AddrMode, short types.ShortAddress, ext types.ExtAddress) []byte {
	switch mode {
	case types.AddrModeShort:
		return appendU16(buf, uint16(short))
	case types.AddrModeExtended:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(ext))
		return append(buf, b[:]...)
	default:
		return buf
	}
}

func readAddr(buf []byte, mode types.AddrMode) (short types.ShortAddress, ext types.ExtAddress, ok bool, rest []byte) {
	switch mode {
	case types.AddrModeShort:
		v, ok2, r := readU16(buf)
		return types.ShortAddress(v), 0, ok2, r
	case types.AddrModeExtended:
		if len(buf) < 8 {
			return 0, 0, false, buf
		}
		return 0, types.ExtAddress(binary.LittleEndian.Uint64(buf[:8])), true, buf[8:]
	default:
		return 0, 0, true, buf
	}
}

// EncodeCommandPayload appends a command id followed by payload to buf.
func EncodeCommandPayload(buf []byte, id CommandId, payload []byte) []byte {
	buf = append(buf, byte(id))
	return append(buf, payload...)
}

// DecodeCommandPayload reads a command id and the remaining payload bytes.
func DecodeCommandPayload(buf []byte) (id CommandId, payload []byte, ok bool) {
	if len(buf) < 1 {
		return 0, nil, false
	}
	return CommandId(buf[0]), buf[1:], true
}

// FCSSize is the wire size of the FCS trailer.
const FCSSize = 4

// AppendFCS appends a CRC32 checksum of buf to buf.
func AppendFCS(buf []byte) []byte {
	sum := crc32.ChecksumIEEE(buf)
	return appendU32(buf, sum)
}

// CheckAndStripFCS validates the trailing FCS of buf and, if valid, returns
// the buffer with the FCS removed. ok is false on a truncated buffer or a
// checksum mismatch (a corrupted frame — dropped, not panicked).
func CheckAndStripFCS(buf []byte) (payload []byte, ok bool) {
	if len(buf) < FCSSize {
		return nil, false
	}
	body := buf[:len(buf)-FCSSize]
	trailer := buf[len(buf)-FCSSize:]
	want := binary.LittleEndian.Uint32(trailer)
	got := crc32.ChecksumIEEE(body)
	if want != got {
		return nil, false
	}
	return body, true
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
