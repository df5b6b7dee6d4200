// Copyright (c) 2022, The OTNS Authors.
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

// Package types holds the value types shared across the RIT MAC core: node
// identifiers, addressing, frame enumerations, and MCPS/MLME status codes.
package types

import "math"

type NodeId = int
type ChannelId = int

const (
	MaxNodeId       NodeId = 0xffff
	InvalidNodeId   NodeId = 0
	BroadcastNodeId NodeId = -1
)

const (
	// InvalidExtAddr is the sentinel extended address for an unassigned node.
	InvalidExtAddr uint64 = math.MaxUint64
)

// ShortAddress is a 16-bit MAC address. ShortBroadcastAddr is reserved for
// broadcast/multicast destinations.
type ShortAddress uint16

const ShortBroadcastAddr ShortAddress = 0xffff

// ExtAddress is a 64-bit extended MAC address.
type ExtAddress uint64

// AddrMode selects which address form a header field carries.
type AddrMode uint8

const (
	AddrModeNone     AddrMode = 0
	AddrModeReserved AddrMode = 1
	AddrModeShort    AddrMode = 2
	AddrModeExtended AddrMode = 3
)

func (m AddrMode) String() string {
	switch m {
	case AddrModeNone:
		return "none"
	case AddrModeReserved:
		return "reserved"
	case AddrModeShort:
		return "short"
	case AddrModeExtended:
		return "extended"
	default:
		return "invalid"
	}
}

// PanId is a 16-bit PAN identifier. PanIdBroadcast matches any PAN.
type PanId uint16

const PanIdBroadcast PanId = 0xffff

// FrameType is the MAC header frame-type field.
type FrameType uint8

const (
	FrameTypeBeacon      FrameType = 0
	FrameTypeData        FrameType = 1
	FrameTypeAck         FrameType = 2
	FrameTypeCommand     FrameType = 3
	FrameTypeReserved    FrameType = 4
	FrameTypeMultipurpose FrameType = 5
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeBeacon:
		return "beacon"
	case FrameTypeData:
		return "data"
	case FrameTypeAck:
		return "ack"
	case FrameTypeCommand:
		return "command"
	case FrameTypeMultipurpose:
		return "multipurpose"
	default:
		return "reserved"
	}
}

// TxOptions are the bits accepted in an MCPS-DATA.request's tx_options field.
type TxOptions uint8

const (
	TxOptAck      TxOptions = 0x01
	TxOptGts      TxOptions = 0x02
	TxOptIndirect TxOptions = 0x04
)

// MacStatus is the outcome carried by MCPS-DATA.confirm.
type MacStatus uint8

const (
	MacSuccess               MacStatus = 0
	MacNoAck                 MacStatus = 1
	MacChannelAccessFailure  MacStatus = 2
	MacFrameTooLong          MacStatus = 3
	MacInvalidAddress        MacStatus = 4
	MacInvalidParameter      MacStatus = 5
	MacUnsupportedAttribute  MacStatus = 6
)

func (s MacStatus) String() string {
	switch s {
	case MacSuccess:
		return "SUCCESS"
	case MacNoAck:
		return "NO_ACK"
	case MacChannelAccessFailure:
		return "CHANNEL_ACCESS_FAILURE"
	case MacFrameTooLong:
		return "FRAME_TOO_LONG"
	case MacInvalidAddress:
		return "INVALID_ADDRESS"
	case MacInvalidParameter:
		return "INVALID_PARAMETER"
	case MacUnsupportedAttribute:
		return "UNSUPPORTED_ATTRIBUTE"
	default:
		return "UNKNOWN"
	}
}

// TrxState is the PHY transceiver state requested via PLME-SET-TRX-STATE.request.
type TrxState byte

const (
	TrxOff TrxState = 0
	TrxRx  TrxState = 1
	TrxTx  TrxState = 2
)

func (s TrxState) String() string {
	switch s {
	case TrxOff:
		return "Off"
	case TrxRx:
		return "Rx"
	case TrxTx:
		return "Tx"
	default:
		return "Invalid"
	}
}

// CcaStatus is the outcome of a clear-channel assessment.
type CcaStatus byte

const (
	CcaIdle CcaStatus = 0
	CcaBusy CcaStatus = 1
)

// PibAttr identifies an MLME-SET/MLME-GET attribute. Values at or above
// PibRitRangeStart belong to the RIT extension range.
type PibAttr uint8

const PibRitRangeStart PibAttr = 0xf0

const (
	PibMacRitPeriod              PibAttr = 0xf0
	PibMacRitDataWaitDuration    PibAttr = 0xf1
	PibMacRitTxWaitDuration      PibAttr = 0xf2
	PibMacRitRequestPayload      PibAttr = 0xf3
	PibMacRitPeriodTime          PibAttr = 0xf4
	PibMacRitDataWaitDurationTime PibAttr = 0xf5
	PibMacRitTxWaitDurationTime  PibAttr = 0xf6
)

// McpsDataRequestParams is the subset of MCPS-DATA.request fields the NWK
// layer fills in on every downward transmission. It lives here, rather than
// in ritsim/nwk or ritsim/mac, so both layers can share one concrete type
// without importing each other.
type McpsDataRequestParams struct {
	DstAddrMode AddrMode
	DstShort    ShortAddress
	MsduHandle  byte
	TxOptions   TxOptions
}
