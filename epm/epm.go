// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package epm describes and handles packets exchanged with the EPM
// telemetry relay: transfer frames, telemetry headers and the GRIP
// realtime-science and housekeeping payloads.
package epm // import "github.com/go-lpc/grip/epm"

import "fmt"

const (
	TransferFrameSync = 0xFFDB544D // transfer frame sync marker
	TelemetrySync     = 0x1DFCCF1A // telemetry header sync marker

	SubsystemGRIP = 0x0E // GRIP subsystem ID

	UnitPrimary   = 0x01 // software unit ID of the primary ground client
	UnitAlternate = 0x02 // software unit ID of the alternate ground client
)

const (
	TransferFrameLen   = 12   // size of a transfer frame header
	TelemetryHeaderLen = 30   // size of a telemetry header
	MaxPacketLen       = 1412 // size of a telemetry packet

	// HeaderLen is the offset of the payload in a telemetry packet.
	HeaderLen = TransferFrameLen + TelemetryHeaderLen

	realtimePayloadLen     = 8 + NumSlices*sliceLen
	housekeepingPayloadLen = 64

	RealtimeLen     = HeaderLen + realtimePayloadLen     // length of a realtime-science packet
	HousekeepingLen = HeaderLen + housekeepingPayloadLen // length of a housekeeping packet

	DefaultPort = 2345
)

// PacketType identifies a transfer frame.
type PacketType uint16

const (
	Connect     PacketType = 0x0001
	Alive       PacketType = 0x0002
	Telemetry   PacketType = 0x1153
	Telecommand PacketType = 0x1154
)

func (pt PacketType) String() string {
	switch pt {
	case Connect:
		return "CONNECT"
	case Alive:
		return "ALIVE"
	case Telemetry:
		return "TELEMETRY"
	case Telecommand:
		return "TELECOMMAND"
	}
	return fmt.Sprintf("PacketType(0x%04x)", uint16(pt))
}

// TMID selects how the payload of a telemetry packet is interpreted.
type TMID uint16

const (
	TMHousekeeping TMID = 0x0301
	TMRealtime     TMID = 0x1001
)

func (id TMID) String() string {
	switch id {
	case TMHousekeeping:
		return "HOUSEKEEPING"
	case TMRealtime:
		return "REALTIME_SCIENCE"
	}
	return fmt.Sprintf("TMID(0x%04x)", uint16(id))
}

// TransferFrameHeader is the outer, link-layer header of every frame.
type TransferFrameHeader struct {
	Sync    uint32
	Spare   uint8
	Unit    uint8 // software unit ID
	Type    PacketType
	Spare16 uint16
	Words   uint16 // number of 16-bit words following the transfer frame header
}

// TelemetryHeader is the header of every telemetry packet.
type TelemetryHeader struct {
	TransferFrameHeader

	TMSync        uint32
	Mode          uint8
	Subsystem     uint8
	Destination   uint8
	SubsystemUnit uint8
	TMID          TMID
	Counter       uint16
	Model         uint8
	Task          uint8
	Coarse        uint32 // seconds since the GPS epoch
	Fine          uint16 // tenths of milliseconds
	Status        uint8
	ExpMode       uint8
	Checksum      uint16 // checksum indicator, not validated
	RcvSubsystem  uint8
	RcvUnit       uint8
	RcvSpare      uint16
	TMSpare       uint16
}

// NewFrame returns a payload-less transfer frame of the given type,
// as sent by a ground client identified by unit.
func NewFrame(unit uint8, typ PacketType) []byte {
	p := make([]byte, TransferFrameLen)
	EncodeTransferFrame(p, TransferFrameHeader{
		Sync: TransferFrameSync,
		Unit: unit,
		Type: typ,
	})
	return p
}

// wordsFor returns the transfer frame word count of a packet of n bytes.
func wordsFor(n int) uint16 {
	return uint16((n - TransferFrameLen) / 2)
}

// NewTelemetryHeader returns a telemetry header for a GRIP packet of the
// given identifier.
func NewTelemetryHeader(id TMID, counter uint16) TelemetryHeader {
	n := MaxPacketLen
	switch id {
	case TMRealtime:
		n = RealtimeLen
	case TMHousekeeping:
		n = HousekeepingLen
	}
	return TelemetryHeader{
		TransferFrameHeader: TransferFrameHeader{
			Sync:  TransferFrameSync,
			Type:  Telemetry,
			Words: wordsFor(n),
		},
		TMSync:    TelemetrySync,
		Subsystem: SubsystemGRIP,
		TMID:      id,
		Counter:   counter,
	}
}
