// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

import (
	"encoding/binary"
	"time"
)

// Sync markers are matched against the raw wire word: they are stored in
// host order, every other multi-byte field is big-endian on the wire.
var (
	be = binary.BigEndian
	le = binary.LittleEndian
)

// EncodeTransferFrame writes hdr into the first 12 bytes of p and returns
// the number of bytes written.
func EncodeTransferFrame(p []byte, hdr TransferFrameHeader) int {
	_ = p[TransferFrameLen-1]
	le.PutUint32(p[0:4], hdr.Sync)
	p[4] = hdr.Spare
	p[5] = hdr.Unit
	be.PutUint16(p[6:8], uint16(hdr.Type))
	be.PutUint16(p[8:10], hdr.Spare16)
	be.PutUint16(p[10:12], hdr.Words)
	return TransferFrameLen
}

// DecodeTransferFrame reads a transfer frame header from the first 12 bytes of p.
func DecodeTransferFrame(p []byte) TransferFrameHeader {
	_ = p[TransferFrameLen-1]
	return TransferFrameHeader{
		Sync:    le.Uint32(p[0:4]),
		Spare:   p[4],
		Unit:    p[5],
		Type:    PacketType(be.Uint16(p[6:8])),
		Spare16: be.Uint16(p[8:10]),
		Words:   be.Uint16(p[10:12]),
	}
}

// EncodeTelemetryHeader writes hdr into the first 42 bytes of p and returns
// the number of bytes written, ie: the offset of the payload.
func EncodeTelemetryHeader(p []byte, hdr TelemetryHeader) int {
	_ = p[HeaderLen-1]
	n := EncodeTransferFrame(p, hdr.TransferFrameHeader)
	le.PutUint32(p[12:16], hdr.TMSync)
	p[16] = hdr.Mode
	p[17] = hdr.Subsystem
	p[18] = hdr.Destination
	p[19] = hdr.SubsystemUnit
	be.PutUint16(p[20:22], uint16(hdr.TMID))
	be.PutUint16(p[22:24], hdr.Counter)
	p[24] = hdr.Model
	p[25] = hdr.Task
	be.PutUint32(p[26:30], hdr.Coarse)
	be.PutUint16(p[30:32], hdr.Fine)
	p[32] = hdr.Status
	p[33] = hdr.ExpMode
	be.PutUint16(p[34:36], hdr.Checksum)
	p[36] = hdr.RcvSubsystem
	p[37] = hdr.RcvUnit
	be.PutUint16(p[38:40], hdr.RcvSpare)
	be.PutUint16(p[40:42], hdr.TMSpare)
	return n + TelemetryHeaderLen
}

// DecodeTelemetryHeader reads a telemetry header from the first 42 bytes of p.
func DecodeTelemetryHeader(p []byte) TelemetryHeader {
	_ = p[HeaderLen-1]
	return TelemetryHeader{
		TransferFrameHeader: DecodeTransferFrame(p),

		TMSync:        le.Uint32(p[12:16]),
		Mode:          p[16],
		Subsystem:     p[17],
		Destination:   p[18],
		SubsystemUnit: p[19],
		TMID:          TMID(be.Uint16(p[20:22])),
		Counter:       be.Uint16(p[22:24]),
		Model:         p[24],
		Task:          p[25],
		Coarse:        be.Uint32(p[26:30]),
		Fine:          be.Uint16(p[30:32]),
		Status:        p[32],
		ExpMode:       p[33],
		Checksum:      be.Uint16(p[34:36]),
		RcvSubsystem:  p[36],
		RcvUnit:       p[37],
		RcvSpare:      be.Uint16(p[38:40]),
		TMSpare:       be.Uint16(p[40:42]),
	}
}

// GPSEpoch is the origin of the coarse time of telemetry headers.
// Leap seconds are not applied: times are expressed in the GPS time scale.
var GPSEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

const fineUnit = 100 * time.Microsecond

// Time returns the acquisition time of the packet.
func (hdr TelemetryHeader) Time() time.Time {
	return GPSEpoch.Add(
		time.Duration(hdr.Coarse)*time.Second +
			time.Duration(hdr.Fine)*fineUnit,
	)
}

// SetTime sets the coarse and fine time of the packet to t.
// Sub-100µs precision is truncated.
func (hdr *TelemetryHeader) SetTime(t time.Time) {
	d := t.Sub(GPSEpoch)
	if d < 0 {
		d = 0
	}
	hdr.Coarse = uint32(d / time.Second)
	hdr.Fine = uint16((d % time.Second) / fineUnit)
}
