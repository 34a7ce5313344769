// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

// Class is the classification of a received telemetry packet.
type Class uint8

const (
	Invalid           Class = iota // sync marker mismatch or truncated header
	NonGrip                        // packet from another subsystem
	HousekeepingClass              // GRIP housekeeping packet
	RealtimeClass                  // GRIP realtime-science packet
	UnknownGrip                    // GRIP packet with an unknown TM identifier
)

func (c Class) String() string {
	switch c {
	case Invalid:
		return "invalid"
	case NonGrip:
		return "non-grip"
	case HousekeepingClass:
		return "housekeeping"
	case RealtimeClass:
		return "realtime"
	case UnknownGrip:
		return "unknown-grip"
	}
	return "Class(?)"
}

// Classify classifies a telemetry packet from its header.
// Checks are applied in order: transfer and telemetry sync markers,
// subsystem ID, then TM identifier. The first failing check decides.
func Classify(hdr TelemetryHeader) Class {
	if hdr.Sync != TransferFrameSync || hdr.TMSync != TelemetrySync {
		return Invalid
	}
	if hdr.Subsystem != SubsystemGRIP {
		return NonGrip
	}
	switch hdr.TMID {
	case TMHousekeeping:
		return HousekeepingClass
	case TMRealtime:
		return RealtimeClass
	default:
		return UnknownGrip
	}
}

// ClassifyPacket decodes the telemetry header of p and classifies it.
// Buffers too short to hold a telemetry header are Invalid.
func ClassifyPacket(p []byte) (TelemetryHeader, Class) {
	if len(p) < HeaderLen {
		return TelemetryHeader{}, Invalid
	}
	hdr := DecodeTelemetryHeader(p)
	return hdr, Classify(hdr)
}

// RecordLen returns the number of bytes of a packet of class c that are
// meaningful, or 0 if packets of that class have no known layout.
func (c Class) RecordLen() int {
	switch c {
	case HousekeepingClass:
		return HousekeepingLen
	case RealtimeClass:
		return RealtimeLen
	}
	return 0
}
