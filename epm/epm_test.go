// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func TestTransferFrameCodec(t *testing.T) {
	for _, tc := range []struct {
		name string
		hdr  TransferFrameHeader
	}{
		{
			name: "connect",
			hdr: TransferFrameHeader{
				Sync: TransferFrameSync,
				Unit: UnitPrimary,
				Type: Connect,
			},
		},
		{
			name: "alive-alternate",
			hdr: TransferFrameHeader{
				Sync: TransferFrameSync,
				Unit: UnitAlternate,
				Type: Alive,
			},
		},
		{
			name: "all-fields",
			hdr: TransferFrameHeader{
				Sync:    0x01020304,
				Spare:   0xa5,
				Unit:    0x5a,
				Type:    Telecommand,
				Spare16: 0xbeef,
				Words:   0x0102,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := make([]byte, TransferFrameLen)
			if got, want := EncodeTransferFrame(p, tc.hdr), TransferFrameLen; got != want {
				t.Fatalf("invalid number of bytes written: got=%d, want=%d", got, want)
			}
			got := DecodeTransferFrame(p)
			if !reflect.DeepEqual(got, tc.hdr) {
				t.Fatalf("invalid r/w round-trip:\ngot= %#v\nwant=%#v", got, tc.hdr)
			}
		})
	}
}

func TestTelemetryHeaderCodec(t *testing.T) {
	for _, tc := range []struct {
		name string
		hdr  TelemetryHeader
	}{
		{
			name: "realtime",
			hdr:  NewTelemetryHeader(TMRealtime, 42),
		},
		{
			name: "housekeeping",
			hdr:  NewTelemetryHeader(TMHousekeeping, 0xffff),
		},
		{
			name: "all-fields",
			hdr: TelemetryHeader{
				TransferFrameHeader: TransferFrameHeader{
					Sync:    TransferFrameSync,
					Spare:   1,
					Unit:    2,
					Type:    Telemetry,
					Spare16: 3,
					Words:   4,
				},
				TMSync:        TelemetrySync,
				Mode:          5,
				Subsystem:     6,
				Destination:   7,
				SubsystemUnit: 8,
				TMID:          0x1234,
				Counter:       0x5678,
				Model:         9,
				Task:          10,
				Coarse:        0x11223344,
				Fine:          0x5566,
				Status:        11,
				ExpMode:       12,
				Checksum:      0x7788,
				RcvSubsystem:  13,
				RcvUnit:       14,
				RcvSpare:      0x99aa,
				TMSpare:       0xbbcc,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := make([]byte, MaxPacketLen)
			if got, want := EncodeTelemetryHeader(p, tc.hdr), HeaderLen; got != want {
				t.Fatalf("invalid payload offset: got=%d, want=%d", got, want)
			}
			got := DecodeTelemetryHeader(p)
			if !reflect.DeepEqual(got, tc.hdr) {
				t.Fatalf("invalid r/w round-trip:\ngot= %#v\nwant=%#v", got, tc.hdr)
			}
		})
	}
}

func TestByteOrder(t *testing.T) {
	p := NewFrame(UnitPrimary, Connect)
	if got, want := p[0:4], []byte{0x4d, 0x54, 0xdb, 0xff}; !bytes.Equal(got, want) {
		t.Fatalf("invalid sync marker layout: got=% x, want=% x", got, want)
	}
	if got, want := p[6:8], []byte{0x00, 0x01}; !bytes.Equal(got, want) {
		t.Fatalf("invalid packet type layout: got=% x, want=% x", got, want)
	}

	raw := []byte{0x4d, 0x54, 0xdb, 0xff, 0, 0, 0x11, 0x53, 0, 0, 0x01, 0x02}
	hdr := DecodeTransferFrame(raw)
	if got, want := hdr.Sync, uint32(0xFFDB544D); got != want {
		t.Fatalf("invalid sync marker: got=0x%x, want=0x%x", got, want)
	}
	if got, want := hdr.Type, Telemetry; got != want {
		t.Fatalf("invalid packet type: got=%v, want=%v", got, want)
	}
	if got, want := hdr.Words, uint16(0x0102); got != want {
		t.Fatalf("invalid word count: got=0x%x, want=0x%x", got, want)
	}

	tm := make([]byte, HeaderLen)
	EncodeTelemetryHeader(tm, TelemetryHeader{Counter: 0x0102, Coarse: 0x01020304})
	if got, want := tm[22:24], []byte{1, 2}; !bytes.Equal(got, want) {
		t.Fatalf("invalid counter layout: got=% x, want=% x", got, want)
	}
	if got, want := tm[26:30], []byte{1, 2, 3, 4}; !bytes.Equal(got, want) {
		t.Fatalf("invalid coarse time layout: got=% x, want=% x", got, want)
	}
}

func TestNewFrame(t *testing.T) {
	for _, tc := range []struct {
		unit uint8
		typ  PacketType
	}{
		{UnitPrimary, Connect},
		{UnitAlternate, Connect},
		{UnitPrimary, Alive},
	} {
		t.Run(tc.typ.String(), func(t *testing.T) {
			p := NewFrame(tc.unit, tc.typ)
			if got, want := len(p), TransferFrameLen; got != want {
				t.Fatalf("invalid frame size: got=%d, want=%d", got, want)
			}
			hdr := DecodeTransferFrame(p)
			want := TransferFrameHeader{Sync: TransferFrameSync, Unit: tc.unit, Type: tc.typ}
			if hdr != want {
				t.Fatalf("invalid frame:\ngot= %#v\nwant=%#v", hdr, want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	valid := func(id TMID) TelemetryHeader { return NewTelemetryHeader(id, 1) }
	for _, tc := range []struct {
		name string
		hdr  func() TelemetryHeader
		want Class
	}{
		{
			name: "realtime",
			hdr:  func() TelemetryHeader { return valid(TMRealtime) },
			want: RealtimeClass,
		},
		{
			name: "housekeeping",
			hdr:  func() TelemetryHeader { return valid(TMHousekeeping) },
			want: HousekeepingClass,
		},
		{
			name: "unknown-grip",
			hdr:  func() TelemetryHeader { return valid(0x2001) },
			want: UnknownGrip,
		},
		{
			name: "non-grip",
			hdr: func() TelemetryHeader {
				hdr := valid(TMRealtime)
				hdr.Subsystem = SubsystemGRIP + 1
				return hdr
			},
			want: NonGrip,
		},
		{
			name: "bad-transfer-sync",
			hdr: func() TelemetryHeader {
				hdr := valid(TMRealtime)
				hdr.Sync = 0xdeadbeef
				return hdr
			},
			want: Invalid,
		},
		{
			name: "bad-telemetry-sync",
			hdr: func() TelemetryHeader {
				hdr := valid(TMHousekeeping)
				hdr.TMSync = TransferFrameSync
				return hdr
			},
			want: Invalid,
		},
		{
			name: "bad-sync-non-grip",
			hdr: func() TelemetryHeader {
				hdr := valid(TMHousekeeping)
				hdr.Sync = 0
				hdr.Subsystem = 0
				return hdr
			},
			want: Invalid,
		},
		{
			name: "non-grip-unknown-id",
			hdr: func() TelemetryHeader {
				hdr := valid(0x4242)
				hdr.Subsystem = 0x42
				return hdr
			},
			want: NonGrip,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := make([]byte, MaxPacketLen)
			EncodeTelemetryHeader(p, tc.hdr())

			hdr1, got1 := ClassifyPacket(p)
			hdr2, got2 := ClassifyPacket(p)
			if got1 != tc.want {
				t.Fatalf("invalid class: got=%v, want=%v", got1, tc.want)
			}
			if got1 != got2 || hdr1 != hdr2 {
				t.Fatalf("non deterministic classification: %v != %v", got1, got2)
			}
			if got, want := Classify(tc.hdr()), tc.want; got != want {
				t.Fatalf("invalid class from header: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestClassifyShortPacket(t *testing.T) {
	p := make([]byte, HeaderLen-1)
	EncodeTransferFrame(p, TransferFrameHeader{Sync: TransferFrameSync})
	if _, got := ClassifyPacket(p); got != Invalid {
		t.Fatalf("invalid class: got=%v, want=%v", got, Invalid)
	}
}

func TestGPSTime(t *testing.T) {
	var hdr TelemetryHeader
	hdr.Coarse = 1
	hdr.Fine = 5
	if got, want := hdr.Time(), GPSEpoch.Add(time.Second+500*time.Microsecond); !got.Equal(want) {
		t.Fatalf("invalid time: got=%v, want=%v", got, want)
	}

	ts := time.Date(2022, time.March, 4, 5, 6, 7, 890123456, time.UTC)
	hdr.SetTime(ts)
	if got, want := hdr.Fine, uint16(8901); got != want {
		t.Fatalf("invalid fine time: got=%d, want=%d", got, want)
	}
	if got, want := hdr.Time(), ts.Truncate(100*time.Microsecond); !got.Equal(want) {
		t.Fatalf("invalid time round-trip: got=%v, want=%v", got, want)
	}
}
