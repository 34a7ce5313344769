// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

// Feedback bits of a housekeeping packet.
const (
	FeedbackTarget uint16 = 1 << iota
	FeedbackTone
	FeedbackCradle
)

// Number of bytes of the housekeeping payload, between the free disk space
// counters and the trailing checksum, that are not decoded.
const hkUndecodedLen = 32

// Housekeeping is the payload of a housekeeping packet.
//
// Only a subset of the fields documented in the interface control document
// is decoded: the region between the free disk space counters and the
// trailing checksum is left as-is.
type Housekeeping struct {
	Feedback uint16 // target/tone/cradle feedback bits

	// current script-navigation identifiers
	User     uint16
	Protocol uint16
	Task     uint16
	Step     uint16

	// status enumerations
	Script  uint8 // script engine
	IO      uint8 // I/O channel
	Tracker uint8 // motion tracker
	Camera  uint8

	CPU    uint16 // CPU usage
	Memory uint16 // memory usage

	FreeDisk [3]uint32 // free disk space, one per volume

	Checksum uint16
}

func (hk Housekeeping) Target() bool { return hk.Feedback&FeedbackTarget != 0 }
func (hk Housekeeping) Tone() bool   { return hk.Feedback&FeedbackTone != 0 }
func (hk Housekeeping) Cradle() bool { return hk.Feedback&FeedbackCradle != 0 }

// DecodeHousekeeping decodes the housekeeping payload of packet p.
// p must hold at least HousekeepingLen bytes.
func DecodeHousekeeping(p []byte) Housekeeping {
	_ = p[HousekeepingLen-1]

	var (
		hk Housekeeping
		r  = rbuf{p: p, c: HeaderLen}
	)
	hk.Feedback = r.u16()
	hk.User = r.u16()
	hk.Protocol = r.u16()
	hk.Task = r.u16()
	hk.Step = r.u16()
	hk.Script = r.u8()
	hk.IO = r.u8()
	hk.Tracker = r.u8()
	hk.Camera = r.u8()
	hk.CPU = r.u16()
	hk.Memory = r.u16()
	for i := range hk.FreeDisk {
		hk.FreeDisk[i] = r.u32()
	}
	r.skip(hkUndecodedLen)
	hk.Checksum = r.u16()
	return hk
}

// EncodeHousekeeping encodes hk as the payload of packet p.
// The undecoded region of the payload is left untouched.
// p must hold at least HousekeepingLen bytes.
func EncodeHousekeeping(p []byte, hk Housekeeping) {
	_ = p[HousekeepingLen-1]

	w := wbuf{p: p, c: HeaderLen}
	w.u16(hk.Feedback)
	w.u16(hk.User)
	w.u16(hk.Protocol)
	w.u16(hk.Task)
	w.u16(hk.Step)
	w.u8(hk.Script)
	w.u8(hk.IO)
	w.u8(hk.Tracker)
	w.u8(hk.Camera)
	w.u16(hk.CPU)
	w.u16(hk.Memory)
	for _, v := range hk.FreeDisk {
		w.u32(v)
	}
	w.skip(hkUndecodedLen)
	w.u16(hk.Checksum)
}
