// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

const (
	NumSlices = 10 // number of time slices in a realtime-science packet

	sliceLen = 75
)

// Fixed-point scaling factors of the realtime-science payload.
const (
	PositionScale = 10     // raw position units per millimeter
	ForceScale    = 100    // raw force units per newton
	TorqueScale   = 1000   // raw torque units per newton-meter
	AccelScale    = 1000.0 // raw acceleration units per m/s^2
	Gravity       = 9.8    // m/s^2 per g
)

// Realtime is the payload of a realtime-science packet.
type Realtime struct {
	Acquisition uint32 // acquisition identifier
	Packet      uint32 // packet counter within the acquisition
	Slices      [NumSlices]Slice
}

// Slice is one time-ordered sample of the manipulandum state.
type Slice struct {
	PoseTick   uint32     // pose-sample tick counter
	Position   [3]float64 // mm
	Quaternion [4]float32
	Markers    [2]uint32 // marker visibility, one bitmask per tracking unit
	Visible    bool      // manipulandum visibility
	AnalogTick uint32    // analog-sample tick counter
	FT         [2]ForceTorque
	Accel      [3]float64 // g
}

// ForceTorque is a 6-axis force/torque sensor reading.
type ForceTorque struct {
	Force  [3]float64 // N
	Torque [3]float64 // Nm
}

// DecodeRealtime decodes the realtime-science payload of packet p.
// p must hold at least RealtimeLen bytes.
func DecodeRealtime(p []byte) Realtime {
	_ = p[RealtimeLen-1]

	var (
		rt Realtime
		r  = rbuf{p: p, c: HeaderLen}
	)
	rt.Acquisition = r.u32()
	rt.Packet = r.u32()
	for i := range rt.Slices {
		s := &rt.Slices[i]
		s.PoseTick = r.u32()
		for j := range s.Position {
			s.Position[j] = float64(r.i16()) / PositionScale
		}
		for j := range s.Quaternion {
			s.Quaternion[j] = r.f32()
		}
		for j := range s.Markers {
			s.Markers[j] = r.u32()
		}
		s.Visible = r.u8() != 0
		s.AnalogTick = r.u32()
		for j := range s.FT {
			ft := &s.FT[j]
			for k := range ft.Force {
				ft.Force[k] = float64(r.i16()) / ForceScale
			}
			for k := range ft.Torque {
				ft.Torque[k] = float64(r.i16()) / TorqueScale
			}
		}
		for j := range s.Accel {
			s.Accel[j] = float64(r.i32()) / AccelScale / Gravity
		}
	}
	return rt
}

// EncodeRealtime encodes rt as the payload of packet p, converting
// physical values back to their fixed-point representation.
// p must hold at least RealtimeLen bytes.
func EncodeRealtime(p []byte, rt Realtime) {
	_ = p[RealtimeLen-1]

	w := wbuf{p: p, c: HeaderLen}
	w.u32(rt.Acquisition)
	w.u32(rt.Packet)
	for i := range rt.Slices {
		s := &rt.Slices[i]
		w.u32(s.PoseTick)
		for _, v := range s.Position {
			w.i16(int16(scaled(v, PositionScale)))
		}
		for _, v := range s.Quaternion {
			w.f32(v)
		}
		for _, v := range s.Markers {
			w.u32(v)
		}
		if s.Visible {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.u32(s.AnalogTick)
		for _, ft := range s.FT {
			for _, v := range ft.Force {
				w.i16(int16(scaled(v, ForceScale)))
			}
			for _, v := range ft.Torque {
				w.i16(int16(scaled(v, TorqueScale)))
			}
		}
		for _, v := range s.Accel {
			w.i32(int32(scaled(v, AccelScale*Gravity)))
		}
	}
}
