// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"math"
	"time"

	"github.com/go-lpc/grip/epm"
)

// Source produces the telemetry packets streamed to a ground client.
type Source interface {
	// Next returns the next packet and the delay to wait before sending it.
	// Next returns io.EOF when the source is exhausted.
	Next() (time.Duration, []byte, error)
}

// newPacket returns a GRIP telemetry packet of the given identifier,
// sized after its record length.
func newPacket(id epm.TMID, counter uint16) []byte {
	n := epm.MaxPacketLen
	switch id {
	case epm.TMRealtime:
		n = epm.RealtimeLen
	case epm.TMHousekeeping:
		n = epm.HousekeepingLen
	}
	p := make([]byte, n)
	epm.EncodeTelemetryHeader(p, epm.NewTelemetryHeader(id, counter))
	return p
}

// Motion phases of the synthetic manipulandum.
const (
	phaseRest = iota
	phaseReach
	phaseGrip
	phaseLift
	phaseLower
	phaseRelease
	nphases
)

// Synth is a source of synthetic realtime-science and housekeeping
// packets, each emitted with a fixed period. Housekeeping packets are
// staggered by half a period from realtime ones.
//
// The realtime payload follows a 6-phase motion pattern: rest, reach,
// grip, lift, lower and release.
type Synth struct {
	half  time.Duration
	phase int // packets per motion phase

	rt, hk uint16 // per-identifier packet counters
	next   epm.TMID
	tick   uint32
}

// NewSynth returns a synthetic source emitting one realtime and one
// housekeeping packet every period.
func NewSynth(period time.Duration) *Synth {
	return &Synth{
		half:  period / 2,
		phase: 10,
		next:  epm.TMRealtime,
	}
}

func (src *Synth) Next() (time.Duration, []byte, error) {
	var (
		delay = src.half
		p     []byte
	)
	switch src.next {
	case epm.TMRealtime:
		if src.rt == 0 && src.hk == 0 {
			delay = 0
		}
		p = newPacket(epm.TMRealtime, src.rt)
		epm.EncodeRealtime(p, src.realtime())
		src.rt++
		src.next = epm.TMHousekeeping
	default:
		p = newPacket(epm.TMHousekeeping, src.hk)
		epm.EncodeHousekeeping(p, src.housekeeping())
		src.hk++
		src.next = epm.TMRealtime
	}
	return delay, p, nil
}

// motion returns the current motion phase and the progress within it, in [0,1).
func (src *Synth) motion() (int, float64) {
	i := int(src.rt) / src.phase
	f := float64(int(src.rt)%src.phase) / float64(src.phase)
	return i % nphases, f
}

func (src *Synth) realtime() epm.Realtime {
	phase, f := src.motion()

	var (
		reach = 0.0 // mm
		lift  = 0.0 // mm
		grip  = 0.0 // N
		accel = 0.0 // g, vertical
	)
	switch phase {
	case phaseRest:
	case phaseReach:
		reach = 200 * f
	case phaseGrip:
		reach = 200
		grip = 10 * f
	case phaseLift:
		reach = 200
		grip = 10
		lift = 100 * f
		accel = 0.1 * math.Sin(math.Pi*f)
	case phaseLower:
		reach = 200
		grip = 10
		lift = 100 * (1 - f)
		accel = -0.1 * math.Sin(math.Pi*f)
	case phaseRelease:
		reach = 200 * (1 - f)
		grip = 10 * (1 - f)
	}

	rt := epm.Realtime{
		Acquisition: 1,
		Packet:      uint32(src.rt),
	}
	for i := range rt.Slices {
		src.tick++
		s := &rt.Slices[i]
		s.PoseTick = src.tick
		s.AnalogTick = src.tick
		s.Position = [3]float64{reach, 0, lift}
		s.Quaternion = [4]float32{1, 0, 0, 0}
		s.Markers = [2]uint32{0xffff, 0xffff}
		s.Visible = true
		s.FT[0].Force = [3]float64{grip, 0, 0}
		s.FT[1].Force = [3]float64{-grip, 0, 0}
		s.FT[0].Torque = [3]float64{0, 0, grip / 100}
		s.FT[1].Torque = [3]float64{0, 0, -grip / 100}
		s.Accel = [3]float64{0, 0, 1 + accel}
	}
	return rt
}

func (src *Synth) housekeeping() epm.Housekeeping {
	phase, _ := src.motion()
	hk := epm.Housekeeping{
		User:     1,
		Protocol: 1,
		Task:     1,
		Step:     uint16(phase + 1),
		Tracker:  1,
		Camera:   1,
		CPU:      25,
		Memory:   40,
		FreeDisk: [3]uint32{1 << 20, 1 << 20, 1 << 20},
	}
	switch phase {
	case phaseReach:
		hk.Feedback = epm.FeedbackTarget
	case phaseGrip, phaseLift, phaseLower:
		hk.Feedback = epm.FeedbackTarget | epm.FeedbackCradle
	case phaseRelease:
		hk.Feedback = epm.FeedbackTone
	}
	return hk
}

var _ Source = (*Synth)(nil)
