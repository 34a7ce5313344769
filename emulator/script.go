// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"time"

	"github.com/go-lpc/grip/epm"
)

// Script is a source of housekeeping packets walking through the
// navigation tree of an experiment script: users, protocols, tasks and
// steps, depth first.
type Script struct {
	period time.Duration
	dims   [4]uint16 // number of users, protocols, tasks and steps
	pos    [4]uint16
	n      uint16
}

// NewScript returns a housekeeping-only source emitting one packet every period.
func NewScript(period time.Duration) *Script {
	return &Script{
		period: period,
		dims:   [4]uint16{2, 3, 4, 5},
	}
}

func (src *Script) Next() (time.Duration, []byte, error) {
	delay := src.period
	if src.n == 0 {
		delay = 0
	}

	p := newPacket(epm.TMHousekeeping, src.n)
	epm.EncodeHousekeeping(p, epm.Housekeeping{
		User:     src.pos[0] + 1,
		Protocol: src.pos[1] + 1,
		Task:     src.pos[2] + 1,
		Step:     src.pos[3] + 1,
		Script:   1, // running
		IO:       1,
		Tracker:  1,
		Camera:   1,
		Feedback: src.feedback(),
		CPU:      10,
		Memory:   20,
		FreeDisk: [3]uint32{1 << 20, 1 << 20, 1 << 20},
	})
	src.n++
	src.advance()
	return delay, p, nil
}

func (src *Script) feedback() uint16 {
	if src.pos[3] == src.dims[3]-1 {
		return epm.FeedbackTone
	}
	return epm.FeedbackTarget
}

func (src *Script) advance() {
	for i := len(src.pos) - 1; i >= 0; i-- {
		src.pos[i]++
		if src.pos[i] < src.dims[i] {
			return
		}
		src.pos[i] = 0
	}
}

var _ Source = (*Script)(nil)
