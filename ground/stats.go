// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ground

import (
	"fmt"

	"github.com/go-lpc/grip/epm"
)

const nclasses = int(epm.UnknownGrip) + 1

// Stats holds the statistics of a ground session.
type Stats struct {
	Received uint64           // number of received packets, overruns excluded
	Overruns uint64           // number of reads that filled the receive buffer
	Short    uint64           // number of typed packets shorter than their record
	Classes  [nclasses]uint64 // number of received packets per class

	AliveAttempts uint64 // number of attempted ALIVE frames
	AliveSent     uint64 // number of ALIVE frames sent
	KeepAlive     bool   // whether keepalive is still enabled
}

// Count returns the number of received packets of class c.
func (st Stats) Count(c epm.Class) uint64 {
	if int(c) >= len(st.Classes) {
		return 0
	}
	return st.Classes[c]
}

func (st Stats) String() string {
	return fmt.Sprintf(
		"received=%d (rt=%d, hk=%d, unknown=%d, non-grip=%d, invalid=%d), overruns=%d, short=%d, alive=%d/%d, keepalive=%v",
		st.Received,
		st.Count(epm.RealtimeClass), st.Count(epm.HousekeepingClass),
		st.Count(epm.UnknownGrip), st.Count(epm.NonGrip), st.Count(epm.Invalid),
		st.Overruns, st.Short,
		st.AliveSent, st.AliveAttempts, st.KeepAlive,
	)
}
