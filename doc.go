// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grip holds code for the GRIP telemetry ground link.
//
// GRIP telemetry is produced on board by the EPM experiment computer and
// forwarded over TCP by a telemetry relay. A ground client announces itself
// with a CONNECT transfer frame, keeps the link open with periodic ALIVE
// frames and appends every received packet to flat packet cache files.
//
// The repository is organized as:
//
//   - epm: the wire codec. Transfer frames, telemetry headers with their
//     sync markers and timestamps, packet classification and the
//     realtime-science and housekeeping payload decoders.
//   - gpk: the packet cache. Fixed-length record files (ROOT.rt.gpk,
//     ROOT.hk.gpk and ROOT.any.gpk), a locked append-only store, a
//     memory-mapped poller for concurrent readers and a bounded history.
//   - ground: the ground client state machine. Resolution and connection
//     with retries, the CONNECT handshake, the receive loop, the keepalive
//     and the mapping of session outcomes to process exit codes.
//   - emulator: a telemetry relay emulator, serving synthetic packets or
//     replaying a previously recorded cache.
//   - runlog: an optional SQL catalog of ground client sessions.
//
// Commands live under cmd/:
//
//   - grip-ground receives telemetry and writes the cache files.
//   - grip-emu runs the relay emulator.
//   - grip-mon monitors cache files as they grow and raises alerts.
//   - gpk-dump displays the content of cache files.
//   - gpk-split splits an .any.gpk capture into typed cache files.
package grip // import "github.com/go-lpc/grip"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of grip and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/grip"
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
