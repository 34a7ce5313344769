// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"fmt"
	"io"
	"time"

	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
)

// DefaultMaxGap is the default longest pause between two replayed packets.
const DefaultMaxGap = 30 * time.Second

// Replay is a source re-emitting recorded packets.
//
// Packets are re-timed from the acquisition time of their telemetry header:
// the pause between two packets is the difference of their acquisition
// times, capped to a maximum gap.
type Replay struct {
	recs   []gpk.Record
	maxGap time.Duration

	cur  int
	prev time.Time
}

// NewReplay returns a source replaying the records of a packet cache file.
// Records that cannot be streamed (invalid or overlong packets) are skipped.
func NewReplay(recs []gpk.Record, maxGap time.Duration) *Replay {
	src := &Replay{
		recs:   make([]gpk.Record, 0, len(recs)),
		maxGap: maxGap,
	}
	for _, rec := range recs {
		if rec.Class == epm.Invalid {
			continue
		}
		n := int(rec.Header.Words)*2 + epm.TransferFrameLen
		if n < epm.HeaderLen || n >= epm.MaxPacketLen || n > len(rec.Raw) {
			continue
		}
		rec.Raw = rec.Raw[:n]
		src.recs = append(src.recs, rec)
	}
	return src
}

// OpenReplay reads all the records of the cache file of kind k rooted at
// root, and returns a source replaying them.
func OpenReplay(root string, k gpk.Kind, maxGap time.Duration) (*Replay, error) {
	recs, _, err := gpk.NewPoller(root, k, gpk.WithOpenRetries(1, 0)).PollAll()
	if err != nil {
		return nil, fmt.Errorf("emulator: could not read replay file: %w", err)
	}
	return NewReplay(recs, maxGap), nil
}

// Len returns the number of packets of the replay.
func (src *Replay) Len() int { return len(src.recs) }

func (src *Replay) Next() (time.Duration, []byte, error) {
	if src.cur >= len(src.recs) {
		return 0, nil, io.EOF
	}
	rec := src.recs[src.cur]
	src.cur++

	var (
		t     = rec.Header.Time()
		delay time.Duration
	)
	if src.cur > 1 {
		delay = t.Sub(src.prev)
	}
	src.prev = t

	switch {
	case delay < 0:
		delay = 0
	case src.maxGap > 0 && delay > src.maxGap:
		delay = src.maxGap
	}

	p := make([]byte, len(rec.Raw))
	copy(p, rec.Raw)
	return delay, p, nil
}

var _ Source = (*Replay)(nil)
