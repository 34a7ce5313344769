// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpk

// History is a bounded, in-memory, copy of a cache file.
type History struct {
	max  int
	recs []Record
	full bool // whether ErrHistoryFull was already reported
}

// NewHistory returns a history holding at most max records.
func NewHistory(max int) *History {
	if max < 0 {
		max = 0
	}
	return &History{max: max}
}

// Ingest appends the records of a full poll that are beyond the current
// length of the history, and returns the number of ingested records.
//
// Ingestion stops exactly at the capacity of the history. The first time
// records have to be dropped, Ingest returns ErrHistoryFull; later calls
// silently drop them.
func (h *History) Ingest(recs []Record) (int, error) {
	if len(recs) <= len(h.recs) {
		return 0, nil
	}

	fresh := recs[len(h.recs):]
	room := h.max - len(h.recs)
	if len(fresh) <= room {
		h.recs = append(h.recs, fresh...)
		return len(fresh), nil
	}

	h.recs = append(h.recs, fresh[:room]...)
	if h.full {
		return room, nil
	}
	h.full = true
	return room, ErrHistoryFull
}

// Len returns the number of records in the history.
func (h *History) Len() int { return len(h.recs) }

// Cap returns the capacity of the history.
func (h *History) Cap() int { return h.max }

// Full returns whether the history reached its capacity.
func (h *History) Full() bool { return len(h.recs) >= h.max }

// Records returns the records of the history.
// The returned slice must not be modified.
func (h *History) Records() []Record { return h.recs }
