// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpk implements the GRIP packet cache: append-only files of
// fixed-length telemetry records, written by a single ground client and
// polled concurrently by any number of readers.
//
// A cache run is made of three flat files sharing a common root path:
//
//	root.rt.gpk   realtime-science packets, 800 bytes per record
//	root.hk.gpk   housekeeping packets, 106 bytes per record
//	root.any.gpk  every received packet, 1412 bytes per record
//
// Files carry no header. Records are appended in arrival order and files
// are never truncated nor rotated during a run.
package gpk // import "github.com/go-lpc/grip/gpk"

import (
	"errors"
	"fmt"

	"github.com/go-lpc/grip/epm"
)

var (
	// ErrHistoryFull is returned once by History.Ingest when the history
	// reached its capacity and new records had to be dropped.
	ErrHistoryFull = errors.New("gpk: history is full")

	// ErrNotExist is returned by pollers when a cache file could not be
	// found after all retries.
	ErrNotExist = errors.New("gpk: cache file does not exist")
)

// Kind identifies a cache file.
type Kind uint8

const (
	Realtime     Kind = iota // realtime-science packets
	Housekeeping             // housekeeping packets
	Any                      // all received packets
)

func (k Kind) String() string {
	switch k {
	case Realtime:
		return "realtime"
	case Housekeeping:
		return "housekeeping"
	case Any:
		return "any"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Ext returns the file extension of cache files of kind k.
func (k Kind) Ext() string {
	switch k {
	case Realtime:
		return ".rt.gpk"
	case Housekeeping:
		return ".hk.gpk"
	case Any:
		return ".any.gpk"
	}
	panic(fmt.Errorf("gpk: invalid cache kind %d", uint8(k)))
}

// RecordLen returns the length of a record in cache files of kind k.
func (k Kind) RecordLen() int {
	switch k {
	case Realtime:
		return epm.RealtimeLen
	case Housekeeping:
		return epm.HousekeepingLen
	case Any:
		return epm.MaxPacketLen
	}
	panic(fmt.Errorf("gpk: invalid cache kind %d", uint8(k)))
}

// KindOf returns the typed cache file a packet of class c belongs to.
// Only realtime and housekeeping packets have a typed cache file.
func KindOf(c epm.Class) (Kind, bool) {
	switch c {
	case epm.RealtimeClass:
		return Realtime, true
	case epm.HousekeepingClass:
		return Housekeeping, true
	}
	return Any, false
}

// Filename returns the name of the cache file of kind k for the run rooted at root.
func Filename(root string, k Kind) string {
	return root + k.Ext()
}

// Record is a cached telemetry packet.
type Record struct {
	Header epm.TelemetryHeader
	Class  epm.Class
	Raw    []byte
}

// Realtime decodes the realtime-science payload of the record.
func (rec Record) Realtime() (epm.Realtime, error) {
	if len(rec.Raw) < epm.RealtimeLen {
		return epm.Realtime{}, fmt.Errorf("gpk: record too short for realtime payload (%d < %d)", len(rec.Raw), epm.RealtimeLen)
	}
	return epm.DecodeRealtime(rec.Raw), nil
}

// Housekeeping decodes the housekeeping payload of the record.
func (rec Record) Housekeeping() (epm.Housekeeping, error) {
	if len(rec.Raw) < epm.HousekeepingLen {
		return epm.Housekeeping{}, fmt.Errorf("gpk: record too short for housekeeping payload (%d < %d)", len(rec.Raw), epm.HousekeepingLen)
	}
	return epm.DecodeHousekeeping(rec.Raw), nil
}
