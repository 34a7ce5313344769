// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
)

func newPacket(id epm.TMID, counter uint16, subsys uint8) []byte {
	p := make([]byte, epm.MaxPacketLen)
	hdr := epm.NewTelemetryHeader(id, counter)
	hdr.Subsystem = subsys
	epm.EncodeTelemetryHeader(p, hdr)
	for i := epm.HeaderLen; i < len(p); i++ {
		p[i] = byte(i)
	}
	return p
}

func TestSplit(t *testing.T) {
	tmpdir := t.TempDir()

	var (
		iroot = filepath.Join(tmpdir, "capture")
		oroot = filepath.Join(tmpdir, "out")
		store = gpk.NewStore(iroot)
		pkts  = [][]byte{
			newPacket(epm.TMRealtime, 0, epm.SubsystemGRIP),
			newPacket(epm.TMHousekeeping, 0, epm.SubsystemGRIP),
			newPacket(epm.TMRealtime, 1, epm.SubsystemGRIP),
			newPacket(0x4242, 0, epm.SubsystemGRIP),
			newPacket(epm.TMRealtime, 2, epm.SubsystemGRIP+1),
			make([]byte, epm.MaxPacketLen),
			newPacket(epm.TMHousekeeping, 1, epm.SubsystemGRIP),
		}
	)

	for _, p := range pkts {
		err := store.Append(gpk.Any, p)
		if err != nil {
			t.Fatal(err)
		}
	}

	xmain([]string{"-o", oroot, gpk.Filename(iroot, gpk.Any)})

	for _, tc := range []struct {
		kind gpk.Kind
		want [][]byte
	}{
		{gpk.Realtime, [][]byte{pkts[0], pkts[2]}},
		{gpk.Housekeeping, [][]byte{pkts[1], pkts[6]}},
	} {
		raw, err := os.ReadFile(gpk.Filename(oroot, tc.kind))
		if err != nil {
			t.Fatalf("could not read split file: %+v", err)
		}
		n := tc.kind.RecordLen()
		if got, want := len(raw), n*len(tc.want); got != want {
			t.Fatalf("invalid %v file size: got=%d, want=%d", tc.kind, got, want)
		}
		for i, p := range tc.want {
			if got, want := raw[i*n:(i+1)*n], p[:n]; !bytes.Equal(got, want) {
				t.Fatalf("invalid %v record %d", tc.kind, i)
			}
		}
	}
}

func TestProcess(t *testing.T) {
	tmpdir := t.TempDir()

	iname := gpk.Filename(filepath.Join(tmpdir, "capture"), gpk.Any)
	f, err := os.Create(iname)
	if err != nil {
		t.Fatal(err)
	}
	enc := epm.NewEncoder(f, gpk.Any.RecordLen())
	for _, p := range [][]byte{
		newPacket(epm.TMHousekeeping, 0, epm.SubsystemGRIP),
		newPacket(epm.TMHousekeeping, 1, epm.SubsystemGRIP+1),
	} {
		err = enc.Encode(p)
		if err != nil {
			t.Fatal(err)
		}
	}
	// truncated trailing record.
	_, err = f.Write(newPacket(epm.TMRealtime, 0, epm.SubsystemGRIP)[:100])
	if err != nil {
		t.Fatal(err)
	}
	err = f.Close()
	if err != nil {
		t.Fatal(err)
	}

	oroot := filepath.Join(tmpdir, "out")
	stats, err := process(oroot, iname)
	if err != nil {
		t.Fatalf("could not split file: %+v", err)
	}

	want := map[epm.Class]int{
		epm.HousekeepingClass: 1,
		epm.NonGrip:           1,
	}
	if !reflect.DeepEqual(stats, want) {
		t.Fatalf("invalid stats:\ngot= %v\nwant=%v", stats, want)
	}

	_, err = os.Stat(gpk.Filename(oroot, gpk.Realtime))
	if !os.IsNotExist(err) {
		t.Fatalf("unexpected realtime output file: %+v", err)
	}

	_, err = process(oroot, filepath.Join(tmpdir, "capture.rt.gpk"))
	if err == nil {
		t.Fatalf("expected an error for a typed input file")
	}

	_, err = process(oroot, filepath.Join(tmpdir, "missing.any.gpk"))
	if err == nil {
		t.Fatalf("expected an error for a missing input file")
	}
}
