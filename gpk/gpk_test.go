// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpk

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-lpc/grip/epm"
	"golang.org/x/sys/unix"
)

func newPacket(id epm.TMID, counter uint16) []byte {
	p := make([]byte, epm.MaxPacketLen)
	epm.EncodeTelemetryHeader(p, epm.NewTelemetryHeader(id, counter))
	return p
}

func TestFilename(t *testing.T) {
	for _, tc := range []struct {
		kind Kind
		want string
		n    int
	}{
		{Realtime, "run.rt.gpk", 800},
		{Housekeeping, "run.hk.gpk", 106},
		{Any, "run.any.gpk", 1412},
	} {
		t.Run(tc.kind.String(), func(t *testing.T) {
			if got, want := Filename("run", tc.kind), tc.want; got != want {
				t.Fatalf("invalid filename: got=%q, want=%q", got, want)
			}
			if got, want := tc.kind.RecordLen(), tc.n; got != want {
				t.Fatalf("invalid record length: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	for _, tc := range []struct {
		class epm.Class
		kind  Kind
		ok    bool
	}{
		{epm.RealtimeClass, Realtime, true},
		{epm.HousekeepingClass, Housekeeping, true},
		{epm.UnknownGrip, Any, false},
		{epm.NonGrip, Any, false},
		{epm.Invalid, Any, false},
	} {
		kind, ok := KindOf(tc.class)
		if kind != tc.kind || ok != tc.ok {
			t.Fatalf("%v: got=(%v, %v), want=(%v, %v)", tc.class, kind, ok, tc.kind, tc.ok)
		}
	}
}

func TestAppendPoll(t *testing.T) {
	root := filepath.Join(t.TempDir(), "run")
	store := NewStore(root)

	var want [][]byte
	for i := 0; i < 3; i++ {
		p := newPacket(epm.TMHousekeeping, uint16(i))
		err := store.Append(Housekeeping, p)
		if err != nil {
			t.Fatalf("could not append record %d: %+v", i, err)
		}
		want = append(want, p[:epm.HousekeepingLen])
	}

	fi, err := os.Stat(Filename(root, Housekeeping))
	if err != nil {
		t.Fatalf("could not stat cache file: %+v", err)
	}
	if got, want := fi.Size(), int64(3*epm.HousekeepingLen); got != want {
		t.Fatalf("invalid cache file size: got=%d, want=%d", got, want)
	}

	poll := NewPoller(root, Housekeeping)
	check := func(recs []Record, want [][]byte) {
		t.Helper()
		if got, want := len(recs), len(want); got != want {
			t.Fatalf("invalid number of records: got=%d, want=%d", got, want)
		}
		for i, rec := range recs {
			if !bytes.Equal(rec.Raw, want[i]) {
				t.Fatalf("invalid record %d", i)
			}
			if got, want := rec.Class, epm.HousekeepingClass; got != want {
				t.Fatalf("invalid record %d class: got=%v, want=%v", i, got, want)
			}
		}
	}

	recs, advanced, err := poll.PollAll()
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if !advanced {
		t.Fatalf("first poll should advance")
	}
	check(recs, want)

	recs, advanced, err = poll.PollAll()
	if err != nil {
		t.Fatalf("could not poll again: %+v", err)
	}
	if advanced {
		t.Fatalf("second poll without new data should not advance")
	}
	check(recs, want)

	p := newPacket(epm.TMHousekeeping, 3)
	err = store.Append(Housekeeping, p)
	if err != nil {
		t.Fatalf("could not append record: %+v", err)
	}
	want = append(want, p[:epm.HousekeepingLen])

	recs, advanced, err = poll.PollAll()
	if err != nil {
		t.Fatalf("could not poll after append: %+v", err)
	}
	if !advanced {
		t.Fatalf("poll after append should advance")
	}
	check(recs, want)

	hk, err := recs[3].Housekeeping()
	if err != nil {
		t.Fatalf("could not decode housekeeping payload: %+v", err)
	}
	if hk != (epm.Housekeeping{}) {
		t.Fatalf("invalid housekeeping payload: %#v", hk)
	}
	if _, err := recs[3].Realtime(); err == nil {
		t.Fatalf("expected an error decoding a housekeeping record as realtime")
	}
}

func TestPollPartialTail(t *testing.T) {
	root := filepath.Join(t.TempDir(), "run")
	store := NewStore(root)
	for i := 0; i < 2; i++ {
		err := store.Append(Realtime, newPacket(epm.TMRealtime, uint16(i)))
		if err != nil {
			t.Fatalf("could not append record %d: %+v", i, err)
		}
	}

	f, err := os.OpenFile(Filename(root, Realtime), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("could not open cache file: %+v", err)
	}
	_, err = f.Write(make([]byte, 10))
	if err != nil {
		t.Fatalf("could not write partial record: %+v", err)
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close cache file: %+v", err)
	}

	recs, _, err := NewPoller(root, Realtime).PollAll()
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if got, want := len(recs), 2; got != want {
		t.Fatalf("invalid number of records: got=%d, want=%d", got, want)
	}
	if got, want := recs[1].Header.Counter, uint16(1); got != want {
		t.Fatalf("invalid counter: got=%d, want=%d", got, want)
	}
}

func TestPollEmpty(t *testing.T) {
	root := filepath.Join(t.TempDir(), "run")
	err := os.WriteFile(Filename(root, Realtime), nil, 0644)
	if err != nil {
		t.Fatalf("could not create cache file: %+v", err)
	}

	recs, advanced, err := NewPoller(root, Realtime).PollAll()
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if len(recs) != 0 || advanced {
		t.Fatalf("invalid poll: n=%d, advanced=%v", len(recs), advanced)
	}
}

func TestPollMissing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "run")
	poll := NewPoller(root, Any, WithOpenRetries(3, time.Millisecond))

	_, _, err := poll.PollAll()
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, ErrNotExist)
	}
}

func TestAppendShort(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "run"))
	err := store.Append(Realtime, make([]byte, epm.HousekeepingLen))
	if err == nil {
		t.Fatalf("expected an error appending a short record")
	}
}

func TestAppendLocked(t *testing.T) {
	root := filepath.Join(t.TempDir(), "run")
	fname := Filename(root, Any)

	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("could not create cache file: %+v", err)
	}
	defer f.Close()

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
	if err != nil {
		t.Fatalf("could not lock cache file: %+v", err)
	}

	store := NewStore(root)
	err = store.Append(Any, newPacket(epm.TMRealtime, 1))
	if !errors.Is(err, unix.EWOULDBLOCK) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, unix.EWOULDBLOCK)
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if err != nil {
		t.Fatalf("could not unlock cache file: %+v", err)
	}

	err = store.Append(Any, newPacket(epm.TMRealtime, 1))
	if err != nil {
		t.Fatalf("could not append after unlock: %+v", err)
	}
}

func TestHistory(t *testing.T) {
	var recs []Record
	for i := 0; i < 8; i++ {
		recs = append(recs, Record{Header: epm.NewTelemetryHeader(epm.TMRealtime, uint16(i))})
	}

	h := NewHistory(5)
	for _, tc := range []struct {
		name string
		recs []Record
		n    int
		err  error
		len  int
	}{
		{"initial", recs[:3], 3, nil, 3},
		{"same", recs[:3], 0, nil, 3},
		{"fill-exactly", recs[:5], 2, nil, 5},
		{"overflow", recs[:7], 0, ErrHistoryFull, 5},
		{"overflow-again", recs[:8], 0, nil, 5},
	} {
		n, err := h.Ingest(tc.recs)
		if n != tc.n || err != tc.err {
			t.Fatalf("%s: got=(%d, %v), want=(%d, %v)", tc.name, n, err, tc.n, tc.err)
		}
		if got, want := h.Len(), tc.len; got != want {
			t.Fatalf("%s: invalid length: got=%d, want=%d", tc.name, got, want)
		}
	}

	if !h.Full() {
		t.Fatalf("history should be full")
	}
	if got, want := h.Records()[4].Header.Counter, uint16(4); got != want {
		t.Fatalf("invalid last counter: got=%d, want=%d", got, want)
	}
}

func TestHistoryPartialOverflow(t *testing.T) {
	recs := make([]Record, 10)
	h := NewHistory(4)
	n, err := h.Ingest(recs)
	if !errors.Is(err, ErrHistoryFull) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrHistoryFull)
	}
	if n != 4 || h.Len() != h.Cap() {
		t.Fatalf("invalid ingestion: n=%d, len=%d, cap=%d", n, h.Len(), h.Cap())
	}
}
