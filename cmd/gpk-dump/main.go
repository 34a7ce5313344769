// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// gpk-dump decodes and displays GRIP packet cache files.
//
// Usage: gpk-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> gpk-dump ./testdata/run.hk.gpk
//	=== ./testdata/run.hk.gpk (housekeeping) ===
//	#0     HOUSEKEEPING counter=    0 unit=0x01 time=2022-01-01T00:00:00Z class=housekeeping
//	  feedback=0x0005 user=1 protocol=2 task=3 step=4
//	  script=1 io=2 tracker=3 camera=4 cpu=12 mem=34 disk=[100 200 300]
//	[...]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
)

func main() {
	log.SetPrefix("gpk-dump: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	var (
		fset = flag.NewFlagSet("gpk-dump", flag.ExitOnError)

		slices = fset.Bool("slices", false, "display all the time slices of realtime packets")
	)

	fset.Usage = func() {
		fmt.Printf(`gpk-dump decodes and displays GRIP packet cache files.

Usage: gpk-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> gpk-dump ./testdata/run.hk.gpk
 === ./testdata/run.hk.gpk (housekeeping) ===
 #0     HOUSEKEEPING counter=    0 unit=0x01 time=2022-01-01T00:00:00Z class=housekeeping
   feedback=0x0005 user=1 protocol=2 task=3 step=4
   script=1 io=2 tracker=3 camera=4 cpu=12 mem=34 disk=[100 200 300]
 [...]

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input cache file")
	}

	for _, fname := range fset.Args() {
		err := process(w, fname, *slices)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func kindFrom(fname string) (gpk.Kind, string, error) {
	for _, k := range []gpk.Kind{gpk.Realtime, gpk.Housekeeping, gpk.Any} {
		if strings.HasSuffix(fname, k.Ext()) {
			return k, strings.TrimSuffix(fname, k.Ext()), nil
		}
	}
	return 0, "", fmt.Errorf("unknown cache file extension")
}

func process(w io.Writer, fname string, slices bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	kind, root, err := kindFrom(fname)
	if err != nil {
		return err
	}

	recs, _, err := gpk.NewPoller(root, kind, gpk.WithOpenRetries(1, 0)).PollAll()
	if err != nil {
		return fmt.Errorf("could not read cache file: %w", err)
	}

	fmt.Fprintf(wbuf, "=== %s (%v) ===\n", fname, kind)
	for i, rec := range recs {
		hdr := rec.Header
		fmt.Fprintf(wbuf, "#%-5d %v counter=% 5d unit=0x%02x time=%s class=%v\n",
			i, hdr.TMID, hdr.Counter, hdr.Unit,
			hdr.Time().UTC().Format(time.RFC3339Nano), rec.Class,
		)

		switch rec.Class {
		case epm.HousekeepingClass:
			hk, err := rec.Housekeeping()
			if err != nil {
				return fmt.Errorf("could not decode record %d: %w", i, err)
			}
			fmt.Fprintf(wbuf, "  feedback=0x%04x user=%d protocol=%d task=%d step=%d\n",
				hk.Feedback, hk.User, hk.Protocol, hk.Task, hk.Step,
			)
			fmt.Fprintf(wbuf, "  script=%d io=%d tracker=%d camera=%d cpu=%d mem=%d disk=%v\n",
				hk.Script, hk.IO, hk.Tracker, hk.Camera, hk.CPU, hk.Memory, hk.FreeDisk,
			)

		case epm.RealtimeClass:
			rt, err := rec.Realtime()
			if err != nil {
				return fmt.Errorf("could not decode record %d: %w", i, err)
			}
			fmt.Fprintf(wbuf, "  acq=%d packet=%d\n", rt.Acquisition, rt.Packet)
			n := 1
			if slices {
				n = len(rt.Slices)
			}
			for j, s := range rt.Slices[:n] {
				fmt.Fprintf(wbuf, "  slice=%d tick=%d pos=%v visible=%v force=%v torque=%v accel=%v\n",
					j, s.PoseTick, s.Position, s.Visible,
					s.FT[0].Force, s.FT[0].Torque, s.Accel,
				)
			}
		}
	}

	return nil
}
