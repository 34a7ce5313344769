// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command gpk-split splits a GRIP .any.gpk packet cache file into
// realtime-science and housekeeping cache files.
package main // import "github.com/go-lpc/grip/cmd/gpk-split"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
)

var (
	msg = log.New(os.Stdout, "gpk-split: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("gpk-split", flag.ExitOnError)

		oname = fset.String("o", "out", "root path of the output cache files")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: gpk-split [OPTIONS] file.any.gpk

ex:
 $> gpk-split -o ./run-042 ./capture.any.gpk

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() != 1 {
		fset.Usage()
		msg.Fatalf("missing input cache file")
	}

	if *oname == "" {
		fset.Usage()
		msg.Fatalf("invalid output root path")
	}

	for _, arg := range fset.Args() {
		_, err := process(*oname, arg)
		if err != nil {
			msg.Fatalf("could not split cache file %q: %+v", arg, err)
		}
	}
}

func process(oname, fname string) (map[epm.Class]int, error) {
	if !strings.HasSuffix(fname, gpk.Any.Ext()) {
		return nil, fmt.Errorf("input file is not a %s cache file", gpk.Any.Ext())
	}

	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open cache file: %w", err)
	}
	defer f.Close()

	var (
		out   = make(map[gpk.Kind]*epm.Encoder)
		stats = make(map[epm.Class]int)
		dec   = epm.NewDecoder(f, gpk.Any.RecordLen())
		pkt   epm.Packet
	)

loop:
	for {
		err := dec.Decode(&pkt)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				break loop
			case errors.Is(err, io.ErrUnexpectedEOF):
				msg.Printf("ignoring truncated trailing record")
				break loop
			}
			return stats, fmt.Errorf("could not decode packet: %w", err)
		}
		stats[pkt.Class]++

		kind, ok := gpk.KindOf(pkt.Class)
		if !ok {
			continue
		}

		enc, ok := out[kind]
		if !ok {
			oid := gpk.Filename(oname, kind)
			msg.Printf("creating output file %q...", oid)
			o, err := os.Create(oid)
			if err != nil {
				return stats, fmt.Errorf("could not create output file: %w", err)
			}
			defer o.Close()

			enc = epm.NewEncoder(o, kind.RecordLen())
			out[kind] = enc
		}

		err = enc.Encode(pkt.Raw)
		if err != nil {
			return stats, fmt.Errorf("could not encode packet: %w", err)
		}
	}

	for _, c := range []epm.Class{
		epm.RealtimeClass, epm.HousekeepingClass,
		epm.UnknownGrip, epm.NonGrip, epm.Invalid,
	} {
		msg.Printf("%-12v packets: %d", c, stats[c])
	}

	return stats, nil
}
