// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command grip-emu emulates the EPM telemetry relay.
//
// grip-emu serves one ground client at a time and streams either synthetic,
// scripted or replayed telemetry packets once the client has sent its
// CONNECT frame.
//
// Usage: grip-emu [OPTIONS]
//
// Example:
//
//	$> grip-emu -addr :2345 -mode synth
//	$> grip-emu -mode replay -i /data/grip/run-042 -kind any
package main // import "github.com/go-lpc/grip/cmd/grip-emu"

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/grip/emulator"
	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
)

func main() {
	stdlog.SetPrefix("grip-emu: ")
	stdlog.SetFlags(0)

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	err := xmain(ctx, os.Args[1:], os.Stdout)
	signal.Stop(stop)
	cancel()
	if err != nil {
		stdlog.Fatalf("%+v", err)
	}
}

func xmain(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		fset = flag.NewFlagSet("grip-emu", flag.ContinueOnError)

		addr    = fset.String("addr", fmt.Sprintf(":%d", epm.DefaultPort), "[ip]:port to listen on")
		mode    = fset.String("mode", "synth", "emulation mode (synth, script, replay)")
		input   = fset.String("i", "", "root path of the cache files to replay")
		kind    = fset.String("kind", "any", "cache file to replay (rt, hk, any)")
		period  = fset.Duration("period", 500*time.Millisecond, "packet period of synth and script modes")
		maxGap  = fset.Duration("max-gap", emulator.DefaultMaxGap, "longest pause between two replayed packets")
		verbose = fset.Bool("v", false, "enable verbose mode")
	)

	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), `Usage: grip-emu [OPTIONS]

ex:
 $> grip-emu -addr :2345 -mode synth
 $> grip-emu -mode replay -i /data/grip/run-042 -kind any

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return fmt.Errorf("could not parse input arguments: %w", err)
	}

	source, err := newSource(*mode, *input, *kind, *period, *maxGap)
	if err != nil {
		fset.Usage()
		return err
	}

	lvl := log.LvlInfo
	if *verbose {
		lvl = log.LvlDebug
	}

	srv := emulator.New(
		emulator.WithMsgStream(log.NewMsgStream("grip-emu", lvl, stdout)),
		emulator.WithSource(source),
	)
	return srv.ListenAndServe(ctx, *addr)
}

func newSource(mode, input, kind string, period, maxGap time.Duration) (func() (emulator.Source, error), error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid packet period %v", period)
	}

	switch mode {
	case "synth":
		return func() (emulator.Source, error) {
			return emulator.NewSynth(period), nil
		}, nil
	case "script":
		return func() (emulator.Source, error) {
			return emulator.NewScript(period), nil
		}, nil
	case "replay":
		if input == "" {
			return nil, fmt.Errorf("missing root path of the cache files to replay")
		}
		k, err := parseKind(kind)
		if err != nil {
			return nil, err
		}
		// the cache file is re-read for each client so that a file still
		// being written is replayed up to its latest record.
		return func() (emulator.Source, error) {
			return emulator.OpenReplay(input, k, maxGap)
		}, nil
	}
	return nil, fmt.Errorf("invalid emulation mode %q", mode)
}

func parseKind(s string) (gpk.Kind, error) {
	for _, k := range []gpk.Kind{gpk.Realtime, gpk.Housekeeping, gpk.Any} {
		if s == k.String() || "."+s+".gpk" == k.Ext() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid cache file kind %q", s)
}
