// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command grip-mon monitors the packet cache files written by grip-ground.
//
// grip-mon periodically polls the realtime-science and housekeeping cache
// files of a run, displays a summary of the new packets and raises an alert
// when a file stops growing.
//
// Mail alerts are configured with the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
package main // import "github.com/go-lpc/grip/cmd/grip-mon"

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
	"go-hep.org/x/hep/hbook"
	mail "gopkg.in/gomail.v2"
)

func main() {
	stdlog.SetPrefix("grip-mon: ")
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
		fset = flag.NewFlagSet("grip-mon", flag.ContinueOnError)

		root    = fset.String("o", "", "root path of the packet cache files")
		freq    = fset.Duration("freq", 1*time.Second, "polling interval")
		stale   = fset.Int("stale", 30, "number of polls without new data before raising an alert")
		hmax    = fset.Int("max", 1000000, "maximum number of packets kept in memory per cache file")
		verbose = fset.Bool("v", false, "enable verbose mode")
	)

	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), `Usage: grip-mon [OPTIONS] -o ROOT

ex:
 $> grip-mon -o /data/grip/run-042 -freq 2s

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return fmt.Errorf("could not parse input arguments: %w", err)
	}

	switch {
	case *root == "":
		fset.Usage()
		return fmt.Errorf("missing cache root path")
	case *freq <= 0:
		return fmt.Errorf("invalid polling interval %v", *freq)
	case *hmax <= 0:
		return fmt.Errorf("invalid history size %d", *hmax)
	}

	lvl := log.LvlInfo
	if *verbose {
		lvl = log.LvlDebug
	}

	mon := newMonitor(*root, *freq, *stale, *hmax, stdout)
	mon.msg = log.NewMsgStream("grip-mon", lvl, stdout)
	return mon.run(ctx)
}

var monitored = []gpk.Kind{gpk.Realtime, gpk.Housekeeping}

type monitor struct {
	msg  log.MsgStream
	w    io.Writer
	freq time.Duration

	stale   int // number of idle polls before an alert
	pollers map[gpk.Kind]*gpk.Poller
	hists   map[gpk.Kind]*gpk.History
	idle    map[gpk.Kind]int
	alerts  map[gpk.Kind]int // keep track of the number of alerts per file

	force *hbook.H1D // grip force, N
	reach *hbook.H1D // reach position, mm

	alert func(subject, body string)
}

func newMonitor(root string, freq time.Duration, stale, hmax int, w io.Writer) *monitor {
	mon := &monitor{
		msg:     log.NewMsgStream("grip-mon", log.LvlInfo, w),
		w:       w,
		freq:    freq,
		stale:   stale,
		pollers: make(map[gpk.Kind]*gpk.Poller, len(monitored)),
		hists:   make(map[gpk.Kind]*gpk.History, len(monitored)),
		idle:    make(map[gpk.Kind]int, len(monitored)),
		alerts:  make(map[gpk.Kind]int, len(monitored)),
		force:   hbook.NewH1D(100, -50, +50),
		reach:   hbook.NewH1D(100, -100, +300),
	}
	for _, k := range monitored {
		mon.pollers[k] = gpk.NewPoller(root, k, gpk.WithOpenRetries(1, 0))
		mon.hists[k] = gpk.NewHistory(hmax)
	}
	mon.alert = mon.alertMail
	return mon
}

func (mon *monitor) run(ctx context.Context) error {
	tick := time.NewTicker(mon.freq)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			for _, k := range monitored {
				mon.poll(k)
			}
		}
	}
}

func (mon *monitor) poll(k gpk.Kind) {
	var (
		p    = mon.pollers[k]
		hist = mon.hists[k]
	)

	recs, advanced, err := p.PollAll()
	switch {
	case errors.Is(err, gpk.ErrNotExist):
		mon.msg.Debugf("cache file %q does not exist yet", p.Name())
		return
	case err != nil:
		mon.msg.Errorf("could not poll %q: %+v", p.Name(), err)
		return
	}

	if !advanced {
		mon.idle[k]++
		if mon.stale > 0 && mon.idle[k]%mon.stale == 0 {
			mon.stalled(k, len(recs))
		}
		return
	}
	mon.idle[k] = 0

	n, err := hist.Ingest(recs)
	if errors.Is(err, gpk.ErrHistoryFull) {
		mon.msg.Warnf("%v history full (%d packets): new packets are not displayed", k, hist.Cap())
		mon.alert(
			fmt.Sprintf("[grip-mon] %v history full", k),
			fmt.Sprintf("file: %q\npackets: %d\ncapacity: %d", p.Name(), len(recs), hist.Cap()),
		)
	}
	if n == 0 {
		return
	}

	all := hist.Records()
	mon.summarize(k, all[len(all)-n:], hist.Len())
}

func (mon *monitor) summarize(k gpk.Kind, recs []gpk.Record, tot int) {
	last := recs[len(recs)-1]
	switch k {
	case gpk.Realtime:
		for _, rec := range recs {
			rt, err := rec.Realtime()
			if err != nil {
				continue
			}
			for _, s := range rt.Slices {
				mon.force.Fill(s.FT[0].Force[0], 1)
				mon.reach.Fill(s.Position[0], 1)
			}
		}
		fmt.Fprintf(mon.w,
			"rt: packets=%d (+%d) counter=%d time=%s force=%.2f±%.2f N reach=%.1f±%.1f mm\n",
			tot, len(recs), last.Header.Counter,
			last.Header.Time().UTC().Format(time.RFC3339),
			mon.force.XMean(), stddev(mon.force),
			mon.reach.XMean(), stddev(mon.reach),
		)

	case gpk.Housekeeping:
		hk, err := last.Housekeeping()
		if err != nil {
			return
		}
		fmt.Fprintf(mon.w,
			"hk: packets=%d (+%d) counter=%d time=%s script=%d/%d/%d/%d cpu=%d mem=%d feedback=%s\n",
			tot, len(recs), last.Header.Counter,
			last.Header.Time().UTC().Format(time.RFC3339),
			hk.User, hk.Protocol, hk.Task, hk.Step,
			hk.CPU, hk.Memory, feedback(hk),
		)
	}
}

func stddev(h *hbook.H1D) float64 {
	if h.Entries() < 2 {
		return 0
	}
	return h.XStdDev()
}

func feedback(hk epm.Housekeeping) string {
	var o []string
	if hk.Target() {
		o = append(o, "target")
	}
	if hk.Tone() {
		o = append(o, "tone")
	}
	if hk.Cradle() {
		o = append(o, "cradle")
	}
	if len(o) == 0 {
		return "-"
	}
	return strings.Join(o, "|")
}

func (mon *monitor) stalled(k gpk.Kind, n int) {
	name := mon.pollers[k].Name()
	idle := time.Duration(mon.idle[k]) * mon.freq
	mon.msg.Warnf("file %q didn't change in the last %v (packets=%d)", name, idle, n)

	mon.alerts[k]++

	const maxAlerts = 5
	if mon.alerts[k] < maxAlerts {
		mon.alert(
			fmt.Sprintf("[grip-mon] file alert: %q", name),
			fmt.Sprintf("file: %q\npackets: %d\nidle: %v", name, n, idle),
		)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = targets(os.Getenv("MAIL_TGTS"))
)

func (mon *monitor) alertMail(subject, body string) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		mon.msg.Debugf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		mon.msg.Errorf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func targets(s string) []string {
	var o []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			o = append(o, v)
		}
	}
	return o
}
