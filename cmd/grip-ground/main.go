// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command grip-ground receives GRIP telemetry from an EPM telemetry relay
// and appends it to the packet cache files.
//
// Usage: grip-ground [OPTIONS] -o ROOT -addr HOST[:PORT]
//
// Example:
//
//	$> grip-ground -o /data/grip/run-042 -addr epm.local
//	grip-ground: connecting to epm.local:2345...
//	grip-ground: connected to 192.168.1.12:2345 (attempt=1)
//	grip-ground: sent CONNECT (unit=0x01)
//	[...]
//
// Packets are written to ROOT.rt.gpk, ROOT.hk.gpk and ROOT.any.gpk.
// The process exit code reports how the session ended:
//
//	0  normal termination
//	1  invalid network configuration
//	2  host resolution failure
//	3  connection failure
//	4  CONNECT frame send failure
//	5  ALIVE frame send failure
//	6  receive failure
//	7  cache write failure
//	64 invalid command line or configuration file
package main // import "github.com/go-lpc/grip/cmd/grip-ground"

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/grip"
	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
	"github.com/go-lpc/grip/ground"
	"github.com/go-lpc/grip/runlog"
	"github.com/sbinet/pmon"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

func main() {
	stdlog.SetPrefix("grip-ground: ")
	stdlog.SetFlags(0)

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	code := xmain(ctx, os.Args[1:], os.Stdout)
	signal.Stop(stop)
	cancel()
	os.Exit(code)
}

// exitUsage reports an invalid command line or configuration file.
const exitUsage = 64

func xmain(ctx context.Context, args []string, stdout io.Writer) int {
	cfg, err := parseArgs(args)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return ground.ExitOK
	case err != nil:
		stdlog.Printf("%+v", err)
		return exitUsage
	}

	err = run(ctx, cfg, stdout)
	if err != nil && ground.ExitCode(err) != ground.ExitOK {
		stdlog.Printf("%+v", err)
	}
	return ground.ExitCode(err)
}

type config struct {
	Root        string        `yaml:"root"`
	Addr        string        `yaml:"addr"`
	Alternate   bool          `yaml:"alternate"`
	NoAny       bool          `yaml:"no-any"`
	KeepAlive   time.Duration `yaml:"keepalive"`
	SendTimeout time.Duration `yaml:"send-timeout"`
	Retry       struct {
		Attempts int           `yaml:"attempts"`
		Delay    time.Duration `yaml:"delay"`
	} `yaml:"retry"`
	Log      logConfig     `yaml:"log"`
	PMon     bool          `yaml:"pmon"`
	PMonFreq time.Duration `yaml:"pmon-freq"`
	DB       string        `yaml:"db"`
	Verbose  bool          `yaml:"verbose"`
}

type logConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
}

func newConfig() config {
	return config{
		KeepAlive:   1 * time.Second,
		SendTimeout: 100 * time.Millisecond,
		Log: logConfig{
			MaxSizeMB:  25,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
		PMonFreq: 1 * time.Second,
	}
}

func loadConfig(fname string) (config, error) {
	cfg := newConfig()
	f, err := os.Open(fname)
	if err != nil {
		return cfg, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()

	err = yaml.NewDecoder(f).Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not decode config file %q: %w", fname, err)
	}
	return cfg, nil
}

func parseArgs(args []string) (config, error) {
	var (
		fset = flag.NewFlagSet("grip-ground", flag.ContinueOnError)

		root    = fset.String("o", "", "root path of the packet cache files")
		addr    = fset.String("addr", "", "host[:port] of the telemetry relay")
		alt     = fset.Bool("alt", false, "connect as the alternate ground client")
		noAny   = fset.Bool("no-any", false, "do not write the .any.gpk cache file")
		fname   = fset.String("cfg", "", "path to a YAML configuration file")
		logf    = fset.String("log", "", "path to a rotating log file")
		doMon   = fset.Bool("pmon", false, "enable pmon monitoring")
		freq    = fset.Duration("freq", 1*time.Second, "pmon frequency")
		dsn     = fset.String("db", "", "data source name of the session catalog")
		verbose = fset.Bool("v", false, "enable verbose mode")
	)

	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), `Usage: grip-ground [OPTIONS] -o ROOT -addr HOST[:PORT]

ex:
 $> grip-ground -o /data/grip/run-042 -addr epm.local
 $> grip-ground -cfg ./grip.yaml -alt

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return config{}, fmt.Errorf("could not parse input arguments: %w", err)
	}

	cfg := newConfig()
	if *fname != "" {
		cfg, err = loadConfig(*fname)
		if err != nil {
			return cfg, err
		}
	}

	// explicit flags override the configuration file.
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Root = *root
		case "addr":
			cfg.Addr = *addr
		case "alt":
			cfg.Alternate = *alt
		case "no-any":
			cfg.NoAny = *noAny
		case "log":
			cfg.Log.File = *logf
		case "pmon":
			cfg.PMon = *doMon
		case "freq":
			cfg.PMonFreq = *freq
		case "db":
			cfg.DB = *dsn
		case "v":
			cfg.Verbose = *verbose
		}
	})

	switch {
	case cfg.Root == "":
		fset.Usage()
		return cfg, fmt.Errorf("missing cache root path")
	case cfg.Addr == "":
		fset.Usage()
		return cfg, fmt.Errorf("missing telemetry relay address")
	case cfg.KeepAlive <= 0:
		return cfg, fmt.Errorf("invalid keepalive period %v", cfg.KeepAlive)
	case cfg.PMon && cfg.PMonFreq <= 0:
		return cfg, fmt.Errorf("invalid pmon frequency %v", cfg.PMonFreq)
	}

	return cfg, nil
}

func (cfg config) unit() uint8 {
	if cfg.Alternate {
		return epm.UnitAlternate
	}
	return epm.UnitPrimary
}

func run(ctx context.Context, cfg config, stdout io.Writer) error {
	var w io.Writer = stdout
	if cfg.Log.File != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
		defer rot.Close()
		w = io.MultiWriter(stdout, rot)
	}

	lvl := log.LvlInfo
	if cfg.Verbose {
		lvl = log.LvlDebug
	}
	msg := log.NewMsgStream("grip-ground", lvl, w)

	version, _ := grip.Version()
	msg.Infof("grip-ground %s", version)

	if dir := filepath.Dir(cfg.Root); dir != "" {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return fmt.Errorf("%w: could not create cache directory: %v", ground.ErrCache, err)
		}
	}

	if cfg.PMon {
		kill, err := monitor(msg, cfg.Root+"-pmon.log", cfg.PMonFreq)
		if err != nil {
			msg.Warnf("could not start self-monitoring: %+v", err)
		} else {
			defer kill()
		}
	}

	var cat *runlog.DB
	if cfg.DB != "" {
		db, err := runlog.Open(cfg.DB)
		if err != nil {
			msg.Warnf("could not open session catalog: %+v", err)
		} else {
			defer db.Close()
			cat = db
			previous(ctx, msg, db)
		}
	}

	cli := ground.New(
		cfg.Addr, gpk.NewStore(cfg.Root),
		ground.WithMsgStream(msg),
		ground.WithAlternateUnit(cfg.Alternate),
		ground.WithAnyCache(!cfg.NoAny),
		ground.WithKeepAlive(cfg.KeepAlive),
		ground.WithSendTimeout(cfg.SendTimeout),
		ground.WithRetryPolicy(ground.RetryPolicy{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.Retry.Delay,
		}),
		ground.WithProgress(stdout),
	)

	conn, err := cli.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = cli.Handshake(conn)
	if err != nil {
		return err
	}

	var id int64
	if cat != nil {
		id, err = cat.Begin(ctx, runlog.Session{
			Start: time.Now(),
			Peer:  conn.RemoteAddr().String(),
			Unit:  cfg.unit(),
			Root:  cfg.Root,
		})
		if err != nil {
			msg.Warnf("could not record session: %+v", err)
			cat = nil
		}
	}

	err = cli.Stream(ctx, conn)
	stats := cli.Stats()
	msg.Infof("session ended: %v", stats)

	if cat != nil {
		// ctx may already be canceled at this point.
		e := cat.End(context.Background(), id, runlog.Summary{
			Stop:         time.Now(),
			Received:     stats.Received,
			Realtime:     stats.Count(epm.RealtimeClass),
			Housekeeping: stats.Count(epm.HousekeepingClass),
			Overruns:     stats.Overruns,
			ExitCode:     ground.ExitCode(err),
		})
		if e != nil {
			msg.Warnf("could not record session outcome: %+v", e)
		}
	}

	return err
}

type catalog interface {
	LastSession(ctx context.Context) (runlog.Session, error)
}

// previous logs the last session recorded in the catalog.
func previous(ctx context.Context, msg log.MsgStream, cat catalog) {
	sess, err := cat.LastSession(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		msg.Debugf("no previous session in catalog")
	case err != nil:
		msg.Warnf("could not retrieve previous session: %+v", err)
	default:
		msg.Infof(
			"previous session: id=%d start=%s peer=%s unit=0x%02x root=%q",
			sess.ID, sess.Start.UTC().Format(time.RFC3339), sess.Peer, sess.Unit, sess.Root,
		)
	}
}

func monitor(msg log.MsgStream, fname string, freq time.Duration) (func(), error) {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("could not monitor pid=%d: %w", os.Getpid(), err)
	}

	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		msg.Debugf("run pmon (freq=%v)...", freq)
		err := p.Run()
		if err != nil {
			msg.Warnf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			msg.Warnf("could not stop pmon: %+v", err)
		}
		_ = f.Close()
	}, nil
}
