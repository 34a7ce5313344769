// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emulator implements a GRIP telemetry source emulator.
//
// The emulator plays the role of the EPM telemetry relay: it serves one
// ground client at a time, waits for its CONNECT frame and then streams
// synthetic or replayed telemetry packets until the client disconnects.
package emulator // import "github.com/go-lpc/grip/emulator"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/grip/epm"
	"golang.org/x/sync/errgroup"
)

var errClientGone = errors.New("emulator: client disconnected")

type config struct {
	msg    log.MsgStream
	source func() (Source, error)
}

func newConfig() config {
	return config{
		msg: log.NewMsgStream("grip-emu", log.LvlInfo, os.Stdout),
		source: func() (Source, error) {
			return NewSynth(500 * time.Millisecond), nil
		},
	}
}

// Option configures an emulator server.
type Option func(*config)

// WithMsgStream sets the message stream used for logging.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithSource sets the function creating the packet source of each session.
func WithSource(f func() (Source, error)) Option {
	return func(cfg *config) {
		cfg.source = f
	}
}

// Server is a telemetry source emulator serving one client at a time.
type Server struct {
	msg log.MsgStream
	cfg config
}

// New creates a new emulator server.
func New(opts ...Option) *Server {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		msg: cfg.msg,
		cfg: cfg,
	}
}

// ListenAndServe listens on the TCP address addr and serves clients until
// ctx is canceled.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("emulator: could not listen on %q: %w", addr, err)
	}
	return srv.Serve(ctx, l)
}

// Serve accepts clients from l, one at a time, until ctx is canceled.
// Serve always closes l.
func (srv *Server) Serve(ctx context.Context, l net.Listener) error {
	defer l.Close()

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	srv.msg.Infof("listening on %v...", l.Addr())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("emulator: could not accept connection: %w", err)
		}

		err = srv.handle(ctx, conn)
		if err != nil {
			srv.msg.Errorf("could not serve %v: %+v", conn.RemoteAddr(), err)
			continue
		}
	}
}

func (srv *Server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	srv.msg.Infof("serving %v...", conn.RemoteAddr())
	defer srv.msg.Infof("serving %v... [done]", conn.RemoteAddr())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	unit, err := srv.waitConnect(conn)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("emulator: could not receive CONNECT frame: %w", err)
	}
	srv.msg.Infof("client unit=0x%02x connected", unit)

	src, err := srv.cfg.source()
	if err != nil {
		return fmt.Errorf("emulator: could not create packet source: %w", err)
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return srv.drain(conn)
	})
	grp.Go(func() error {
		return srv.stream(gctx, conn, unit, src)
	})

	err = grp.Wait()
	switch {
	case err == nil, errors.Is(err, errClientGone):
		return nil
	case ctx.Err() != nil:
		return nil
	}
	return err
}

// waitConnect reads transfer frames until a CONNECT frame from a known
// ground unit is received, and returns that unit.
func (srv *Server) waitConnect(conn net.Conn) (uint8, error) {
	buf := make([]byte, epm.TransferFrameLen)
	for {
		_, err := io.ReadFull(conn, buf)
		if err != nil {
			return 0, err
		}
		hdr := epm.DecodeTransferFrame(buf)
		switch {
		case hdr.Sync != epm.TransferFrameSync:
			srv.msg.Warnf("invalid sync marker 0x%08x", hdr.Sync)
		case hdr.Type != epm.Connect:
			srv.msg.Debugf("ignoring %v frame before CONNECT", hdr.Type)
		case hdr.Unit != epm.UnitPrimary && hdr.Unit != epm.UnitAlternate:
			srv.msg.Warnf("ignoring CONNECT from unknown unit=0x%02x", hdr.Unit)
		default:
			return hdr.Unit, nil
		}
	}
}

// drain consumes the frames sent by the client, until it disconnects.
func (srv *Server) drain(conn net.Conn) error {
	var (
		buf   = make([]byte, epm.TransferFrameLen)
		alive = 0
	)
	for {
		_, err := io.ReadFull(conn, buf)
		if err != nil {
			srv.msg.Debugf("received %d ALIVE frames", alive)
			return errClientGone
		}
		hdr := epm.DecodeTransferFrame(buf)
		switch hdr.Type {
		case epm.Alive:
			alive++
		default:
			srv.msg.Debugf("received %v frame", hdr.Type)
		}
	}
}

// stream sends the packets of src to the client.
// Once src is exhausted, stream shuts down the sending side of the connection.
func (srv *Server) stream(ctx context.Context, conn net.Conn, unit uint8, src Source) error {
	n := 0
	for {
		delay, p, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				srv.msg.Infof("packet source exhausted after %d packets", n)
				closeWrite(conn)
				return nil
			}
			return fmt.Errorf("emulator: could not generate packet %d: %w", n, err)
		}

		if delay > 0 {
			tmr := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				tmr.Stop()
				return nil
			case <-tmr.C:
			}
		}

		stamp(p, unit, time.Now())
		_, err = conn.Write(p)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("emulator: could not send packet %d: %w", n, err)
		}
		n++
	}
}

// stamp sets the destination unit and acquisition time of packet p.
func stamp(p []byte, unit uint8, now time.Time) {
	if len(p) < epm.HeaderLen {
		return
	}
	hdr := epm.DecodeTelemetryHeader(p)
	hdr.Unit = unit
	hdr.SetTime(now)
	epm.EncodeTelemetryHeader(p, hdr)
}

func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = conn.Close()
}
