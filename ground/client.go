// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ground

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/gpk"
	"golang.org/x/sync/errgroup"
)

// Client is a telemetry ground client.
//
// A Client holds the state of a single session: it is not meant to be
// reused across sessions.
type Client struct {
	addr  string
	store *gpk.Store
	msg   log.MsgStream
	cfg   config

	mu    sync.Mutex
	stats Stats
}

// New creates a ground client connecting to addr (host or host:port) and
// writing received packets to the cache store.
func New(addr string, store *gpk.Store, opts ...Option) *Client {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		addr:  addr,
		store: store,
		msg:   cfg.msg,
		cfg:   cfg,
		stats: Stats{KeepAlive: true},
	}
}

// Stats returns a snapshot of the session statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run connects to the telemetry relay, performs the handshake and streams
// telemetry packets until the relay closes the connection, an error occurs
// or ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = c.Handshake(conn)
	if err != nil {
		return err
	}

	return c.Stream(ctx, conn)
}

// hostPort splits the client address, applying the default port.
func (c *Client) hostPort() (host, port string, err error) {
	host, port, err = net.SplitHostPort(c.addr)
	if err != nil {
		var aerr *net.AddrError
		if !errors.As(err, &aerr) || aerr.Err != "missing port in address" {
			return "", "", fmt.Errorf("%w: %q: %v", ErrNetInit, c.addr, err)
		}
		host = c.addr
		port = strconv.Itoa(epm.DefaultPort)
	}
	if host == "" {
		return "", "", fmt.Errorf("%w: missing host in %q", ErrNetInit, c.addr)
	}
	v, err := strconv.Atoi(port)
	if err != nil || v <= 0 || v > 0xffff {
		return "", "", fmt.Errorf("%w: invalid port %q", ErrNetInit, port)
	}
	return host, port, nil
}

// Connect resolves the relay address and tries each candidate address
// until a connection is established or the retry policy is exhausted.
func (c *Client) Connect(ctx context.Context) (net.Conn, error) {
	host, port, err := c.hostPort()
	if err != nil {
		return nil, err
	}

	addrs, err := c.cfg.lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrResolve, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w %q: no address", ErrResolve, host)
	}

	c.msg.Infof("connecting to %s...", net.JoinHostPort(host, port))
	for attempt := 1; ; attempt++ {
		if c.cfg.progress != nil {
			_, _ = c.cfg.progress.Write([]byte("."))
		}
		for _, addr := range addrs {
			conn, e := c.cfg.dial(ctx, "tcp", net.JoinHostPort(addr, port))
			if e == nil {
				c.msg.Infof("connected to %v (attempt=%d)", conn.RemoteAddr(), attempt)
				return conn, nil
			}
			err = e
			c.msg.Debugf("could not connect to %s: %+v", addr, e)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if n := c.cfg.retry.Attempts; n > 0 && attempt >= n {
			return nil, fmt.Errorf("%w to %s after %d attempts: %v", ErrSocket, c.addr, attempt, err)
		}
		if d := c.cfg.retry.Delay; d > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}
	}
}

// Handshake sends the CONNECT frame announcing the client unit.
// The CONNECT send is not bounded by the send timeout: it blocks until
// the relay accepts the frame or the connection fails.
func (c *Client) Handshake(conn net.Conn) error {
	err := conn.SetWriteDeadline(time.Time{})
	if err == nil {
		_, err = conn.Write(epm.NewFrame(c.cfg.unit, epm.Connect))
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	c.msg.Infof("sent CONNECT (unit=0x%02x)", c.cfg.unit)
	return nil
}

// send writes an ALIVE-class frame under the send timeout.
func (c *Client) send(conn net.Conn, typ epm.PacketType) error {
	err := conn.SetWriteDeadline(time.Now().Add(c.cfg.sendTmo))
	if err != nil {
		return err
	}
	_, err = conn.Write(epm.NewFrame(c.cfg.unit, typ))
	return err
}

// Stream receives telemetry packets from conn while sending ALIVE frames,
// until the relay closes the connection, an error occurs or ctx is canceled.
func (c *Client) Stream(ctx context.Context, conn net.Conn) error {
	grp, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	grp.Go(func() error {
		defer close(done)
		return c.receive(ctx, conn)
	})
	grp.Go(func() error {
		return c.keepalive(ctx, conn, done)
	})

	return grp.Wait()
}

func (c *Client) keepalive(ctx context.Context, conn net.Conn, done chan struct{}) error {
	tck := time.NewTicker(c.cfg.keepAlive)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-tck.C:
			c.mu.Lock()
			c.stats.AliveAttempts++
			c.mu.Unlock()

			err := c.send(conn, epm.Alive)
			if err == nil {
				c.mu.Lock()
				c.stats.AliveSent++
				c.mu.Unlock()
				continue
			}

			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				c.mu.Lock()
				c.stats.KeepAlive = false
				c.mu.Unlock()
				c.msg.Warnf("ALIVE frame timed out, keepalive disabled: %+v", err)
				return nil
			}

			select {
			case <-done:
				// connection already torn down by the receive loop.
				return nil
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrKeepAlive, err)
		}
	}
}

func (c *Client) receive(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, epm.MaxPacketLen)
	for {
		n, err := conn.Read(buf)
		switch {
		case n == len(buf):
			c.mu.Lock()
			c.stats.Overruns++
			c.mu.Unlock()
			c.msg.Warnf("receive buffer overrun, packet discarded")
		case n > 0:
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			e := c.handle(buf[:n], buf)
			if e != nil {
				return e
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			c.msg.Infof("connection closed by peer")
			if cw, ok := conn.(interface{ CloseWrite() error }); ok {
				_ = cw.CloseWrite()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrReceive, err)
	}
}

// handle classifies a received packet p and appends it to the cache.
// full is the whole receive buffer, zero-padded past the end of p.
func (c *Client) handle(p, full []byte) error {
	hdr, class := epm.ClassifyPacket(p)

	c.mu.Lock()
	c.stats.Received++
	c.stats.Classes[class]++
	c.mu.Unlock()

	if !c.cfg.noAny {
		err := c.store.Append(gpk.Any, full)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCache, err)
		}
	}

	kind, ok := gpk.KindOf(class)
	if !ok {
		c.msg.Debugf("received %v packet (len=%d)", class, len(p))
		return nil
	}

	if len(p) < kind.RecordLen() {
		c.mu.Lock()
		c.stats.Short++
		c.mu.Unlock()
		c.msg.Warnf("short %v packet (counter=%d, len=%d, want=%d)",
			class, hdr.Counter, len(p), kind.RecordLen(),
		)
		return nil
	}

	err := c.store.Append(kind, p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCache, err)
	}
	c.msg.Debugf("received %v packet (counter=%d)", class, hdr.Counter)
	return nil
}
