// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ground

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/grip/epm"
)

// RetryPolicy controls how connection attempts are repeated.
type RetryPolicy struct {
	Attempts int           // maximum number of attempts, 0 means unbounded
	Delay    time.Duration // pause between two attempts
}

type config struct {
	msg log.MsgStream

	unit      uint8
	retry     RetryPolicy
	sendTmo   time.Duration // send timeout of CONNECT/ALIVE frames
	keepAlive time.Duration // keepalive period
	noAny     bool          // whether to suppress the .any.gpk cache file
	progress  io.Writer

	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
	lookup func(ctx context.Context, host string) ([]string, error)
}

func newConfig() config {
	var dialer net.Dialer
	return config{
		msg:       log.NewMsgStream("grip-ground", log.LvlInfo, os.Stdout),
		unit:      epm.UnitPrimary,
		sendTmo:   100 * time.Millisecond,
		keepAlive: 1 * time.Second,
		dial:      dialer.DialContext,
		lookup:    net.DefaultResolver.LookupHost,
	}
}

// Option configures a ground client.
type Option func(*config)

// WithMsgStream sets the message stream used for logging.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithAlternateUnit makes the client announce itself as the alternate
// ground client instead of the primary one.
func WithAlternateUnit(alt bool) Option {
	return func(cfg *config) {
		cfg.unit = epm.UnitPrimary
		if alt {
			cfg.unit = epm.UnitAlternate
		}
	}
}

// WithRetryPolicy sets the connection retry policy.
// The default policy retries forever, without pause.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *config) {
		cfg.retry = p
	}
}

// WithSendTimeout sets the timeout of outgoing CONNECT and ALIVE frames.
func WithSendTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.sendTmo = d
	}
}

// WithKeepAlive sets the period of ALIVE frames.
func WithKeepAlive(d time.Duration) Option {
	return func(cfg *config) {
		cfg.keepAlive = d
	}
}

// WithAnyCache enables or disables the cache file holding all received packets.
func WithAnyCache(v bool) Option {
	return func(cfg *config) {
		cfg.noAny = !v
	}
}

// WithProgress sets the writer receiving one progress mark per connection attempt.
func WithProgress(w io.Writer) Option {
	return func(cfg *config) {
		cfg.progress = w
	}
}

// WithDialer sets the function used to establish the TCP connection.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(cfg *config) {
		cfg.dial = dial
	}
}
