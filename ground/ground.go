// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ground implements the GRIP telemetry ground client.
//
// A ground client connects to an EPM telemetry relay, announces itself with
// a CONNECT frame, then receives telemetry packets while periodically
// sending ALIVE frames. Received packets are classified and appended to the
// packet cache.
package ground // import "github.com/go-lpc/grip/ground"

import (
	"context"
	"errors"
)

var (
	ErrNetInit   = errors.New("ground: invalid network configuration")
	ErrResolve   = errors.New("ground: could not resolve host")
	ErrSocket    = errors.New("ground: could not connect")
	ErrHandshake = errors.New("ground: could not send CONNECT frame")
	ErrKeepAlive = errors.New("ground: could not send ALIVE frame")
	ErrReceive   = errors.New("ground: could not receive packet")
	ErrCache     = errors.New("ground: could not write to packet cache")
)

// Process exit codes of a ground client session.
const (
	ExitOK = iota
	ExitNetInit
	ExitResolve
	ExitSocket
	ExitHandshake
	ExitKeepAlive
	ExitReceive
	ExitCache
)

// ExitCode maps the error returned by Client.Run to a process exit code.
// Cancellation of the session is a normal termination.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNetInit):
		return ExitNetInit
	case errors.Is(err, ErrResolve):
		return ExitResolve
	case errors.Is(err, ErrSocket):
		return ExitSocket
	case errors.Is(err, ErrHandshake):
		return ExitHandshake
	case errors.Is(err, ErrKeepAlive):
		return ExitKeepAlive
	case errors.Is(err, ErrReceive):
		return ExitReceive
	case errors.Is(err, ErrCache):
		return ExitCache
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitOK
	}
	return ExitReceive
}
