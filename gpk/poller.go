// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-lpc/grip/epm"
	"github.com/go-lpc/grip/internal/mmap"
)

type pollConfig struct {
	retries int
	pause   time.Duration
}

func newPollConfig() pollConfig {
	return pollConfig{
		retries: 10,
		pause:   100 * time.Millisecond,
	}
}

// PollOption configures a Poller.
type PollOption func(*pollConfig)

// WithOpenRetries configures the number of attempts made at opening a
// missing cache file, and the pause between two attempts.
func WithOpenRetries(n int, pause time.Duration) PollOption {
	return func(cfg *pollConfig) {
		if n < 1 {
			n = 1
		}
		cfg.retries = n
		cfg.pause = pause
	}
}

// Poller reads back all the records of a cache file.
//
// A Poller holds its own read position state and shares nothing with other
// pollers, nor with the writer. A Poller is not safe for concurrent use.
type Poller struct {
	fname string
	kind  Kind
	cfg   pollConfig

	seen bool   // whether a record was ever read
	last uint16 // counter of the last record seen
}

// NewPoller returns a poller over the cache file of kind k of the run rooted at root.
func NewPoller(root string, k Kind, opts ...PollOption) *Poller {
	cfg := newPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Poller{
		fname: Filename(root, k),
		kind:  k,
		cfg:   cfg,
	}
}

// Name returns the name of the polled cache file.
func (p *Poller) Name() string { return p.fname }

// PollAll re-reads the whole cache file and returns all its complete
// records, in file order.
// A trailing partial record is ignored.
//
// PollAll reports whether the counter of the last record differs from the
// one of the previous call: the absence of a new counter is interpreted as
// the absence of new data.
func (p *Poller) PollAll() ([]Record, bool, error) {
	h, err := p.open()
	if err != nil {
		return nil, false, err
	}
	defer h.Close()

	var (
		n    = p.kind.RecordLen()
		recs = make([]Record, 0, h.Len()/n)
		dec  = epm.NewDecoder(io.NewSectionReader(h, 0, int64(h.Len())), n)
	)
	for {
		var pkt epm.Packet
		err := dec.Decode(&pkt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, false, fmt.Errorf("gpk: could not decode record %d from %q: %w", len(recs), p.fname, err)
		}
		recs = append(recs, Record{
			Header: pkt.Header,
			Class:  pkt.Class,
			Raw:    pkt.Raw,
		})
	}

	if len(recs) == 0 {
		return recs, false, nil
	}

	last := recs[len(recs)-1].Header.Counter
	advanced := !p.seen || last != p.last
	p.seen = true
	p.last = last

	return recs, advanced, nil
}

func (p *Poller) open() (*mmap.Handle, error) {
	var err error
	for i := 0; i < p.cfg.retries; i++ {
		if i > 0 {
			time.Sleep(p.cfg.pause)
		}
		var h *mmap.Handle
		h, err = mmap.Open(p.fname)
		switch {
		case err == nil:
			return h, nil
		case errors.Is(err, os.ErrNotExist):
			continue
		default:
			return nil, fmt.Errorf("gpk: could not open cache file %q: %w", p.fname, err)
		}
	}
	return nil, fmt.Errorf("gpk: could not open %q after %d attempts: %w", p.fname, p.cfg.retries, ErrNotExist)
}
