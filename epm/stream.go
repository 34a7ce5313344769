// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

import (
	"io"

	"golang.org/x/xerrors"
)

// Packet is a raw telemetry packet together with its decoded header.
type Packet struct {
	Header TelemetryHeader
	Class  Class
	Raw    []byte
}

// Decoder reads fixed-length telemetry packets from an underlying data source.
type Decoder struct {
	r   io.Reader
	n   int // record length
	err error
}

// NewDecoder creates a decoder that reads packets of n bytes from r.
func NewDecoder(r io.Reader, n int) *Decoder {
	return &Decoder{r: r, n: n}
}

// Decode reads the next packet from the stream.
// Decode returns io.EOF when the stream ends on a packet boundary and
// io.ErrUnexpectedEOF when it ends in the middle of a packet.
func (dec *Decoder) Decode(pkt *Packet) error {
	if dec.err != nil {
		return dec.err
	}
	if dec.n < HeaderLen || dec.n > MaxPacketLen {
		dec.err = xerrors.Errorf("epm: invalid record length %d", dec.n)
		return dec.err
	}

	if cap(pkt.Raw) < dec.n {
		pkt.Raw = make([]byte, dec.n)
	}
	pkt.Raw = pkt.Raw[:dec.n]

	_, err := io.ReadFull(dec.r, pkt.Raw)
	switch {
	case err == io.EOF:
		dec.err = io.EOF
		return dec.err
	case err != nil:
		dec.err = xerrors.Errorf("epm: could not read packet: %w", err)
		return dec.err
	}

	pkt.Header, pkt.Class = ClassifyPacket(pkt.Raw)
	return nil
}

// Encoder writes fixed-length telemetry packets to an output stream.
type Encoder struct {
	w   io.Writer
	n   int
	buf []byte
	err error
}

// NewEncoder returns a new Encoder that writes packets of n bytes to w.
func NewEncoder(w io.Writer, n int) *Encoder {
	return &Encoder{w: w, n: n, buf: make([]byte, n)}
}

// Encode writes the first n bytes of p to the stream.
// Shorter packets are zero-padded.
func (enc *Encoder) Encode(p []byte) error {
	if enc.err != nil {
		return enc.err
	}
	copy(enc.buf, p)
	if len(p) < enc.n {
		for i := len(p); i < enc.n; i++ {
			enc.buf[i] = 0
		}
	}
	_, enc.err = enc.w.Write(enc.buf)
	if enc.err != nil {
		enc.err = xerrors.Errorf("epm: could not write packet: %w", enc.err)
	}
	return enc.err
}
