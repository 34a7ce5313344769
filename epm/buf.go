// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package epm

import "math"

// rbuf reads big-endian values from a fixed layout, advancing a cursor.
type rbuf struct {
	p []byte
	c int
}

func (r *rbuf) u8() uint8 {
	v := r.p[r.c]
	r.c++
	return v
}

func (r *rbuf) u16() uint16 {
	v := be.Uint16(r.p[r.c : r.c+2])
	r.c += 2
	return v
}

func (r *rbuf) i16() int16 { return int16(r.u16()) }

func (r *rbuf) u32() uint32 {
	v := be.Uint32(r.p[r.c : r.c+4])
	r.c += 4
	return v
}

func (r *rbuf) i32() int32   { return int32(r.u32()) }
func (r *rbuf) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *rbuf) skip(n int) { r.c += n }

// wbuf writes big-endian values into a fixed layout, advancing a cursor.
type wbuf struct {
	p []byte
	c int
}

func (w *wbuf) u8(v uint8) {
	w.p[w.c] = v
	w.c++
}

func (w *wbuf) u16(v uint16) {
	be.PutUint16(w.p[w.c:w.c+2], v)
	w.c += 2
}

func (w *wbuf) i16(v int16) { w.u16(uint16(v)) }

func (w *wbuf) u32(v uint32) {
	be.PutUint32(w.p[w.c:w.c+4], v)
	w.c += 4
}

func (w *wbuf) i32(v int32)   { w.u32(uint32(v)) }
func (w *wbuf) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *wbuf) skip(n int) { w.c += n }

// scaled converts a physical value back to its fixed-point representation.
func scaled(v, scale float64) float64 {
	return math.Round(v * scale)
}
