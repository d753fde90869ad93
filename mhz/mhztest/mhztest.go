// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mhztest is meant to be used to test code using the mhz driver
// without a sensor attached.
package mhztest

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/GermanBionicSystems/co2/common"
)

// IO is one scripted request/response exchange.
type IO struct {
	// W is the write expected from the driver. nil accepts any write.
	W []byte
	// R is made readable once W was written.
	R []byte
	// Polls is the number of Buffered() calls that report no data before R
	// becomes readable.
	Polls int
}

// Playback implements mhz.Stream and plays back a recorded I/O flow.
//
// While "replay" type of unit tests are of limited value, they help
// reproduce a sensor's behavior, including garbage, short or missing
// responses.
type Playback struct {
	sync.Mutex
	Ops   []IO
	Count int
	// Writes holds everything written, one entry per Write call.
	Writes [][]byte
	// Resets counts ResetInputBuffer calls.
	Resets int
	Closed bool

	pending []byte
	polls   int
}

// Write implements io.Writer.
func (p *Playback) Write(b []byte) (int, error) {
	p.Lock()
	defer p.Unlock()
	p.Writes = append(p.Writes, append([]byte(nil), b...))
	if p.Closed {
		return 0, errors.New("mhztest: closed")
	}
	if p.Count >= len(p.Ops) {
		return 0, fmt.Errorf("mhztest: unexpected write % X", b)
	}
	op := p.Ops[p.Count]
	if op.W != nil && string(op.W) != string(b) {
		return 0, fmt.Errorf("mhztest: unexpected write (op #%d) % X != % X", p.Count, b, op.W)
	}
	p.Count++
	p.pending = append(p.pending, op.R...)
	p.polls = op.Polls
	return len(b), nil
}

// Buffered implements mhz.Stream.
func (p *Playback) Buffered() (int, error) {
	p.Lock()
	defer p.Unlock()
	if p.polls > 0 {
		p.polls--
		return 0, nil
	}
	return len(p.pending), nil
}

// Read implements io.Reader. It returns 0 bytes when nothing is pending, the
// way a serial port read times out.
func (p *Playback) Read(b []byte) (int, error) {
	p.Lock()
	defer p.Unlock()
	if p.Closed {
		return 0, io.EOF
	}
	if p.polls > 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Pending returns the bytes not read yet.
func (p *Playback) Pending() []byte {
	p.Lock()
	defer p.Unlock()
	return append([]byte(nil), p.pending...)
}

// ResetInputBuffer discards pending bytes.
func (p *Playback) ResetInputBuffer() error {
	p.Lock()
	defer p.Unlock()
	p.pending = nil
	p.polls = 0
	p.Resets++
	return nil
}

// Close implements io.Closer.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	p.Closed = true
	return nil
}

func (p *Playback) String() string {
	return "playback"
}

// Stream is the interface recorded by Record. It matches mhz.Stream.
type Stream interface {
	io.ReadWriter
	Buffered() (int, error)
}

// Record implements mhz.Stream and records everything written to and read
// from the wrapped Stream. Dump Ops to build a Playback from a live sensor.
type Record struct {
	sync.Mutex
	Stream Stream
	Ops    []IO
}

// Write implements io.Writer. Each write starts a new IO.
func (r *Record) Write(b []byte) (int, error) {
	r.Lock()
	defer r.Unlock()
	r.Ops = append(r.Ops, IO{W: append([]byte(nil), b...)})
	return r.Stream.Write(b)
}

// Read implements io.Reader.
func (r *Record) Read(b []byte) (int, error) {
	n, err := r.Stream.Read(b)
	r.Lock()
	defer r.Unlock()
	if n > 0 && len(r.Ops) > 0 {
		op := &r.Ops[len(r.Ops)-1]
		op.R = append(op.R, b[:n]...)
	}
	return n, err
}

// Buffered implements mhz.Stream.
func (r *Record) Buffered() (int, error) {
	return r.Stream.Buffered()
}

// ResetInputBuffer forwards to the wrapped Stream when it supports it.
func (r *Record) ResetInputBuffer() error {
	if rs, ok := r.Stream.(interface{ ResetInputBuffer() error }); ok {
		return rs.ResetInputBuffer()
	}
	return nil
}

// Close closes the wrapped Stream if it implements io.Closer.
func (r *Record) Close() error {
	if cl, ok := r.Stream.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Frame returns a valid response frame for the given reading. temperature
// is in °C.
func Frame(ppm int, temperature int, status byte) []byte {
	f := []byte{0xff, 0x86, byte(ppm >> 8), byte(ppm), byte(temperature + 44), status, 0x00, 0x00, 0x00}
	f[8] = common.SumComplement(f[1:8])
	return f
}
