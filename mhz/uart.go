// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"errors"
	"fmt"
	"io"
)

// Stream is the byte channel the sensor UART is attached to.
//
// Read must not block longer than the stream's own read timeout, and returns
// 0 bytes when that timeout expires. If the Stream also provides
// ResetInputBuffer() error, it is called after every exchange.
type Stream interface {
	io.ReadWriter
	// Buffered returns the number of received bytes that can be read without
	// blocking.
	Buffered() (int, error)
}

type inputResetter interface {
	ResetInputBuffer() error
}

// ReadCO2UART requests a reading over the UART and returns the CO2
// concentration. The decoded temperature and status are kept and can be
// queried with LastTemperature and LastStatus.
func (d *Dev) ReadCO2UART() (PPM, error) {
	r, err := d.ReadResponse()
	return r.CO2, err
}

// ReadResponse performs one request/response exchange and returns the whole
// decoded frame.
//
// It returns ErrNotReady without writing anything if the minimum request
// interval has not elapsed. Otherwise the error, if any, matches one of
// ErrNoResponse, ErrIncomplete or ErrChecksumMismatch, or is an I/O error
// from the Stream. Residual input is drained before returning in all cases.
// The driver never retries an exchange.
func (d *Dev) ReadResponse() (Response, error) {
	if d.s == nil {
		return Response{}, ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if !isReady(d.clock.Now(), d.lastRequest, d.variant) {
		d.rec.Record("request rejected", Fields{"since_last": d.clock.Since(d.lastRequest)})
		return Response{}, ErrNotReady
	}

	d.rec.Record("sending request", Fields{"frame": fmt.Sprintf("% X", requestReadConcentration)})
	_, err := d.s.Write(RequestFrame())
	d.lastRequest = d.clock.Now()
	if err != nil {
		d.drain()
		return Response{}, fmt.Errorf("mhz: write request: %w", err)
	}

	r, err := d.receive()
	d.drain()
	return r, err
}

func (d *Dev) receive() (Response, error) {
	available, err := d.awaitResponse()
	if err != nil {
		return Response{}, err
	}
	if !available {
		d.rec.Record("no response", Fields{"timeout": d.opts.ResponseTimeout})
		return Response{}, ErrNoResponse
	}

	found, err := d.resync()
	if err != nil {
		return Response{}, err
	}
	if !found {
		d.rec.Record("incomplete response", Fields{"read": 0})
		return Response{}, ErrIncomplete
	}

	frame := make([]byte, FrameSize)
	frame[0] = FrameMarker
	n, err := readFull(d.s, frame[1:])
	if err != nil {
		return Response{}, fmt.Errorf("mhz: read response: %w", err)
	}
	if n < FrameSize-1 {
		d.rec.Record("incomplete response", Fields{"read": n + 1, "frame": fmt.Sprintf("% X", frame[:n+1])})
		return Response{}, ErrIncomplete
	}
	d.rec.Record("received", Fields{"frame": fmt.Sprintf("% X", frame)})

	r, err := DecodeResponse(frame)
	if err != nil {
		var ce *ChecksumError
		if errors.As(err, &ce) {
			d.rec.Record("checksum mismatch", Fields{"received": ce.Received, "expected": ce.Expected})
		}
		d.tempErr = ErrChecksumMismatch
		return Response{}, err
	}

	d.last, d.tempErr = r, nil
	d.rec.Record("reading", Fields{"co2": int(r.CO2), "temperature": r.Temperature.String(), "status": r.Status})
	if r.Status != 0 {
		d.rec.Record("unexpected status", Fields{"status": fmt.Sprintf("0x%02X", r.Status)})
	}
	return r, nil
}

// awaitResponse polls the stream until at least one byte is buffered. It
// reports false when the response timeout expired first.
func (d *Dev) awaitResponse() (bool, error) {
	polls := int(d.opts.ResponseTimeout / d.opts.PollInterval)
	for waited := 0; ; waited++ {
		n, err := d.s.Buffered()
		if err != nil {
			return false, fmt.Errorf("mhz: poll: %w", err)
		}
		if n > 0 {
			return true, nil
		}
		if waited >= polls {
			return false, nil
		}
		d.clock.Sleep(d.opts.PollInterval)
	}
}

// resync discards buffered bytes until the frame marker has been consumed.
// It only reads what is already buffered, and reports false when the buffer
// ran out first.
func (d *Dev) resync() (bool, error) {
	var skipped []byte
	defer func() {
		if len(skipped) > 0 {
			d.rec.Record("skipped unexpected bytes", Fields{"bytes": fmt.Sprintf("% X", skipped)})
		}
	}()
	b := make([]byte, 1)
	for {
		n, err := d.s.Buffered()
		if err != nil {
			return false, fmt.Errorf("mhz: resync: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		if n, err = readFull(d.s, b); err != nil {
			return false, fmt.Errorf("mhz: resync: %w", err)
		} else if n == 0 {
			return false, nil
		}
		if b[0] == FrameMarker {
			return true, nil
		}
		skipped = append(skipped, b[0])
	}
}

// drain discards any residual input so the next exchange starts clean.
// Failures are recorded, never returned.
func (d *Dev) drain() {
	buf := make([]byte, 32)
	discarded := 0
	for {
		n, err := d.s.Buffered()
		if err != nil {
			d.rec.Record("drain failed", Fields{"error": err.Error()})
			break
		}
		if n == 0 {
			break
		}
		m, err := d.s.Read(buf[:min(n, len(buf))])
		discarded += m
		if err != nil || m == 0 {
			break
		}
	}
	if r, ok := d.s.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			d.rec.Record("drain failed", Fields{"error": err.Error()})
		}
	}
	if discarded > 0 {
		d.rec.Record("drained", Fields{"bytes": discarded})
	}
}

// readFull reads until p is full, the stream fails, or a read returns no
// data because the stream's read timeout expired.
func readFull(r io.Reader, p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := r.Read(p[n:])
		n += m
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if m == 0 {
			break
		}
	}
	return n, nil
}
