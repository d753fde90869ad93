// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakePort emulates a serial.Port: reads return what was queued, or nothing
// once the queue is empty, like a read timeout.
type fakePort struct {
	rx       []byte
	tx       []byte
	timeouts []time.Duration
	resets   int
	closed   bool
	// onWrite is queued for reading when something is written.
	onWrite []byte
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.tx = append(p.tx, b...)
	p.rx = append(p.rx, p.onWrite...)
	return len(b), nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.resets++
	p.rx = nil
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialStream(t *testing.T) {
	port := &fakePort{rx: []byte{0x01, 0x02, 0x03}}
	s := NewSerialStream(port)
	n, err := s.Buffered()
	if err != nil || n != 3 {
		t.Fatalf("Buffered()=%d, %v expected 3", n, err)
	}
	// Polled bytes are served before the port is read again.
	port.rx = append(port.rx, 0x04)
	b := make([]byte, 2)
	if n, _ := s.Read(b); n != 2 || b[0] != 0x01 || b[1] != 0x02 {
		t.Errorf("unexpected read % x", b[:n])
	}
	if n, _ := s.Buffered(); n != 1 {
		t.Errorf("Buffered()=%d expected 1", n)
	}
	b = make([]byte, 4)
	if n, _ := s.Read(b); n != 1 || b[0] != 0x03 {
		t.Errorf("unexpected read % x", b[:n])
	}
	if n, _ := s.Read(b); n != 1 || b[0] != 0x04 {
		t.Errorf("unexpected read % x", b[:n])
	}
	// Polls are non blocking, reads use the byte timeout. Unchanged timeouts
	// are not set again.
	expected := []time.Duration{0, DefaultByteTimeout}
	if len(port.timeouts) != len(expected) || port.timeouts[0] != expected[0] || port.timeouts[1] != expected[1] {
		t.Errorf("timeouts %v expected %v", port.timeouts, expected)
	}
	if err := s.ResetInputBuffer(); err != nil || port.resets != 1 {
		t.Errorf("ResetInputBuffer()=%v resets=%d", err, port.resets)
	}
	if err := s.Close(); err != nil || !port.closed {
		t.Error("port not closed")
	}
}

func TestSerialStreamExchange(t *testing.T) {
	port := &fakePort{onWrite: append([]byte{0x00}, validFrame...)}
	s := NewSerialStream(port)
	dev, err := newDev(s, nil, MHZ19B, nil, clockwork.NewFakeClock())
	if err != nil {
		t.Fatal(err)
	}
	ppm, err := dev.ReadCO2UART()
	if err != nil {
		t.Fatal(err)
	}
	if ppm != 800 {
		t.Errorf("received %s expected 800 PPM", ppm)
	}
	if string(port.tx) != string(RequestFrame()) {
		t.Errorf("wrote % x", port.tx)
	}
	if port.resets != 1 {
		t.Errorf("port input reset %d times, expected 1", port.resets)
	}
}
