// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultByteTimeout bounds how long a SerialStream read waits for the rest
// of a frame once its first byte arrived. At 9600 baud a full frame takes
// less than 10ms.
const DefaultByteTimeout = time.Second

// serial.NoTimeout is -1, so -2 never matches a configured timeout.
const timeoutUnset time.Duration = -2

// SerialMode is the line configuration of the sensor UART.
var SerialMode = serial.Mode{
	BaudRate: 9600,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// SerialPort is the subset of serial.Port used by SerialStream.
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// SerialStream adapts a serial port to Stream. The port has no notion of
// buffered bytes, so Buffered polls the port without blocking and keeps what
// it received.
type SerialStream struct {
	p           SerialPort
	name        string
	byteTimeout time.Duration
	timeout     time.Duration
	buf         []byte
}

// OpenSerial opens the named serial device (for example "/dev/ttyS0" or
// "/dev/ttyUSB0") with the sensor's line settings.
func OpenSerial(name string) (*SerialStream, error) {
	mode := SerialMode
	p, err := serial.Open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("mhz: open %s: %w", name, err)
	}
	s := NewSerialStream(p)
	s.name = name
	return s, nil
}

// NewSerialStream wraps an already opened port, typically a serial.Port.
func NewSerialStream(p SerialPort) *SerialStream {
	return &SerialStream{p: p, byteTimeout: DefaultByteTimeout, timeout: timeoutUnset}
}

// SetByteTimeout changes how long Read waits for data.
func (s *SerialStream) SetByteTimeout(t time.Duration) {
	s.byteTimeout = t
}

func (s *SerialStream) setTimeout(t time.Duration) error {
	if t == s.timeout {
		return nil
	}
	if err := s.p.SetReadTimeout(t); err != nil {
		return err
	}
	s.timeout = t
	return nil
}

// Buffered implements Stream.
func (s *SerialStream) Buffered() (int, error) {
	if len(s.buf) > 0 {
		return len(s.buf), nil
	}
	if err := s.setTimeout(0); err != nil {
		return 0, err
	}
	chunk := make([]byte, 64)
	n, err := s.p.Read(chunk)
	s.buf = append(s.buf, chunk[:n]...)
	return len(s.buf), err
}

// Read implements io.Reader. Bytes already polled by Buffered are returned
// first.
func (s *SerialStream) Read(p []byte) (int, error) {
	if len(s.buf) > 0 {
		n := copy(p, s.buf)
		s.buf = s.buf[n:]
		return n, nil
	}
	if err := s.setTimeout(s.byteTimeout); err != nil {
		return 0, err
	}
	return s.p.Read(p)
}

// Write implements io.Writer.
func (s *SerialStream) Write(p []byte) (int, error) {
	return s.p.Write(p)
}

// ResetInputBuffer discards polled bytes and purges the port read buffer.
func (s *SerialStream) ResetInputBuffer() error {
	s.buf = nil
	return s.p.ResetInputBuffer()
}

// Close closes the port.
func (s *SerialStream) Close() error {
	return s.p.Close()
}

func (s *SerialStream) String() string {
	if s.name == "" {
		return "serial"
	}
	return s.name
}
