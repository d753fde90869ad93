// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when the sensor is preheating, or when the
	// minimum interval since the previous request has not elapsed yet.
	ErrNotReady = errors.New("mhz: not ready")

	// ErrNoResponse is returned when the sensor did not answer within the
	// response timeout, or no valid PWM pulse was seen.
	ErrNoResponse = errors.New("mhz: no response")

	// ErrIncomplete is returned when fewer than 9 bytes followed the frame
	// marker.
	ErrIncomplete = errors.New("mhz: incomplete response")

	// ErrChecksumMismatch is returned when the frame checksum is invalid.
	ErrChecksumMismatch = errors.New("mhz: checksum mismatch")

	// ErrNotConnected is returned when the channel needed by a read was not
	// supplied to New.
	ErrNotConnected = errors.New("mhz: channel not connected")
)

// ChecksumError carries the checksum received in a rejected frame and the
// value computed over its payload. It matches ErrChecksumMismatch with
// errors.Is.
type ChecksumError struct {
	Received byte
	Expected byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("mhz: checksum mismatch: received 0x%02x, expected 0x%02x", e.Received, e.Expected)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
